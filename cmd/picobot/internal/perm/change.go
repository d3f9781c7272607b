package perm

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/picobot/pkg/permissions"
)

type mutation struct {
	name    string
	short   string
	example string
	apply   func(*permissions.Store, context.Context, permissions.UserID, permissions.Permission) error
}

var (
	grant = mutation{
		name:    "grant",
		short:   "Add permission flags to a user",
		example: `picobot perm grant 123456789 admin`,
		apply:   (*permissions.Store).Grant,
	}
	revoke = mutation{
		name:    "revoke",
		short:   "Remove permission flags from a user",
		example: `picobot perm revoke 123456789 admin`,
		apply:   (*permissions.Store).Revoke,
	}
	set = mutation{
		name:    "set",
		short:   "Overwrite a user's permission",
		example: `picobot perm set 123456789 "user|admin"`,
		apply:   (*permissions.Store).Set,
	}
)

func newChangeCommand(storePath func() string, m mutation) *cobra.Command {
	cmd := &cobra.Command{
		Use:     m.name + " <user_id> <permission>",
		Short:   m.short,
		Args:    cobra.ExactArgs(2),
		Example: m.example,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, perm, err := permissions.ParseUserPermission(args[0] + " " + args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withStore(ctx, storePath(), func(store *permissions.Store) error {
				before, err := store.Get(ctx, id)
				if err != nil {
					return err
				}
				if err := m.apply(store, ctx, id, perm); err != nil {
					return err
				}
				after, err := store.Get(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %d: %s -> %s\n", id, before, after)
				return nil
			})
		},
	}

	return cmd
}

func newResetCommand(storePath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reset <user_id>",
		Short:   "Remove a user from the permission table",
		Args:    cobra.ExactArgs(1),
		Example: `picobot perm reset 123456789`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := permissions.ParseUserID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withStore(ctx, storePath(), func(store *permissions.Store) error {
				if err := store.Reset(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %d: permissions reset\n", id)
				return nil
			})
		},
	}

	return cmd
}
