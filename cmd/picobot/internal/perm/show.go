package perm

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sipeed/picobot/pkg/permissions"
)

func newShowCommand(storePath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show [user_id]",
		Aliases: []string{"ls"},
		Short:   "Show one user's permission or the whole table",
		Args:    cobra.MaximumNArgs(1),
		Example: `picobot perm show
picobot perm show 123456789`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), storePath(), func(store *permissions.Store) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					id, err := permissions.ParseUserID(args[0])
					if err != nil {
						return err
					}
					perm, err := store.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "User: %d\nPermission: %s\n", id, perm)
					return nil
				}

				m, err := store.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				printTable(out, m)
				return nil
			})
		},
	}

	return cmd
}

func printTable(out io.Writer, m permissions.Map) {
	if len(m) == 0 {
		fmt.Fprintln(out, "No permissions stored.")
		return
	}
	ids := make([]permissions.UserID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "%-20d %s\n", id, m[id])
	}
}
