package perm

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/picobot/pkg/permissions"
)

func newExportCommand(storePath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export <file>",
		Short:   "Write the permission table to a YAML file",
		Args:    cobra.ExactArgs(1),
		Example: `picobot perm export permissions.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, storePath(), func(store *permissions.Store) error {
				m, err := store.Snapshot(ctx)
				if err != nil {
					return err
				}
				if err := permissions.WriteSnapshotFile(args[0], m); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(m), args[0])
				return nil
			})
		},
	}

	return cmd
}

func newImportCommand(storePath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import <file>",
		Short:   "Replace the permission table with a YAML file",
		Args:    cobra.ExactArgs(1),
		Example: `picobot perm import permissions.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := permissions.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withStore(ctx, storePath(), func(store *permissions.Store) error {
				if err := store.LoadSnapshot(ctx, m); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries from %s\n", len(m), args[0])
				return nil
			})
		},
	}

	return cmd
}
