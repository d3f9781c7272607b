package perm

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/picobot/cmd/picobot/internal"
	"github.com/sipeed/picobot/pkg/permissions"
)

func NewPermCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:     "perm",
		Aliases: []string{"p"},
		Short:   "Inspect and edit stored permissions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if dbPath != "" {
				return nil
			}
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			dbPath = cfg.DBPath
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Permission database (defaults to DB_PATH from config)")

	storePath := func() string { return dbPath }
	cmd.AddCommand(
		newShowCommand(storePath),
		newChangeCommand(storePath, grant),
		newChangeCommand(storePath, revoke),
		newChangeCommand(storePath, set),
		newResetCommand(storePath),
		newExportCommand(storePath),
		newImportCommand(storePath),
	)

	return cmd
}

func withStore(ctx context.Context, path string, fn func(*permissions.Store) error) error {
	store, err := internal.OpenStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
