package auditcmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/picobot/cmd/picobot/internal"
	"github.com/sipeed/picobot/pkg/audit"
)

func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Work with the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newVerifyCommand())

	return cmd
}

func newVerifyCommand() *cobra.Command {
	var (
		path string
		key  string
	)

	cmd := &cobra.Command{
		Use:     "verify",
		Short:   "Check the audit trail hash chain",
		Args:    cobra.NoArgs,
		Example: `picobot audit verify --path ~/.picobot/audit.log`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" || key == "" {
				cfg, err := internal.LoadConfig()
				if err != nil {
					return fmt.Errorf("error loading config: %w", err)
				}
				if path == "" {
					path = internal.AuditPath(cfg)
				}
				if key == "" {
					key = cfg.Audit.Key
				}
			}
			if key == "" {
				return errors.New("audit key is not set (PICOBOT_AUDIT_KEY or --key)")
			}

			n, err := audit.Verify(path, []byte(key))
			if err != nil {
				return fmt.Errorf("verify %s after %d entries: %w", path, n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries verified\n", path, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Audit trail file (defaults to config)")
	cmd.Flags().StringVar(&key, "key", "", "HMAC key (defaults to PICOBOT_AUDIT_KEY)")

	return cmd
}
