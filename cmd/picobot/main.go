// picobot - Telegram command bot with pluggable, permission-gated commands
// License: MIT
//
// Copyright (c) 2026 PicoBot contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/picobot/cmd/picobot/internal"
	"github.com/sipeed/picobot/cmd/picobot/internal/auditcmd"
	"github.com/sipeed/picobot/cmd/picobot/internal/onboard"
	"github.com/sipeed/picobot/cmd/picobot/internal/perm"
	"github.com/sipeed/picobot/cmd/picobot/internal/run"
	"github.com/sipeed/picobot/cmd/picobot/internal/version"
)

func NewPicobotCommand() *cobra.Command {
	short := fmt.Sprintf("%s picobot - Telegram command bot v%s", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:          "picobot",
		Short:        short,
		Example:      "picobot run --debug",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		run.NewRunCommand(),
		perm.NewPermCommand(),
		auditcmd.NewAuditCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewPicobotCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
