// picobot - Telegram command bot with pluggable, permission-gated commands
// License: MIT
//
// Copyright (c) 2026 PicoBot contributors

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sipeed/picobot/internal/infra"
)

const (
	EnvPicoBotConfig = "PICOBOT_CONFIG"
	EnvPicoBotHome   = infra.EnvHome
)

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
	AuditPath  string
}

// ResolveRuntimePaths locates the config file and the files kept beside it.
// PICOBOT_CONFIG names the file directly; otherwise it lives in the home
// directory.
func ResolveRuntimePaths() RuntimePaths {
	if configPath := infra.ExpandHome(strings.TrimSpace(os.Getenv(EnvPicoBotConfig))); configPath != "" {
		return buildRuntimePaths(filepath.Dir(configPath), configPath)
	}

	homeDir := infra.ResolveHomeDir()
	return buildRuntimePaths(homeDir, filepath.Join(homeDir, "config.json"))
}

func buildRuntimePaths(homeDir, configPath string) RuntimePaths {
	return RuntimePaths{
		HomeDir:    homeDir,
		ConfigPath: configPath,
		AuditPath:  filepath.Join(homeDir, "audit.log"),
	}
}
