package internal

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sipeed/picobot/pkg/config"
	"github.com/sipeed/picobot/pkg/permissions"
)

const Logo = "🤖"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// GetConfigPath returns the config file path, honoring PICOBOT_CONFIG and
// PICOBOT_HOME.
func GetConfigPath() string {
	return config.ResolveRuntimePaths().ConfigPath
}

// LoadConfig reads .env from the working directory, then the config file and
// the environment.
func LoadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return config.LoadConfig(GetConfigPath())
}

// OpenStore opens the SQLite permission store at path, creating the schema
// when missing.
func OpenStore(ctx context.Context, path string) (*permissions.Store, error) {
	backend, err := permissions.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	store, err := permissions.NewStore(ctx, backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}

// AuditPath returns the configured audit trail path, or the default one under
// the picobot home directory.
func AuditPath(cfg *config.Config) string {
	if cfg.Audit.Path != "" {
		return cfg.Audit.Path
	}
	return config.ResolveRuntimePaths().AuditPath
}
