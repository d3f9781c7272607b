package infra

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvHome names the variable that relocates the picobot home directory.
const EnvHome = "PICOBOT_HOME"

// ResolveHomeDir returns the effective home directory for picobot.
// PICOBOT_HOME wins when set (a leading ~ is expanded), then ~/.picobot.
func ResolveHomeDir() string {
	if envHome := ExpandHome(strings.TrimSpace(os.Getenv(EnvHome))); envHome != "" {
		return envHome
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(os.TempDir(), ".picobot")
	}
	return filepath.Join(home, ".picobot")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
