package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRuntimePaths_DefaultsToUserHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvPicoBotConfig, "")
	t.Setenv(EnvPicoBotHome, "")

	paths := ResolveRuntimePaths()

	want := filepath.Join(home, ".picobot")
	assert.Equal(t, want, paths.HomeDir)
	assert.Equal(t, filepath.Join(want, "config.json"), paths.ConfigPath)
	assert.Equal(t, filepath.Join(want, "audit.log"), paths.AuditPath)
}

func TestResolveRuntimePaths_UsesPicoBotHomeOverride(t *testing.T) {
	homeOverride := filepath.Join(t.TempDir(), "bot-home")
	t.Setenv(EnvPicoBotConfig, "")
	t.Setenv(EnvPicoBotHome, homeOverride)

	paths := ResolveRuntimePaths()

	assert.Equal(t, homeOverride, paths.HomeDir)
	assert.Equal(t, filepath.Join(homeOverride, "config.json"), paths.ConfigPath)
	assert.Equal(t, filepath.Join(homeOverride, "audit.log"), paths.AuditPath)
}

func TestResolveRuntimePaths_ConfigOverrideTakesPrecedence(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "custom")
	configPath := filepath.Join(configDir, "config.json")
	t.Setenv(EnvPicoBotHome, filepath.Join(t.TempDir(), "ignored"))
	t.Setenv(EnvPicoBotConfig, configPath)

	paths := ResolveRuntimePaths()

	assert.Equal(t, configPath, paths.ConfigPath)
	assert.Equal(t, configDir, paths.HomeDir)
	assert.Equal(t, filepath.Join(configDir, "audit.log"), paths.AuditPath)
}
