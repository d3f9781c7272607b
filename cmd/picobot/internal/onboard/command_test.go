package onboard

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picobot/pkg/config"
)

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestNewOnboardCommand(t *testing.T) {
	cmd := NewOnboardCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "onboard", cmd.Use)
	assert.True(t, cmd.HasAlias("o"))
	assert.NotNil(t, cmd.RunE)
	assert.False(t, cmd.HasSubCommands())
	assert.NotNil(t, cmd.Flags().Lookup("force"))
}

func TestOnboard_WritesConfig(t *testing.T) {
	unsetenv(t, "BOT_TOKEN")
	unsetenv(t, "PICOBOT_AUDIT_KEY")
	t.Setenv("PREFIXES", "!")
	path := filepath.Join(t.TempDir(), "home", "config.json")

	var out bytes.Buffer
	require.NoError(t, onboard(&out, path, false))
	assert.Contains(t, out.String(), "Config written to "+path)
	assert.Contains(t, out.String(), "Set BOT_TOKEN")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []rune{'!'}, cfg.GetPrefixes())
	assert.Len(t, cfg.Audit.Key, 64)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOnboard_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"keep"}`), 0o600))

	err := onboard(&bytes.Buffer{}, path, false)
	assert.ErrorContains(t, err, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"keep"}`, string(data))
}

func TestOnboard_ForceKeepsAuditKeyFromEnv(t *testing.T) {
	t.Setenv("PICOBOT_AUDIT_KEY", "fixed")
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	require.NoError(t, onboard(&bytes.Buffer{}, path, true))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fixed", cfg.Audit.Key)
}
