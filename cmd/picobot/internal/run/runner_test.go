package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picobot/cmd/picobot/internal"
	"github.com/sipeed/picobot/pkg/audit"
	"github.com/sipeed/picobot/pkg/config"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/permissions"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw0"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Token = testToken
	cfg.DBPath = filepath.Join(t.TempDir(), "perms.db")
	return cfg
}

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "run", cmd.Use)
	assert.True(t, cmd.HasAlias("r"))
	assert.NotNil(t, cmd.RunE)
	assert.False(t, cmd.HasSubCommands())

	debug := cmd.Flags().Lookup("debug")
	require.NotNil(t, debug)
	assert.Equal(t, "d", debug.Shorthand)
}

func TestNewBotRunner_SeedsOwnerAndRegistersPlugins(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.OwnerID = 1001

	r, err := newBotRunner(ctx, cfg)
	require.NoError(t, err)

	perm, err := r.store.Get(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, perm.Has(permissions.Owner))

	for _, name := range []string{"ping", "prefixes", "uptime", "datetime", "sysinfo", "pmgrant", "pmshow", "stload", "stdrop", "stlist"} {
		_, ok := r.dp.Command(name)
		assert.True(t, ok, name)
	}

	c, err := r.dp.Ref().Acquire()
	require.NoError(t, err)
	assert.Same(t, r.ctx, c)

	r.stop()
	assert.True(t, r.ctx.Closed())
	_, err = r.dp.Ref().Acquire()
	assert.Error(t, err)
}

func TestNewBotRunner_OwnerSeedKeepsExistingBits(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.OwnerID = 7

	store, err := internal.OpenStore(ctx, cfg.DBPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, 7, permissions.User))
	require.NoError(t, store.Close())

	r, err := newBotRunner(ctx, cfg)
	require.NoError(t, err)
	defer r.stop()

	perm, err := r.store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, permissions.User|permissions.Owner, perm)
}

func TestNewBotRunner_AuditTrail(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.log")
	cfg.Audit.Key = "k"

	r, err := newBotRunner(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, r.trail)
	require.NoError(t, r.trail.ConfigChange(1, "prefixes", "/", "!"))
	r.stop()

	n, err := audit.Verify(cfg.Audit.Path, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewBotRunner_InvalidToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.Token = "not-a-token"

	_, err := newBotRunner(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		logger.SetLevel(logger.INFO)
		logger.DisableFileLogging()
	})

	cfg := testConfig(t)
	cfg.Log.Level = "warn"
	require.NoError(t, setupLogging(cfg, false))
	assert.Equal(t, logger.WARN, logger.GetLevel())
	assert.True(t, logger.IsRedactionEnabled())

	require.NoError(t, setupLogging(cfg, true))
	assert.Equal(t, logger.DEBUG, logger.GetLevel())

	cfg.Log.Level = "loud"
	assert.Error(t, setupLogging(cfg, false))
}

func TestSetupLogging_FileMasksToken(t *testing.T) {
	t.Cleanup(func() {
		logger.SetLevel(logger.INFO)
		logger.DisableFileLogging()
	})

	cfg := testConfig(t)
	cfg.Log.File = filepath.Join(t.TempDir(), "picobot.log")
	require.NoError(t, setupLogging(cfg, false))

	logger.InfoCF("test", "token in use", map[string]any{"value": "bot" + testToken + "/getMe"})
	logger.DisableFileLogging()

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.NotContains(t, string(data), testToken)
	assert.Contains(t, string(data), "token in use")
}
