package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sipeed/picobot/cmd/picobot/internal"
	"github.com/sipeed/picobot/pkg/audit"
	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/channels/telegram"
	"github.com/sipeed/picobot/pkg/config"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/permissions"
	"github.com/sipeed/picobot/pkg/plugins/access"
	"github.com/sipeed/picobot/pkg/plugins/core"
	"github.com/sipeed/picobot/pkg/plugins/storage"
	"github.com/sipeed/picobot/pkg/plugins/system"
	"github.com/sipeed/picobot/pkg/ratelimit"
	"github.com/sipeed/picobot/pkg/redaction"
)

const shutdownTimeout = 10 * time.Second

// botRunner holds everything a serving bot owns, in construction order.
type botRunner struct {
	cfg     *config.Config
	store   *permissions.Store
	trail   *audit.Logger
	dp      *bot.Dispatcher
	ctx     *bot.Context
	limiter *ratelimit.Limiter
	runner  *telegram.Runner
}

func runCmd(ctx context.Context, debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := setupLogging(cfg, debug); err != nil {
		return err
	}
	defer logger.DisableFileLogging()

	r, err := newBotRunner(ctx, cfg)
	if err != nil {
		logger.ErrorCF("run", "Failed to initialize bot", map[string]any{"error": err.Error()})
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = r.run(ctx)
	r.stop()
	return err
}

func setupLogging(cfg *config.Config, debug bool) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)
	logger.SetRedactionEnabled(true)
	redaction.AddLiteral(cfg.GetToken())

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return fmt.Errorf("enable file logging: %w", err)
		}
	}
	return nil
}

// newBotRunner wires the bot. The dispatcher exists before the context, and
// creating the context binds the dispatcher's reference to it.
func newBotRunner(ctx context.Context, cfg *config.Config) (*botRunner, error) {
	bot.MarkStart()

	store, err := internal.OpenStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open permission store: %w", err)
	}

	if cfg.OwnerID != 0 {
		if err := store.Grant(ctx, permissions.UserID(cfg.OwnerID), permissions.Owner); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed owner: %w", err)
		}
	}

	var trail *audit.Logger
	if cfg.Audit.Enabled {
		var key []byte
		if cfg.Audit.Key != "" {
			key = []byte(cfg.Audit.Key)
		}
		trail, err = audit.Open(audit.Config{Path: internal.AuditPath(cfg), Key: key})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open audit trail: %w", err)
		}
	}

	dp := bot.NewDispatcher()
	dp.RegisterAll(core.New(), system.New(), access.New(), storage.New(storage.DefaultDir()))

	tg, err := telegram.NewBot(cfg.GetToken(), cfg.Proxy)
	if err != nil {
		trail.Close()
		store.Close()
		return nil, err
	}

	c := bot.NewContext(cfg, store, dp, tg, bot.WithAudit(trail))

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		CommandsPerMinute: cfg.RateLimit.CommandsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	logger.InfoCF("run", "Bot initialized", map[string]any{
		"commands": len(dp.Commands()),
		"plugins":  len(dp.Plugins()),
		"prefixes": string(cfg.GetPrefixes()),
		"audit":    cfg.Audit.Enabled,
	})

	return &botRunner{
		cfg:     cfg,
		store:   store,
		trail:   trail,
		dp:      dp,
		ctx:     c,
		limiter: limiter,
		runner: telegram.NewRunner(tg, dp,
			telegram.WithLimiter(limiter),
			telegram.WithWorkers(cfg.Workers),
		),
	}, nil
}

func (r *botRunner) run(ctx context.Context) error {
	go r.sweepLimiter(ctx)

	err := r.runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorCF("run", "Serving stopped", map[string]any{"error": err.Error()})
		return err
	}
	return nil
}

// sweepLimiter drops rate limit state for senders idle for an hour.
func (r *botRunner) sweepLimiter(ctx context.Context) {
	if !r.limiter.Enabled() {
		return
	}
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.limiter.Cleanup(time.Hour); n > 0 {
				logger.DebugCF("run", "Rate limiter swept", map[string]any{"removed": n})
			}
		}
	}
}

// stop tears the bot down: the context goes first so late handlers stop
// touching shared state, then running handlers get a bounded wait.
func (r *botRunner) stop() {
	logger.InfoC("run", "Shutting down...")

	r.ctx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.dp.Shutdown(ctx); err != nil {
		logger.WarnCF("run", "Handlers still running at shutdown", map[string]any{"error": err.Error()})
	}

	if err := r.trail.Close(); err != nil {
		logger.WarnCF("run", "Failed to close audit trail", map[string]any{"error": err.Error()})
	}
	if err := r.store.Close(); err != nil {
		logger.WarnCF("run", "Failed to close permission store", map[string]any{"error": err.Error()})
	}

	logger.InfoC("run", "Shutdown complete")
}
