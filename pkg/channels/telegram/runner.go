// Package telegram serves a bot.Dispatcher from the Telegram Bot API using
// long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/ratelimit"
)

// ErrUpdatesClosed is returned by Run when the update stream ends while the
// context is still live.
var ErrUpdatesClosed = errors.New("telegram updates channel closed")

type traceKey struct{}

// TraceID returns the id Run attached to the update being handled.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// NewBot creates the Bot API client, routing through proxy when set.
func NewBot(token, proxy string) (*telego.Bot, error) {
	var opts []telego.BotOption

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	b, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

type Runner struct {
	tr       bot.Transport
	dp       *bot.Dispatcher
	limiter  *ratelimit.Limiter
	workers  int
	menu     bool
	updates  func(ctx context.Context) (<-chan telego.Update, error)
	register func(ctx context.Context, cmds []telego.BotCommand) error
}

type Option func(*Runner)

// WithLimiter drops commands from senders over their command budget.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(r *Runner) { r.limiter = l }
}

// WithWorkers bounds the number of updates handled at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithCommandMenu controls whether Run publishes the command table to the
// Telegram command menu. It is on by default.
func WithCommandMenu(enabled bool) Option {
	return func(r *Runner) { r.menu = enabled }
}

func NewRunner(b *telego.Bot, dp *bot.Dispatcher, opts ...Option) *Runner {
	r := &Runner{
		tr:      b,
		dp:      dp,
		workers: 16,
		menu:    true,
		updates: func(ctx context.Context) (<-chan telego.Update, error) {
			return b.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
				Timeout: 30,
			})
		},
		register: func(ctx context.Context, cmds []telego.BotCommand) error {
			return b.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: cmds})
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.limiter != nil {
		dp.SetCommandGate(r.allowCommand)
	}
	return r
}

// allowCommand spends one token of the sender's budget. Only messages that
// parse as commands get here; plain chat and raw update handlers are free.
func (r *Runner) allowCommand(ctx context.Context, msg telego.Message, cmd command.Command) bool {
	if r.limiter.Allow(msg.From.ID) {
		return true
	}
	logger.DebugCF("telegram", "Sender throttled", map[string]any{
		"trace_id": TraceID(ctx),
		"user_id":  msg.From.ID,
		"command":  cmd.Name,
	})
	if c, ok := r.dp.Ref().Resolve(); ok {
		if err := c.Audit().RateLimitHit(msg.From.ID, msg.Chat.ID); err != nil {
			logger.WarnCF("telegram", "Audit write failed", map[string]any{"error": err.Error()})
		}
	}
	return false
}

// Run polls for updates until ctx is cancelled. Each update is handled in
// its own goroutine; failures are logged and never stop the loop. Run
// returns after every in-flight update has been handled.
func (r *Runner) Run(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	updates, err := r.updates(ctx)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	var bg sync.WaitGroup
	defer bg.Wait()
	regCtx, stopRegistration := context.WithCancel(ctx)
	defer stopRegistration()
	if r.menu {
		bg.Add(1)
		go func() {
			defer bg.Done()
			r.registerWithRetry(regCtx)
		}()
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.InfoC("telegram", "Stopping Telegram bot...")
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrUpdatesClosed
			}
			g.Go(func() error {
				r.handle(ctx, update)
				return nil
			})
		}
	}
}

func (r *Runner) handle(ctx context.Context, update telego.Update) {
	trace := uuid.NewString()
	ctx = context.WithValue(ctx, traceKey{}, trace)

	err := r.dp.HandleUpdate(ctx, r.tr, update)
	switch {
	case err == nil:
	case errors.Is(err, bot.ErrContextDisposed):
		logger.DebugCF("telegram", "Update dropped, bot is shutting down", map[string]any{
			"trace_id":  trace,
			"update_id": update.UpdateID,
		})
	default:
		logger.ErrorCF("telegram", "Update handling failed", map[string]any{
			"trace_id":  trace,
			"update_id": update.UpdateID,
			"error":     err.Error(),
		})
	}
}
