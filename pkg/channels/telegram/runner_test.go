package telegram

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/config"
	"github.com/sipeed/picobot/pkg/permissions"
	"github.com/sipeed/picobot/pkg/ratelimit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopTransport struct{}

func (nopTransport) SendMessage(context.Context, *telego.SendMessageParams) (*telego.Message, error) {
	return &telego.Message{}, nil
}

func (nopTransport) EditMessageText(context.Context, *telego.EditMessageTextParams) (*telego.Message, error) {
	return &telego.Message{}, nil
}

func (nopTransport) DeleteMessage(context.Context, *telego.DeleteMessageParams) error { return nil }

func (nopTransport) SendDocument(context.Context, *telego.SendDocumentParams) (*telego.Message, error) {
	return &telego.Message{}, nil
}

func (nopTransport) GetFile(context.Context, *telego.GetFileParams) (*telego.File, error) {
	return &telego.File{}, nil
}

func (nopTransport) FileDownloadURL(string) string { return "" }

type pingPlugin struct {
	mu      sync.Mutex
	callers []int64
	traces  []string
	raw     atomic.Int32
}

func (p *pingPlugin) Name() string { return "ping" }

func (p *pingPlugin) Commands() map[string]bot.CommandMetadata {
	return map[string]bot.CommandMetadata{
		"ping": {
			Permission:  permissions.None,
			Description: "Check the bot is alive",
			Handler: func(ctx context.Context, _ bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
				p.mu.Lock()
				defer p.mu.Unlock()
				p.callers = append(p.callers, msg.From.ID)
				p.traces = append(p.traces, TraceID(ctx))
				return nil
			},
		},
		"Bad-Name": {Description: "not menu safe"},
	}
}

func (p *pingPlugin) UpdateHandlers() []bot.UpdateHandler {
	return []bot.UpdateHandler{
		func(context.Context, bot.Transport, telego.Update, *bot.ContextRef) error {
			p.raw.Add(1)
			return nil
		},
	}
}

func (p *pingPlugin) Callers() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.callers...)
}

type harness struct {
	runner  *Runner
	updates chan telego.Update
	plugin  *pingPlugin
	ctx     *bot.Context
	dp      *bot.Dispatcher
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store, err := permissions.NewStore(context.Background(), permissions.NewMemoryBackend())
	require.NoError(t, err)

	plugin := &pingPlugin{}
	dp := bot.NewDispatcher()
	dp.RegisterPlugin(plugin)
	c := bot.NewContext(config.DefaultConfig(), store, dp, nopTransport{})

	updates := make(chan telego.Update)
	r := NewRunner(nil, dp, append([]Option{WithWorkers(4), WithCommandMenu(false)}, opts...)...)
	r.tr = nopTransport{}
	r.updates = func(context.Context) (<-chan telego.Update, error) { return updates, nil }
	r.register = func(context.Context, []telego.BotCommand) error { return nil }

	h := &harness{runner: r, updates: updates, plugin: plugin, ctx: c, dp: dp}
	t.Cleanup(func() {
		h.ctx.Close()
		h.dp.Wait()
	})
	return h
}

func chatUpdate(id int, from int64, text string) telego.Update {
	u := pingUpdate(id, from)
	u.Message.Text = text
	return u
}

func pingUpdate(id int, from int64) telego.Update {
	return telego.Update{
		UpdateID: id,
		Message: &telego.Message{
			MessageID: id,
			From:      &telego.User{ID: from},
			Chat:      telego.Chat{ID: 99},
			Text:      "/ping",
		},
	}
}

func runAsync(ctx context.Context, r *Runner) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func TestRun_DispatchesUpdates(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.runner)

	h.updates <- pingUpdate(1, 10)
	h.updates <- pingUpdate(2, 20)
	h.updates <- telego.Update{UpdateID: 3}

	cancel()
	require.NoError(t, <-done)
	h.dp.Wait()
	assert.ElementsMatch(t, []int64{10, 20}, h.plugin.Callers())

	h.plugin.mu.Lock()
	defer h.plugin.mu.Unlock()
	for _, trace := range h.plugin.traces {
		assert.Len(t, trace, 36)
	}
}

func TestRun_ClosedUpdatesReturnsError(t *testing.T) {
	h := newHarness(t)
	done := runAsync(context.Background(), h.runner)

	close(h.updates)
	assert.ErrorIs(t, <-done, ErrUpdatesClosed)
}

func TestRun_StartFailure(t *testing.T) {
	h := newHarness(t)
	h.runner.updates = func(context.Context) (<-chan telego.Update, error) {
		return nil, errors.New("unauthorized")
	}
	assert.Error(t, h.runner.Run(context.Background()))
}

func TestRun_DisposedContextDoesNotStopLoop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.runner)

	h.ctx.Close()
	h.updates <- pingUpdate(1, 10)
	h.updates <- pingUpdate(2, 10)

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, h.plugin.Callers())
}

func TestRun_RateLimitedSendersAreDropped(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{Enabled: true, CommandsPerMinute: 1, Burst: 1})
	h := newHarness(t, WithLimiter(limiter), WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.runner)

	h.updates <- pingUpdate(1, 10)
	h.updates <- pingUpdate(2, 10)
	h.updates <- pingUpdate(3, 30)

	cancel()
	require.NoError(t, <-done)
	h.dp.Wait()
	assert.ElementsMatch(t, []int64{10, 30}, h.plugin.Callers())
}

func TestRun_PlainChatDoesNotSpendCommandBudget(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{Enabled: true, CommandsPerMinute: 1, Burst: 1})
	h := newHarness(t, WithLimiter(limiter), WithWorkers(1))
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.runner)

	h.updates <- chatUpdate(1, 10, "hello everyone")
	h.updates <- pingUpdate(2, 10)
	h.updates <- pingUpdate(3, 10)

	cancel()
	require.NoError(t, <-done)
	h.dp.Wait()
	assert.Equal(t, []int64{10}, h.plugin.Callers())
	assert.Equal(t, int32(3), h.plugin.raw.Load())
}

func TestMenuCommands(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := MenuCommands([]bot.NamedCommand{
		{Name: "ping", CommandMetadata: bot.CommandMetadata{Description: "Pong"}},
		{Name: "hidden"},
		{Name: "Bad-Name", CommandMetadata: bot.CommandMetadata{Description: "nope"}},
		{Name: "long", CommandMetadata: bot.CommandMetadata{Description: string(long)}},
	})

	require.Len(t, got, 2)
	assert.Equal(t, telego.BotCommand{Command: "ping", Description: "Pong"}, got[0])
	assert.Equal(t, "long", got[1].Command)
	assert.Len(t, []rune(got[1].Description), maxMenuDescription)
}

func TestRegisterCommands_PublishesMenu(t *testing.T) {
	h := newHarness(t)
	var got []telego.BotCommand
	h.runner.register = func(_ context.Context, cmds []telego.BotCommand) error {
		got = cmds
		return nil
	}

	require.NoError(t, h.runner.RegisterCommands(context.Background()))
	assert.Equal(t, []telego.BotCommand{{Command: "ping", Description: "Check the bot is alive"}}, got)
}

func TestRun_RegistrationRetriesUntilSuccess(t *testing.T) {
	origBackoff := commandRegistrationBackoff
	commandRegistrationBackoff = []time.Duration{5 * time.Millisecond}
	defer func() { commandRegistrationBackoff = origBackoff }()

	h := newHarness(t, WithCommandMenu(true))
	var attempts atomic.Int32
	h.runner.register = func(context.Context, []telego.BotCommand) error {
		if attempts.Add(1) < 3 {
			return errors.New("temporary failure")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, h.runner)

	assert.Eventually(t, func() bool { return attempts.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stable := attempts.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stable, attempts.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestRun_RegistrationStopsWithRun(t *testing.T) {
	origBackoff := commandRegistrationBackoff
	commandRegistrationBackoff = []time.Duration{5 * time.Millisecond}
	defer func() { commandRegistrationBackoff = origBackoff }()

	h := newHarness(t, WithCommandMenu(true))
	var attempts atomic.Int32
	h.runner.register = func(context.Context, []telego.BotCommand) error {
		attempts.Add(1)
		return errors.New("always fail")
	}

	done := runAsync(context.Background(), h.runner)
	time.Sleep(20 * time.Millisecond)
	close(h.updates)
	assert.ErrorIs(t, <-done, ErrUpdatesClosed)

	stable := attempts.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stable, attempts.Load())
}
