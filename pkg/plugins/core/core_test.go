package core

import (
	"context"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/config"
	"github.com/sipeed/picobot/pkg/permissions"
)

type recorder struct {
	sent []string
}

func (r *recorder) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	r.sent = append(r.sent, p.Text)
	return &telego.Message{}, nil
}

func (r *recorder) EditMessageText(context.Context, *telego.EditMessageTextParams) (*telego.Message, error) {
	return &telego.Message{}, nil
}

func (r *recorder) DeleteMessage(context.Context, *telego.DeleteMessageParams) error { return nil }

func (r *recorder) SendDocument(context.Context, *telego.SendDocumentParams) (*telego.Message, error) {
	return &telego.Message{}, nil
}

func (r *recorder) GetFile(context.Context, *telego.GetFileParams) (*telego.File, error) {
	return &telego.File{}, nil
}

func (r *recorder) FileDownloadURL(string) string { return "" }

func newContext(t *testing.T) (*bot.Context, *bot.Dispatcher, *config.Config) {
	t.Helper()
	store, err := permissions.NewStore(context.Background(), permissions.NewMemoryBackend())
	require.NoError(t, err)
	cfg := config.DefaultConfig()
	dp := bot.NewDispatcher()
	dp.RegisterPlugin(New())
	c := bot.NewContext(cfg, store, dp, nil)
	t.Cleanup(func() {
		c.Close()
		dp.Wait()
	})
	return c, dp, cfg
}

func message() telego.Message {
	return telego.Message{MessageID: 1, Chat: telego.Chat{ID: 5}, From: &telego.User{ID: 8}}
}

func TestPing(t *testing.T) {
	p := New()
	sent := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return sent.Add(2 * time.Second) }

	msg := message()
	msg.Date = sent.Unix()
	tr := &recorder{}
	require.NoError(t, p.onPing(context.Background(), tr, msg, command.Command{Name: "ping"}, nil))
	assert.Equal(t, []string{"Pong! (2s since sent)"}, tr.sent)

	tr = &recorder{}
	require.NoError(t, p.onPing(context.Background(), tr, message(), command.Command{Name: "ping"}, nil))
	assert.Equal(t, []string{"Pong!"}, tr.sent)
}

func TestPrefixes_ShowAndReplace(t *testing.T) {
	_, dp, cfg := newContext(t)
	tr := &recorder{}
	ctx := context.Background()

	require.NoError(t, onPrefixes(ctx, tr, message(), command.Command{Name: "prefixes"}, dp.Ref()))
	assert.Equal(t, "Current prefixes: /", tr.sent[0])

	require.NoError(t, onPrefixes(ctx, tr, message(), command.Command{Name: "prefixes", Args: []string{"!", "."}}, dp.Ref()))
	assert.Equal(t, "Prefixes updated: ! .", tr.sent[1])
	assert.Equal(t, []rune("!."), cfg.GetPrefixes())
}

func TestPrefixes_RejectsBlank(t *testing.T) {
	_, dp, cfg := newContext(t)

	err := onPrefixes(context.Background(), &recorder{}, message(), command.Command{Name: "prefixes", Args: []string{" "}}, dp.Ref())
	var ue *bot.UserError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, []rune("/"), cfg.GetPrefixes())
}

func TestPrefixes_TakeEffectOnNextMessage(t *testing.T) {
	_, dp, cfg := newContext(t)
	require.NoError(t, cfg.SetPrefixes([]rune("!")))

	msg := message()
	msg.Text = "/ping"
	outcome, err := dp.HandleMessage(context.Background(), &recorder{}, msg)
	require.NoError(t, err)
	assert.Equal(t, bot.OutcomeNoMatch, outcome)
}

func TestPrefixes_DisposedContext(t *testing.T) {
	c, dp, _ := newContext(t)
	c.Close()

	err := onPrefixes(context.Background(), &recorder{}, message(), command.Command{Name: "prefixes"}, dp.Ref())
	assert.ErrorIs(t, err, bot.ErrContextDisposed)
}

func TestLogUpdateNeverFails(t *testing.T) {
	msg := message()
	assert.NoError(t, logUpdate(context.Background(), nil, telego.Update{UpdateID: 1, Message: &msg}, nil))
	assert.NoError(t, logUpdate(context.Background(), nil, telego.Update{UpdateID: 2}, nil))
}

func TestUpdateKind(t *testing.T) {
	msg := message()
	assert.Equal(t, "message", updateKind(telego.Update{Message: &msg}))
	assert.Equal(t, "edited_message", updateKind(telego.Update{EditedMessage: &msg}))
	assert.Equal(t, "callback_query", updateKind(telego.Update{CallbackQuery: &telego.CallbackQuery{}}))
	assert.Equal(t, "other", updateKind(telego.Update{}))
}

func TestPluginShape(t *testing.T) {
	p := New()
	assert.Equal(t, "core", p.Name())
	assert.Len(t, p.UpdateHandlers(), 1)
	assert.Equal(t, permissions.User, p.Commands()["ping"].Permission)
	assert.Equal(t, permissions.Owner, p.Commands()["prefixes"].Permission)
}
