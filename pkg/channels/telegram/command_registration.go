package telegram

import (
	"context"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/logger"
)

var commandRegistrationBackoff = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	10 * time.Minute,
}

// Telegram accepts only these names in the command menu.
var menuCommandName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

const maxMenuDescription = 256

// MenuCommands converts the dispatcher's table into menu entries. Commands
// without a description or with a name Telegram rejects are left out.
func MenuCommands(cmds []bot.NamedCommand) []telego.BotCommand {
	out := make([]telego.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.Description == "" || !menuCommandName.MatchString(c.Name) {
			continue
		}
		desc := c.Description
		if utf8.RuneCountInString(desc) > maxMenuDescription {
			desc = string([]rune(desc)[:maxMenuDescription-1]) + "…"
		}
		out = append(out, telego.BotCommand{Command: c.Name, Description: desc})
	}
	return out
}

// RegisterCommands publishes the current command table once.
func (r *Runner) RegisterCommands(ctx context.Context) error {
	cmds := MenuCommands(r.dp.Commands())
	if len(cmds) == 0 {
		return nil
	}
	return r.register(ctx, cmds)
}

func (r *Runner) registerWithRetry(ctx context.Context) {
	attempt := 0
	for {
		err := r.RegisterCommands(ctx)
		if err == nil {
			logger.InfoCF("telegram", "Telegram commands registered", map[string]any{
				"count": len(r.dp.Commands()),
			})
			return
		}

		delay := commandRegistrationBackoff[min(attempt, len(commandRegistrationBackoff)-1)]
		logger.WarnCF("telegram", "Telegram command registration failed; will retry", map[string]any{
			"error":       err.Error(),
			"retry_after": delay.String(),
		})
		attempt++

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
