// Package core holds the commands every deployment needs plus the update
// logger.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/permissions"
)

type Plugin struct {
	now func() time.Time
}

func New() *Plugin {
	return &Plugin{now: time.Now}
}

func (p *Plugin) Name() string { return "core" }

func (p *Plugin) Commands() map[string]bot.CommandMetadata {
	return map[string]bot.CommandMetadata{
		"ping": {
			Permission:  permissions.User,
			Description: "Check that the bot is responding",
			Handler:     p.onPing,
		},
		"prefixes": {
			Permission:  permissions.Owner,
			Description: "Show or replace the command prefixes",
			Args: []bot.ArgMetadata{{
				Name:        "prefixes",
				Description: "New prefix characters, e.g. \"/!\"",
				Requirement: bot.ArgOptional,
			}},
			Handler: onPrefixes,
		},
	}
}

func (p *Plugin) UpdateHandlers() []bot.UpdateHandler {
	return []bot.UpdateHandler{logUpdate}
}

func (p *Plugin) onPing(ctx context.Context, tr bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
	text := "Pong!"
	if msg.Date > 0 {
		lag := p.now().Sub(time.Unix(msg.Date, 0)).Round(time.Second)
		if lag >= 0 {
			text = fmt.Sprintf("Pong! (%s since sent)", lag)
		}
	}
	_, err := tr.SendMessage(ctx, bot.Reply(msg, text))
	return err
}

func onPrefixes(ctx context.Context, tr bot.Transport, msg telego.Message, cmd command.Command, ref *bot.ContextRef) error {
	c, err := ref.Acquire()
	if err != nil {
		return err
	}
	cfg := c.Config()
	before := string(cfg.GetPrefixes())

	if len(cmd.Args) == 0 {
		_, err = tr.SendMessage(ctx, bot.Reply(msg, "Current prefixes: "+spaced(before)))
		return err
	}

	next := []rune(strings.Join(cmd.Args, ""))
	if err := cfg.SetPrefixes(next); err != nil {
		return bot.UserErrorf("Invalid prefixes: %v.", err)
	}
	after := string(cfg.GetPrefixes())

	var actor int64
	if msg.From != nil {
		actor = msg.From.ID
	}
	if auditErr := c.Audit().ConfigChange(actor, "prefixes", before, after); auditErr != nil {
		logger.WarnCF("core", "Audit write failed", map[string]any{"error": auditErr.Error()})
	}
	logger.InfoCF("core", "Command prefixes changed", map[string]any{
		"actor":  actor,
		"before": before,
		"after":  after,
	})

	_, err = tr.SendMessage(ctx, bot.Reply(msg, "Prefixes updated: "+spaced(after)))
	return err
}

func spaced(prefixes string) string {
	return strings.Join(strings.Split(prefixes, ""), " ")
}

func logUpdate(_ context.Context, _ bot.Transport, update telego.Update, _ *bot.ContextRef) error {
	fields := map[string]any{
		"update_id": update.UpdateID,
		"kind":      updateKind(update),
	}
	if msg := update.Message; msg != nil {
		fields["chat_id"] = msg.Chat.ID
		if msg.From != nil {
			fields["user_id"] = msg.From.ID
		}
	}
	logger.DebugCF("core", "Update received", fields)
	return nil
}

func updateKind(update telego.Update) string {
	switch {
	case update.Message != nil:
		return "message"
	case update.EditedMessage != nil:
		return "edited_message"
	case update.ChannelPost != nil:
		return "channel_post"
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.InlineQuery != nil:
		return "inline_query"
	case update.MyChatMember != nil:
		return "my_chat_member"
	}
	return "other"
}
