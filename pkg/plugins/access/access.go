// Package access lets the bot owner inspect and edit the permission store
// from chat.
package access

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/permissions"
)

type action int

const (
	actionGrant action = iota
	actionRevoke
	actionSet
	actionReset
)

func (a action) String() string {
	switch a {
	case actionGrant:
		return "grant"
	case actionRevoke:
		return "revoke"
	case actionSet:
		return "set"
	case actionReset:
		return "reset"
	}
	return "unknown"
}

func (a action) pastTense() string {
	switch a {
	case actionGrant:
		return "granted"
	case actionRevoke:
		return "revoked"
	case actionSet:
		return "set"
	}
	return "reset"
}

type Plugin struct{}

func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return "access" }

func (p *Plugin) UpdateHandlers() []bot.UpdateHandler { return nil }

func (p *Plugin) Commands() map[string]bot.CommandMetadata {
	userArg := func(desc string) bot.ArgMetadata {
		return bot.ArgMetadata{Name: "user_id", Description: desc, Requirement: bot.ArgOnlyWithoutReply}
	}
	permArg := func(desc string) bot.ArgMetadata {
		return bot.ArgMetadata{Name: "perm", Description: desc, Requirement: bot.ArgRequired}
	}

	return map[string]bot.CommandMetadata{
		"pmgrant": {
			Permission:  permissions.Owner,
			Description: "Grant a permission to a user",
			Reply:       bot.ReplyOptional,
			Args:        []bot.ArgMetadata{userArg("User to grant to"), permArg("Permission to grant")},
			Handler:     change(actionGrant),
		},
		"pmrevoke": {
			Permission:  permissions.Owner,
			Description: "Revoke a permission from a user",
			Reply:       bot.ReplyOptional,
			Args:        []bot.ArgMetadata{userArg("User to revoke from"), permArg("Permission to revoke")},
			Handler:     change(actionRevoke),
		},
		"pmset": {
			Permission:  permissions.Owner,
			Description: "Replace a user's permissions",
			Reply:       bot.ReplyOptional,
			Args:        []bot.ArgMetadata{userArg("User to update"), permArg("New permission")},
			Handler:     change(actionSet),
		},
		"pmreset": {
			Permission:  permissions.Owner,
			Description: "Remove every permission of a user",
			Reply:       bot.ReplyOptional,
			Args:        []bot.ArgMetadata{userArg("User to reset")},
			Handler:     change(actionReset),
		},
		"pmshow": {
			Permission:  permissions.Owner,
			Description: "Show stored permissions",
			Reply:       bot.ReplyOptional,
			Args:        []bot.ArgMetadata{{Name: "user_id", Description: "Only show this user", Requirement: bot.ArgOptional}},
			Handler:     show,
		},
	}
}

// target picks the user a command acts on: the author of the replied-to
// message, otherwise the first argument. rest holds the remaining arguments.
func target(msg telego.Message, cmd command.Command) (id permissions.UserID, rest []string, ok bool, err error) {
	if reply := msg.ReplyToMessage; reply != nil && reply.From != nil {
		return permissions.UserID(reply.From.ID), cmd.Args, true, nil
	}
	if len(cmd.Args) == 0 {
		return 0, nil, false, nil
	}
	id, err = permissions.ParseUserID(cmd.Args[0])
	if err != nil {
		return 0, nil, false, bot.UserErrorf("Invalid user id %q.", cmd.Args[0])
	}
	return id, cmd.Args[1:], true, nil
}

func usage(cmd command.Command, a action) error {
	if a == actionReset {
		return bot.UserErrorf("Usage: %c%s <user_id>, or reply to the user's message.", cmd.Prefix, cmd.Name)
	}
	return bot.UserErrorf("Usage: %c%s <user_id> <permission>, or reply to the user's message with %c%s <permission>.",
		cmd.Prefix, cmd.Name, cmd.Prefix, cmd.Name)
}

func change(a action) bot.CommandHandler {
	return func(ctx context.Context, tr bot.Transport, msg telego.Message, cmd command.Command, ref *bot.ContextRef) error {
		id, rest, ok, err := target(msg, cmd)
		if err != nil {
			return err
		}
		if !ok {
			return usage(cmd, a)
		}

		var perm permissions.Permission
		if a != actionReset {
			if len(rest) == 0 {
				return usage(cmd, a)
			}
			perm, err = permissions.ParsePermission(strings.Join(rest, "|"))
			if err != nil {
				return bot.UserErrorf("Unknown permission %q. Use USER, ADMIN or OWNER joined with |.", strings.Join(rest, " "))
			}
		}

		c, err := ref.Acquire()
		if err != nil {
			return err
		}
		store := c.Permissions()

		before, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		switch a {
		case actionGrant:
			err = store.Grant(ctx, id, perm)
		case actionRevoke:
			err = store.Revoke(ctx, id, perm)
		case actionSet:
			err = store.Set(ctx, id, perm)
		case actionReset:
			err = store.Reset(ctx, id)
		}
		if err != nil {
			return err
		}
		after, err := store.Get(ctx, id)
		if err != nil {
			return err
		}

		var actor int64
		if msg.From != nil {
			actor = msg.From.ID
		}
		if auditErr := c.Audit().PermissionChange(actor, int64(id), a.String(), before.String(), after.String()); auditErr != nil {
			logger.WarnCF("access", "Audit write failed", map[string]any{"error": auditErr.Error()})
		}
		logger.InfoCF("access", "Permission changed", map[string]any{
			"actor":  actor,
			"user":   int64(id),
			"action": a.String(),
			"before": before.String(),
			"after":  after.String(),
		})

		var text string
		if a == actionReset {
			text = fmt.Sprintf("Permissions reset\nUser: %d\nAll permissions have been removed.", id)
		} else {
			text = fmt.Sprintf("Permission update\nUser: %d\nPermission: %s\nAction: %s\nNow: %s",
				id, perm, a.pastTense(), after)
		}
		_, err = tr.SendMessage(ctx, bot.Reply(msg, text))
		return err
	}
}

func show(ctx context.Context, tr bot.Transport, msg telego.Message, cmd command.Command, ref *bot.ContextRef) error {
	id, _, hasTarget, err := target(msg, cmd)
	if err != nil {
		return err
	}

	c, err := ref.Acquire()
	if err != nil {
		return err
	}
	snapshot, err := c.Permissions().Snapshot(ctx)
	if err != nil {
		return err
	}

	var text string
	switch {
	case hasTarget:
		perm, ok := snapshot[id]
		if !ok {
			return bot.UserErrorf("No permissions stored for user %d.", id)
		}
		text = fmt.Sprintf("User: %d\nPermission: %s", id, perm)
	case len(snapshot) == 0:
		return bot.UserErrorf("The permission map is empty.")
	default:
		text = formatMap(snapshot)
	}

	_, err = tr.SendMessage(ctx, bot.Reply(msg, text))
	return err
}

func formatMap(m permissions.Map) string {
	ids := make([]permissions.UserID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	b.WriteString("Current permission map:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "\n%d: %s", id, m[id])
	}
	return b.String()
}
