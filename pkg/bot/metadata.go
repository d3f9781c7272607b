package bot

import (
	"context"

	"github.com/mymmrac/telego"

	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/permissions"
)

// ReplyRequirement states whether a command expects to be sent as a reply.
type ReplyRequirement int

const (
	ReplyNone ReplyRequirement = iota
	ReplyOptional
	ReplyRequired
)

func (r ReplyRequirement) String() string {
	switch r {
	case ReplyNone:
		return "none"
	case ReplyOptional:
		return "optional"
	case ReplyRequired:
		return "required"
	}
	return "unknown"
}

// ArgRequirement describes when a positional argument must be given. It is
// documentation for users; handlers validate their own arguments.
type ArgRequirement int

const (
	ArgOptional ArgRequirement = iota
	ArgOnlyWithReply
	ArgOnlyWithoutReply
	ArgRequired
)

func (a ArgRequirement) String() string {
	switch a {
	case ArgOptional:
		return "optional"
	case ArgOnlyWithReply:
		return "only with reply"
	case ArgOnlyWithoutReply:
		return "only without reply"
	case ArgRequired:
		return "required"
	}
	return "unknown"
}

type ArgMetadata struct {
	Name        string
	Description string
	Requirement ArgRequirement
}

// CommandHandler runs in its own goroutine once the sender passed the
// permission check. ref must be resolved on every use.
type CommandHandler func(ctx context.Context, tr Transport, msg telego.Message, cmd command.Command, ref *ContextRef) error

// UpdateHandler sees every inbound update before command dispatch.
type UpdateHandler func(ctx context.Context, tr Transport, update telego.Update, ref *ContextRef) error

type CommandMetadata struct {
	Permission  permissions.Permission
	Description string
	Reply       ReplyRequirement
	Args        []ArgMetadata
	Handler     CommandHandler
}
