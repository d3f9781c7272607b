package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/sipeed/picobot/pkg/logger"
)

// UserError is an error whose message is meant for the chat as is, such as
// a usage hint.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

func UserErrorf(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// ReportError replies to msg with a short description of err. Internal
// errors are not echoed to the chat.
func ReportError(ctx context.Context, tr Transport, msg telego.Message, err error) {
	if tr == nil || err == nil {
		return
	}
	text := "Something went wrong while running this command."
	var ue *UserError
	if errors.As(err, &ue) {
		text = ue.Msg
	}
	if _, sendErr := tr.SendMessage(ctx, Reply(msg, text)); sendErr != nil {
		logger.WarnCF("dispatcher", "Failed to report error to chat", map[string]any{
			"chat_id": msg.Chat.ID,
			"error":   sendErr.Error(),
		})
	}
}

// Reply builds a plain text message answering msg in its chat.
func Reply(msg telego.Message, text string) *telego.SendMessageParams {
	params := tu.Message(tu.ID(msg.Chat.ID), text)
	if msg.MessageID != 0 {
		params.ReplyParameters = &telego.ReplyParameters{
			MessageID:                msg.MessageID,
			AllowSendingWithoutReply: true,
		}
	}
	return params
}
