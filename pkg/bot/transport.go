package bot

import (
	"context"

	"github.com/mymmrac/telego"
)

// Transport is the outbound half of the Bot API that handlers use to talk
// back to a chat. *telego.Bot satisfies it.
type Transport interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
}

var _ Transport = (*telego.Bot)(nil)
