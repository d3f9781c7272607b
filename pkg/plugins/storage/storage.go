// Package storage lets admins move files between a chat and the bot's data
// directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/sipeed/picobot/internal/infra"
	"github.com/sipeed/picobot/pkg/bot"
	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/permissions"
)

const (
	unnamedFile     = "__unnamed__"
	downloadTimeout = 5 * time.Minute
)

// DefaultDir is the data directory used when none is configured.
func DefaultDir() string {
	return filepath.Join(infra.ResolveHomeDir(), "storage")
}

type Plugin struct {
	dir    string
	client *http.Client
}

func New(dir string) *Plugin {
	return &Plugin{
		dir:    dir,
		client: &http.Client{Timeout: downloadTimeout},
	}
}

func (p *Plugin) Name() string { return "storage" }

func (p *Plugin) Dir() string { return p.dir }

func (p *Plugin) UpdateHandlers() []bot.UpdateHandler { return nil }

func (p *Plugin) Commands() map[string]bot.CommandMetadata {
	return map[string]bot.CommandMetadata{
		"stload": {
			Permission:  permissions.Admin,
			Description: "Save the attached or replied-to document",
			Handler:     p.onLoad,
		},
		"stdrop": {
			Permission:  permissions.Admin,
			Description: "Send a stored file back to the chat",
			Args: []bot.ArgMetadata{{
				Name:        "file",
				Description: "Path relative to the data directory",
				Requirement: bot.ArgRequired,
			}},
			Handler: p.onDrop,
		},
		"stlist": {
			Permission:  permissions.Admin,
			Description: "List the stored files",
			Handler:     p.onList,
		},
	}
}

// Document returns the document attached to msg, or failing that the one
// attached to the message it replies to.
func Document(msg telego.Message) *telego.Document {
	if msg.Document != nil {
		return msg.Document
	}
	if msg.ReplyToMessage != nil {
		return msg.ReplyToMessage.Document
	}
	return nil
}

// resolve maps a user supplied name onto a path inside the data directory.
func (p *Plugin) resolve(name string) (string, error) {
	name = filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(name) {
		return "", bot.UserErrorf("invalid file name %q", name)
	}
	return filepath.Join(p.dir, name), nil
}

func (p *Plugin) onLoad(ctx context.Context, tr bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
	doc := Document(msg)
	if doc == nil {
		return bot.UserErrorf("document not found")
	}

	name := filepath.Base(doc.FileName)
	if doc.FileName == "" || name == "." || name == string(filepath.Separator) {
		name = unnamedFile
	}
	path, err := p.resolve(name)
	if err != nil {
		return err
	}

	status, err := tr.SendMessage(ctx, bot.Reply(msg, "Loading file..."))
	if err != nil {
		return err
	}

	if err := p.download(ctx, tr, doc.FileID, path); err != nil {
		return fmt.Errorf("download %s: %w", doc.FileID, err)
	}
	logger.InfoCF("storage", "File stored", map[string]any{
		"path":    path,
		"file_id": doc.FileID,
	})

	_, err = tr.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(msg.Chat.ID),
		MessageID: status.MessageID,
		Text:      "File downloaded at " + path,
	})
	return err
}

func (p *Plugin) download(ctx context.Context, tr bot.Transport, fileID, path string) error {
	file, err := tr.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return err
	}
	if file.FilePath == "" {
		return errors.New("telegram returned no file path")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tr.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (p *Plugin) onDrop(ctx context.Context, tr bot.Transport, msg telego.Message, cmd command.Command, _ *bot.ContextRef) error {
	if len(cmd.Args) == 0 {
		return bot.UserErrorf("usage: %cstdrop <file>", cmd.Prefix)
	}
	path, err := p.resolve(cmd.Args[0])
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return bot.UserErrorf("file not found: %s", cmd.Args[0])
	}

	status, err := tr.SendMessage(ctx, bot.Reply(msg, "Dropping file..."))
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	params := tu.Document(tu.ID(msg.Chat.ID), tu.File(f)).WithCaption("Success")
	if _, err := tr.SendDocument(ctx, params); err != nil {
		return err
	}

	return tr.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(msg.Chat.ID),
		MessageID: status.MessageID,
	})
}

// Tree renders the contents of dir one entry per line, indented two spaces
// per level. Directories end with a slash.
func Tree(dir string) (string, error) {
	var b strings.Builder
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		depth := strings.Count(rel, string(filepath.Separator))
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(d.Name())
		if d.IsDir() {
			b.WriteByte('/')
		}
		b.WriteByte('\n')
		return nil
	})
	return b.String(), err
}

func (p *Plugin) onList(ctx context.Context, tr bot.Transport, msg telego.Message, _ command.Command, _ *bot.ContextRef) error {
	tree, err := Tree(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		tree, err = "", nil
	}
	if err != nil {
		return err
	}
	if tree == "" {
		tree = "(empty)\n"
	}
	_, err = tr.SendMessage(ctx, bot.Reply(msg, "File tree:\n"+strings.TrimSuffix(tree, "\n")))
	return err
}
