package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/mymmrac/telego"

	"github.com/sipeed/picobot/pkg/command"
	"github.com/sipeed/picobot/pkg/logger"
	"github.com/sipeed/picobot/pkg/permissions"
)

// Outcome says how far an inbound message got through dispatch. Every value
// but OutcomeDispatched is an expected miss, not a fault.
type Outcome int

const (
	OutcomeNoSender Outcome = iota
	OutcomeNoText
	OutcomeNoMatch
	OutcomeUnknown
	OutcomeDisposed
	OutcomeDenied
	OutcomeThrottled
	OutcomeDispatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoSender:
		return "no_sender"
	case OutcomeNoText:
		return "no_text"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeUnknown:
		return "unknown_command"
	case OutcomeDisposed:
		return "context_disposed"
	case OutcomeDenied:
		return "denied"
	case OutcomeThrottled:
		return "throttled"
	case OutcomeDispatched:
		return "dispatched"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// CommandGate is consulted for every message that parses as a command,
// before the permission check. Returning false drops the command.
type CommandGate func(ctx context.Context, msg telego.Message, cmd command.Command) bool

// Dispatcher merges plugin commands into one table and routes updates to
// them. It reaches the shared Context only through a weak reference.
type Dispatcher struct {
	ref *ContextRef

	mu       sync.RWMutex
	order    []string
	commands map[string]CommandMetadata
	updates  []UpdateHandler
	plugins  []Plugin
	byName   map[string]int
	gate     CommandGate

	running  sync.WaitGroup
	lifetime context.Context
	stop     context.CancelFunc
}

// NewDispatcher returns an empty dispatcher whose context reference does not
// resolve until NewContext binds it.
func NewDispatcher() *Dispatcher {
	lifetime, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		ref:      NewContextRef(),
		commands: make(map[string]CommandMetadata),
		byName:   make(map[string]int),
		lifetime: lifetime,
		stop:     stop,
	}
}

// Bind points the dispatcher's weak reference at c.
func (d *Dispatcher) Bind(c *Context) {
	d.ref.Set(c)
}

// Ref returns the weak context reference handed to handlers.
func (d *Dispatcher) Ref() *ContextRef {
	return d.ref
}

// RegisterPlugin appends p's update handlers and merges its commands. A
// command name already in the table keeps its position and takes the new
// metadata. A plugin with the same name replaces the earlier one.
func (d *Dispatcher) RegisterPlugin(p Plugin) {
	if p == nil {
		return
	}
	name := p.Name()
	cmds := p.Commands()
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	slices.Sort(names)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.updates = append(d.updates, p.UpdateHandlers()...)

	for _, n := range names {
		if _, exists := d.commands[n]; exists {
			logger.DebugCF("dispatcher", "Command overridden by later plugin", map[string]any{
				"command": n,
				"plugin":  name,
			})
		} else {
			d.order = append(d.order, n)
		}
		d.commands[n] = cmds[n]
	}

	if i, ok := d.byName[name]; ok {
		d.plugins[i] = p
		logger.DebugCF("dispatcher", "Plugin replaced", map[string]any{"plugin": name})
		return
	}
	d.byName[name] = len(d.plugins)
	d.plugins = append(d.plugins, p)
}

// SetCommandGate installs g in front of command dispatch. Raw update handlers
// and plain chat messages never reach it.
func (d *Dispatcher) SetCommandGate(g CommandGate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = g
}

func (d *Dispatcher) commandGate() CommandGate {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gate
}

func (d *Dispatcher) RegisterAll(plugins ...Plugin) {
	for _, p := range plugins {
		d.RegisterPlugin(p)
	}
}

func (d *Dispatcher) Command(name string) (CommandMetadata, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	meta, ok := d.commands[name]
	return meta, ok
}

// NamedCommand pairs a command name with its metadata.
type NamedCommand struct {
	Name string
	CommandMetadata
}

// Commands returns the merged table in registration order.
func (d *Dispatcher) Commands() []NamedCommand {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]NamedCommand, 0, len(d.order))
	for _, n := range d.order {
		out = append(out, NamedCommand{Name: n, CommandMetadata: d.commands[n]})
	}
	return out
}

// Plugins returns registered plugins in first-registration order.
func (d *Dispatcher) Plugins() []Plugin {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.plugins)
}

func (d *Dispatcher) updateHandlers() []UpdateHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.updates)
}

// HandleUpdate runs every update handler in order, then dispatches the
// update's message if it has one. The context is resolved before each
// handler; once it is gone the remaining handlers are skipped and
// ErrContextDisposed is returned. Handler errors are logged, not returned.
func (d *Dispatcher) HandleUpdate(ctx context.Context, tr Transport, update telego.Update) error {
	for i, h := range d.updateHandlers() {
		if _, ok := d.ref.Resolve(); !ok {
			return ErrContextDisposed
		}
		if err := runUpdateHandler(ctx, h, tr, update, d.ref); err != nil {
			logger.WarnCF("dispatcher", "Update handler failed", map[string]any{
				"update_id": update.UpdateID,
				"handler":   i,
				"error":     err.Error(),
			})
		}
	}

	if update.Message == nil {
		return nil
	}
	_, err := d.HandleMessage(ctx, tr, *update.Message)
	return err
}

func runUpdateHandler(ctx context.Context, h UpdateHandler, tr Transport, update telego.Update, ref *ContextRef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update handler panicked: %v", r)
		}
	}()
	return h(ctx, tr, update, ref)
}

// HandleMessage parses msg against the prefixes configured right now, passes
// the command through the gate, and dispatches it.
func (d *Dispatcher) HandleMessage(ctx context.Context, tr Transport, msg telego.Message) (Outcome, error) {
	if msg.Text == "" {
		return OutcomeNoText, nil
	}
	c, ok := d.ref.Resolve()
	if !ok {
		return OutcomeDisposed, ErrContextDisposed
	}
	prefixes := c.Config().GetPrefixes()

	cmd, ok := command.ParseAny(msg.Text, prefixes)
	if !ok {
		return OutcomeNoMatch, nil
	}
	if gate := d.commandGate(); gate != nil && msg.From != nil && !gate(ctx, msg, cmd) {
		return OutcomeThrottled, nil
	}
	return d.HandleCommand(ctx, tr, msg, cmd)
}

// HandleCommand checks the sender's permission and starts the handler in its
// own goroutine. A store failure denies the command and is returned.
func (d *Dispatcher) HandleCommand(ctx context.Context, tr Transport, msg telego.Message, cmd command.Command) (Outcome, error) {
	if msg.From == nil {
		return OutcomeNoSender, nil
	}
	meta, ok := d.Command(cmd.Name)
	if !ok || meta.Handler == nil {
		return OutcomeUnknown, nil
	}

	c, ok := d.ref.Resolve()
	if !ok {
		return OutcomeDisposed, ErrContextDisposed
	}
	store := c.Permissions()
	trail := c.Audit()

	sender := permissions.UserID(msg.From.ID)
	if store == nil {
		return OutcomeDenied, errors.New("permission store is not configured")
	}
	allowed, err := store.Can(ctx, sender, meta.Permission)
	if err != nil {
		return OutcomeDenied, fmt.Errorf("checking permission for %q: %w", cmd.Name, err)
	}
	if auditErr := trail.CommandDecision(int64(sender), msg.Chat.ID, cmd.Name, allowed); auditErr != nil {
		logger.WarnCF("dispatcher", "Audit write failed", map[string]any{"error": auditErr.Error()})
	}
	if !allowed {
		logger.DebugCF("dispatcher", "Command denied", map[string]any{
			"command": cmd.Name,
			"user_id": int64(sender),
			"need":    meta.Permission.String(),
		})
		return OutcomeDenied, nil
	}

	d.spawn(ctx, meta.Handler, tr, msg, cmd)
	return OutcomeDispatched, nil
}

// spawn runs h detached from the caller. The handler context keeps ctx's
// values but not its cancellation; Shutdown cancels it.
func (d *Dispatcher) spawn(ctx context.Context, h CommandHandler, tr Transport, msg telego.Message, cmd command.Command) {
	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(d.lifetime, cancel)

	d.running.Add(1)
	go func() {
		defer d.running.Done()
		defer cancel()
		defer stopAfter()

		err := runCommandHandler(hctx, h, tr, msg, cmd, d.ref)
		switch {
		case err == nil:
		case errors.Is(err, ErrContextDisposed):
			logger.DebugCF("dispatcher", "Command abandoned, bot is shutting down", map[string]any{
				"command": cmd.Name,
			})
		default:
			logger.ErrorCF("dispatcher", "Command failed", map[string]any{
				"command": cmd.Name,
				"chat_id": msg.Chat.ID,
				"error":   err.Error(),
			})
			ReportError(hctx, tr, msg, err)
		}
	}()
}

func runCommandHandler(ctx context.Context, h CommandHandler, tr Transport, msg telego.Message, cmd command.Command, ref *ContextRef) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("dispatcher", "Command handler panicked", map[string]any{
				"command": cmd.Name,
				"stack":   string(debug.Stack()),
			})
			err = fmt.Errorf("command %q panicked: %v", cmd.Name, r)
		}
	}()
	return h(ctx, tr, msg, cmd, ref)
}

// Wait blocks until every dispatched handler has returned.
func (d *Dispatcher) Wait() {
	d.running.Wait()
}

// Shutdown cancels the context of running handlers and waits for them until
// ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stop()
	done := make(chan struct{})
	go func() {
		d.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
