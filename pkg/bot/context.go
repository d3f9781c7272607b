package bot

import (
	"errors"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/sipeed/picobot/pkg/audit"
	"github.com/sipeed/picobot/pkg/config"
	"github.com/sipeed/picobot/pkg/permissions"
)

// ErrContextDisposed is returned once the shared Context is closed or
// collected. It means the bot is shutting down; callers stop quietly.
var ErrContextDisposed = errors.New("bot context disposed")

// Context is the state shared by the dispatcher and every handler. The
// caller of NewContext is its only strong owner; everything else reaches it
// through a ContextRef.
type Context struct {
	cfg    *config.Config
	perms  *permissions.Store
	dp     *Dispatcher
	tr     Transport
	audit  *audit.Logger
	closed atomic.Bool
}

type ContextOption func(*Context)

// WithAudit attaches the audit trail. Without it Audit returns nil, which
// drops events.
func WithAudit(l *audit.Logger) ContextOption {
	return func(c *Context) { c.audit = l }
}

// NewContext builds the shared context and points dp's reference at it.
func NewContext(cfg *config.Config, perms *permissions.Store, dp *Dispatcher, tr Transport, opts ...ContextOption) *Context {
	c := &Context{
		cfg:   cfg,
		perms: perms,
		dp:    dp,
		tr:    tr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if dp != nil {
		dp.Bind(c)
	}
	return c
}

func (c *Context) Config() *config.Config { return c.cfg }
func (c *Context) Permissions() *permissions.Store { return c.perms }
func (c *Context) Dispatcher() *Dispatcher { return c.dp }
func (c *Context) Transport() Transport { return c.tr }
func (c *Context) Audit() *audit.Logger { return c.audit }

// Close disposes the context. Every ContextRef fails to resolve afterwards,
// even while the owner still holds the pointer.
func (c *Context) Close() {
	c.closed.Store(true)
}

func (c *Context) Closed() bool {
	return c.closed.Load()
}

// ContextRef is a weak handle to the shared Context. Resolve it at each use
// and never keep the result beyond the current operation.
type ContextRef struct {
	mu sync.RWMutex
	wp weak.Pointer[Context]
}

// NewContextRef returns a ref that does not resolve until Set is called.
func NewContextRef() *ContextRef {
	return &ContextRef{}
}

func (r *ContextRef) Set(c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wp = weak.Make(c)
}

// Resolve returns the live context, or false when it was never bound, was
// closed, or has been collected.
func (r *ContextRef) Resolve() (*Context, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	wp := r.wp
	r.mu.RUnlock()

	c := wp.Value()
	if c == nil || c.Closed() {
		return nil, false
	}
	return c, true
}

// Acquire is Resolve reporting a miss as ErrContextDisposed.
func (r *ContextRef) Acquire() (*Context, error) {
	c, ok := r.Resolve()
	if !ok {
		return nil, ErrContextDisposed
	}
	return c, nil
}
