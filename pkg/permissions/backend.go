package permissions

import "context"

// Backend is the durable storage behind a Store. Implementations need not be
// safe for concurrent use; Store serializes every call.
type Backend interface {
	// Init prepares storage. It must be safe to call on every boot.
	Init(ctx context.Context) error
	// Get returns the stored mask and whether one exists.
	Get(ctx context.Context, id UserID) (Permission, bool, error)
	Put(ctx context.Context, id UserID, perm Permission) error
	Delete(ctx context.Context, id UserID) error
	All(ctx context.Context) (Map, error)
	Clear(ctx context.Context) error
	// Replace swaps the whole content for m in one step.
	Replace(ctx context.Context, m Map) error
	Close() error
}
