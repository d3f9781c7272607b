package permissions

import (
	"context"
	"maps"
)

// MemoryBackend keeps permissions in a map. Nothing survives a restart.
type MemoryBackend struct {
	m Map
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{m: make(Map)}
}

func (b *MemoryBackend) Init(context.Context) error { return nil }

func (b *MemoryBackend) Get(_ context.Context, id UserID) (Permission, bool, error) {
	perm, ok := b.m[id]
	return perm, ok, nil
}

func (b *MemoryBackend) Put(_ context.Context, id UserID, perm Permission) error {
	b.m[id] = perm
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, id UserID) error {
	delete(b.m, id)
	return nil
}

func (b *MemoryBackend) All(context.Context) (Map, error) {
	return maps.Clone(b.m), nil
}

func (b *MemoryBackend) Clear(context.Context) error {
	clear(b.m)
	return nil
}

func (b *MemoryBackend) Replace(_ context.Context, m Map) error {
	b.m = maps.Clone(m)
	if b.m == nil {
		b.m = make(Map)
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
