package permissions

import (
	"context"
	"fmt"
	"sync"
)

// StoreError reports that the backend could not complete an operation. The
// store cannot make a trustworthy access decision when this happens.
type StoreError struct {
	Op   string
	User UserID
	Err  error
}

func (e *StoreError) Error() string {
	if e.User != 0 {
		return fmt.Sprintf("permission store: %s %d: %v", e.Op, e.User, e.Err)
	}
	return fmt.Sprintf("permission store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store serializes all access to a Backend. Every method holds the lock for
// its whole read-modify-write, so a Grant is visible to the next Get and a
// LoadSnapshot is seen entirely or not at all.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// NewStore initialises backend and wraps it. Init is idempotent, so this is
// safe on every boot.
func NewStore(ctx context.Context, backend Backend) (*Store, error) {
	if err := backend.Init(ctx); err != nil {
		return nil, &StoreError{Op: "init", Err: err}
	}
	return &Store{backend: backend}, nil
}

// Get returns the stored mask, or None for an unknown user.
func (s *Store) Get(ctx context.Context, id UserID) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *Store) get(ctx context.Context, id UserID) (Permission, error) {
	perm, _, err := s.backend.Get(ctx, id)
	if err != nil {
		return None, &StoreError{Op: "get", User: id, Err: err}
	}
	return perm, nil
}

// Set overwrites the stored mask.
func (s *Store) Set(ctx context.Context, id UserID, perm Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Put(ctx, id, perm.Truncate()); err != nil {
		return &StoreError{Op: "set", User: id, Err: err}
	}
	return nil
}

// Grant adds the bits of delta to the stored mask.
func (s *Store) Grant(ctx context.Context, id UserID, delta Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, id, (current | delta).Truncate()); err != nil {
		return &StoreError{Op: "grant", User: id, Err: err}
	}
	return nil
}

// Revoke removes the bits of delta from the stored mask. Revoking bits the
// user never had leaves storage untouched.
func (s *Store) Revoke(ctx context.Context, id UserID, delta Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return &StoreError{Op: "revoke", User: id, Err: err}
	}
	next := current &^ delta
	if !ok || next == current {
		return nil
	}
	if err := s.backend.Put(ctx, id, next); err != nil {
		return &StoreError{Op: "revoke", User: id, Err: err}
	}
	return nil
}

// Reset deletes the stored mask, so the user reads as None again.
func (s *Store) Reset(ctx context.Context, id UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Delete(ctx, id); err != nil {
		return &StoreError{Op: "reset", User: id, Err: err}
	}
	return nil
}

// Clear removes every stored mask.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Clear(ctx); err != nil {
		return &StoreError{Op: "clear", Err: err}
	}
	return nil
}

// Has reports whether the user holds every bit of mask.
func (s *Store) Has(ctx context.Context, id UserID, mask Permission) (bool, error) {
	perm, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return perm.Has(mask), nil
}

// Can reports whether the user's level is at least mask's level. This is the
// check used to gate commands.
func (s *Store) Can(ctx context.Context, id UserID, mask Permission) (bool, error) {
	perm, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return perm.Can(mask), nil
}

// Snapshot returns a copy of every stored mask.
func (s *Store) Snapshot(ctx context.Context) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.backend.All(ctx)
	if err != nil {
		return nil, &StoreError{Op: "snapshot", Err: err}
	}
	return m, nil
}

// LoadSnapshot replaces all stored masks with m. Unknown bits are dropped.
func (s *Store) LoadSnapshot(ctx context.Context, m Map) error {
	clean := make(Map, len(m))
	for id, perm := range m {
		clean[id] = perm.Truncate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Replace(ctx, clean); err != nil {
		return &StoreError{Op: "load snapshot", Err: err}
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}
