// Package guard prevents duplicate submission of a user action.
//
// The web client disables the share button while a snapshot is being built.
// The server enforces the same thing: a Guard admits one holder per key, and
// a second Acquire for a held key fails with ErrBusy instead of waiting.
package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when the key is already held.
var ErrBusy = errors.New("guard: action already in progress")

// Guard hands out exclusive, non-blocking holds on string keys.
type Guard interface {
	// Acquire takes the hold on key or returns ErrBusy. The returned release
	// function must be called exactly once; calling it again is a no-op.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Memory is a process-local Guard.
//
// map[string]struct{} is Go's set: the empty struct takes no memory, only
// the presence of the key matters.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ Guard = (*Memory)(nil)

// NewMemory returns an empty in-process guard.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, key string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.held[key]; ok {
		return nil, ErrBusy
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}
