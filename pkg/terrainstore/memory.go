package terrainstore

import (
	"context"
	"sync"

	"github.com/simwire/simwire/pkg/terrain"
)

// MemoryStore keeps patches in memory. It is the default store and
// suitable for tests and regions whose terrain is rebuilt on start.
type MemoryStore struct {
	mu      sync.RWMutex
	patches map[[2]int]terrain.Patch
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patches: make(map[[2]int]terrain.Patch),
	}
}

// GetPatch returns the patch at (x, y).
func (m *MemoryStore) GetPatch(ctx context.Context, x, y int) (terrain.Patch, error) {
	if err := checkCoords(x, y); err != nil {
		return terrain.Patch{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return terrain.Patch{}, ErrStoreClosed
	}
	p, ok := m.patches[[2]int{x, y}]
	if !ok {
		return terrain.Patch{}, ErrNotFound
	}
	return p, nil
}

// SetPatch stores a copy of p at (x, y).
func (m *MemoryStore) SetPatch(ctx context.Context, x, y int, p terrain.Patch) error {
	if err := checkCoords(x, y); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	p.X, p.Y = x, y
	m.patches[[2]int{x, y}] = p
	return nil
}

// Len returns the number of stored patches.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patches)
}

// Close drops every patch.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.patches = nil
	return nil
}
