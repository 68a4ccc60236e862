package entity

import (
	"context"
	"errors"
	"sync"

	"github.com/benvon/todo-reset/internal/models"
)

// ErrStatusNotFound is returned by Load when no status was stored for an entry.
var ErrStatusNotFound = errors.New("status not found")

// MutateFunc edits a snapshot in place. Returning false discards the edit.
type MutateFunc func(s *models.StatusSnapshot) bool

// StatusStore persists status snapshots. Update is atomic with respect to
// other Updates of the same entry, so a read-check-write transition cannot
// interleave with another one.
type StatusStore interface {
	Load(ctx context.Context, entryID string) (*models.StatusSnapshot, error)
	// Update loads the snapshot (zero value when absent), applies fn and
	// writes the result if fn returned true. It returns the snapshot as it
	// stands afterwards and whether it was written.
	Update(ctx context.Context, entryID string, fn MutateFunc) (*models.StatusSnapshot, bool, error)
	Delete(ctx context.Context, entryID string) error
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string]models.StatusSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]models.StatusSnapshot)}
}

func (m *MemoryStore) Load(ctx context.Context, entryID string) (*models.StatusSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[entryID]
	if !ok {
		return nil, ErrStatusNotFound
	}
	return cloneSnapshot(s), nil
}

func (m *MemoryStore) Update(ctx context.Context, entryID string, fn MutateFunc) (*models.StatusSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.snapshots[entryID]
	next := cloneSnapshot(current)
	if !fn(next) {
		return cloneSnapshot(current), false, nil
	}
	m.snapshots[entryID] = *next
	return cloneSnapshot(*next), true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, entryID)
	return nil
}

func cloneSnapshot(s models.StatusSnapshot) *models.StatusSnapshot {
	if s.LastReset != nil {
		t := *s.LastReset
		s.LastReset = &t
	}
	if s.ResetStartedAt != nil {
		t := *s.ResetStartedAt
		s.ResetStartedAt = &t
	}
	return &s
}
