// Package integration manages the lifecycle of configured entries: setup,
// options changes, reloads, unloads and the reset-now service.
package integration

import (
	"sort"
	"sync"

	"github.com/benvon/todo-reset/internal/entity"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
)

// Handle is a loaded entry together with its live status entity.
type Handle struct {
	Entry  models.Entry
	Entity *entity.ResetEntity
}

// Registry maps entry ids to their loaded handles.
type Registry struct {
	mu      sync.RWMutex
	handles map[uuid.UUID]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[uuid.UUID]*Handle)}
}

// Put inserts a handle. It reports false and changes nothing if the entry is already loaded.
func (r *Registry) Put(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[h.Entry.ID]; ok {
		return false
	}
	r.handles[h.Entry.ID] = &h
	return true
}

// Get returns a copy of the handle for id.
func (r *Registry) Get(id uuid.UUID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	if !ok {
		return Handle{}, false
	}
	return *h, true
}

// Update replaces the stored entry settings of a loaded entry.
func (r *Registry) Update(entry models.Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[entry.ID]
	if !ok {
		return false
	}
	h.Entry = entry
	return true
}

// Remove deletes and returns the handle for id. Only the first call for a
// loaded entry gets ok == true.
func (r *Registry) Remove(id uuid.UUID) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return Handle{}, false
	}
	delete(r.handles, id)
	return *h, true
}

// List returns every handle, oldest entry first.
func (r *Registry) List() []Handle {
	r.mu.RLock()
	out := make([]Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, *h)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry.CreatedAt.Equal(out[j].Entry.CreatedAt) {
			return out[i].Entry.ID.String() < out[j].Entry.ID.String()
		}
		return out[i].Entry.CreatedAt.Before(out[j].Entry.CreatedAt)
	})
	return out
}

// Len returns the number of loaded entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
