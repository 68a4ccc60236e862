package homeassistant

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benvon/todo-reset/internal/models"
)

// UpdateCall records one UpdateItem invocation on a FakeClient.
type UpdateCall struct {
	EntityID string
	UID      string
	Status   models.ItemStatus
}

// FakeClient is an in-memory Client for tests. Lists and states can be seeded
// directly; every update is recorded in call order.
type FakeClient struct {
	mu      sync.Mutex
	lists   map[string][]models.TodoItem
	states  map[string]EntityState
	updates []UpdateCall

	// GetItemsErr, UpdateItemErr and SetStateErr force failures when set.
	GetItemsErr   error
	UpdateItemErr error
	SetStateErr   error
}

// NewFakeClient returns an empty fake host.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		lists:  make(map[string][]models.TodoItem),
		states: make(map[string]EntityState),
	}
}

// SetList creates (or replaces) a todo list entity with the given items.
func (f *FakeClient) SetList(entityID string, items ...models.TodoItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[entityID] = append([]models.TodoItem(nil), items...)
	f.states[entityID] = EntityState{EntityID: entityID, State: fmt.Sprintf("%d", countOpen(items))}
}

// RemoveEntity deletes an entity from the fake host.
func (f *FakeClient) RemoveEntity(entityID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lists, entityID)
	delete(f.states, entityID)
}

// Items returns a copy of the current items of a list.
func (f *FakeClient) Items(entityID string) []models.TodoItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TodoItem(nil), f.lists[entityID]...)
}

// Updates returns every recorded UpdateItem call.
func (f *FakeClient) Updates() []UpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]UpdateCall(nil), f.updates...)
}

// State returns a published entity state.
func (f *FakeClient) State(entityID string) (EntityState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[entityID]
	return s, ok
}

// StateIDs returns the ids of every entity with state, sorted.
func (f *FakeClient) StateIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.states))
	for id := range f.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *FakeClient) CheckAPI(ctx context.Context) error { return nil }

func (f *FakeClient) EntityExists(ctx context.Context, entityID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.states[entityID]
	return ok, nil
}

func (f *FakeClient) GetItems(ctx context.Context, entityID string) ([]models.TodoItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetItemsErr != nil {
		return nil, f.GetItemsErr
	}
	return append([]models.TodoItem(nil), f.lists[entityID]...), nil
}

func (f *FakeClient) UpdateItem(ctx context.Context, entityID, uid string, status models.ItemStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateItemErr != nil {
		return f.UpdateItemErr
	}
	f.updates = append(f.updates, UpdateCall{EntityID: entityID, UID: uid, Status: status})
	items := f.lists[entityID]
	for i := range items {
		if items[i].UID == uid {
			items[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("update_item %s/%s: %w", entityID, uid, ErrNotFound)
}

func (f *FakeClient) SetState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetStateErr != nil {
		return f.SetStateErr
	}
	f.states[entityID] = EntityState{EntityID: entityID, State: state, Attributes: attributes}
	return nil
}

func (f *FakeClient) DeleteState(ctx context.Context, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, entityID)
	return nil
}

func countOpen(items []models.TodoItem) int {
	n := 0
	for _, it := range items {
		if !it.IsCompleted() {
			n++
		}
	}
	return n
}

var _ Client = (*FakeClient)(nil)
