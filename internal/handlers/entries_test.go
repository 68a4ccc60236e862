package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/integration"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type mockEntryService struct {
	setupFunc   func(ctx context.Context, in integration.SetupInput) (*models.Entry, error)
	optionsFunc func(ctx context.Context, id uuid.UUID, in integration.OptionsInput) (*models.Entry, error)
	getFunc     func(ctx context.Context, id uuid.UUID) (*models.Entry, error)
	listFunc    func(ctx context.Context) ([]*models.Entry, error)
	removeFunc  func(ctx context.Context, id uuid.UUID) error
	reloadFunc  func(ctx context.Context, id uuid.UUID) error
	statusFunc  func(ctx context.Context, id uuid.UUID) (*integration.StatusView, error)
	resetFunc   func(ctx context.Context, id uuid.UUID) error
	resetAll    func(ctx context.Context) (int, error)
}

func (m *mockEntryService) SetupEntry(ctx context.Context, in integration.SetupInput) (*models.Entry, error) {
	if m.setupFunc != nil {
		return m.setupFunc(ctx, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntryService) UpdateOptions(ctx context.Context, id uuid.UUID, in integration.OptionsInput) (*models.Entry, error) {
	if m.optionsFunc != nil {
		return m.optionsFunc(ctx, id, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEntryService) GetEntry(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, database.ErrEntryNotFound
}

func (m *mockEntryService) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockEntryService) RemoveEntry(ctx context.Context, id uuid.UUID) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, id)
	}
	return nil
}

func (m *mockEntryService) ReloadEntry(ctx context.Context, id uuid.UUID) error {
	if m.reloadFunc != nil {
		return m.reloadFunc(ctx, id)
	}
	return nil
}

func (m *mockEntryService) Status(ctx context.Context, id uuid.UUID) (*integration.StatusView, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, id)
	}
	return nil, integration.ErrEntryNotLoaded
}

func (m *mockEntryService) ResetNow(ctx context.Context, id uuid.UUID) error {
	if m.resetFunc != nil {
		return m.resetFunc(ctx, id)
	}
	return nil
}

func (m *mockEntryService) ResetAll(ctx context.Context) (int, error) {
	if m.resetAll != nil {
		return m.resetAll(ctx)
	}
	return 0, nil
}

func newEntryRouter(svc EntryService) *mux.Router {
	h := NewEntryHandler(svc, nil)
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	h.RegisterRoutes(api.PathPrefix("/entries").Subrouter())
	h.RegisterServiceRoutes(api.PathPrefix("/services").Subrouter())
	return r
}

func testEntry() *models.Entry {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Entry{
		ID:              uuid.New(),
		Title:           "Chores",
		TargetEntityID:  "todo.chores",
		ResetTime:       "03:00:00",
		DisplayPosition: models.DisplayPositionBefore,
		DisplayHours:    models.DefaultDisplayHours,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return body
}

func TestEntryHandler_CreateEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        any
		rawBody     string
		setupErr    error
		expectCode  int
		expectError string
	}{
		{
			name:       "created",
			body:       map[string]any{"name": "Chores", "entity_id": "todo.chores", "reset_time": "03:00"},
			expectCode: http.StatusCreated,
		},
		{
			name:        "already configured",
			body:        map[string]any{"name": "Chores", "entity_id": "todo.chores"},
			setupErr:    integration.ErrAlreadyConfigured,
			expectCode:  http.StatusConflict,
			expectError: "already_configured",
		},
		{
			name:        "invalid input",
			body:        map[string]any{"name": "Chores", "entity_id": "light.kitchen"},
			setupErr:    &integration.InputError{Message: "entity_id must be a todo entity"},
			expectCode:  http.StatusBadRequest,
			expectError: "Bad Request",
		},
		{
			name:        "setup failed",
			body:        map[string]any{"name": "Chores", "entity_id": "todo.chores"},
			setupErr:    fmt.Errorf("%w: boom", integration.ErrSetupFailed),
			expectCode:  http.StatusBadGateway,
			expectError: "setup_failed",
		},
		{
			name:        "unknown field",
			rawBody:     `{"name":"Chores","entity_id":"todo.chores","bogus":true}`,
			expectCode:  http.StatusBadRequest,
			expectError: "Bad Request",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got integration.SetupInput
			svc := &mockEntryService{
				setupFunc: func(_ context.Context, in integration.SetupInput) (*models.Entry, error) {
					got = in
					if tt.setupErr != nil {
						return nil, tt.setupErr
					}
					return testEntry(), nil
				},
			}

			var req *http.Request
			if tt.rawBody != "" {
				req = httptest.NewRequest(http.MethodPost, "/api/v1/entries", strings.NewReader(tt.rawBody))
			} else {
				req = newTestRequest(http.MethodPost, "/api/v1/entries", tt.body)
			}
			w := httptest.NewRecorder()
			newEntryRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.expectCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectCode, w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if tt.expectError != "" {
				if body["error"] != tt.expectError {
					t.Errorf("Expected error %q, got %v", tt.expectError, body["error"])
				}
				return
			}
			if got.EntityID != "todo.chores" {
				t.Errorf("Expected entity_id to reach the service, got %q", got.EntityID)
			}
			data, ok := body["data"].(map[string]any)
			if !ok || data["entity_id"] != "todo.chores" {
				t.Errorf("Expected created entry in data, got %v", body["data"])
			}
		})
	}
}

func TestEntryHandler_ListEntries(t *testing.T) {
	t.Parallel()

	t.Run("empty list encodes as array", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		newEntryRouter(&mockEntryService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		data, ok := decodeBody(t, w)["data"].([]any)
		if !ok || len(data) != 0 {
			t.Errorf("Expected empty array, got %v", data)
		}
	})

	t.Run("repository failure", func(t *testing.T) {
		t.Parallel()

		svc := &mockEntryService{listFunc: func(context.Context) ([]*models.Entry, error) {
			return nil, errors.New("connection reset")
		}}
		w := httptest.NewRecorder()
		newEntryRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries", nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status 500, got %d", w.Code)
		}
		if msg := decodeBody(t, w)["message"]; msg == "connection reset" {
			t.Error("Expected internal error detail to be hidden")
		}
	})
}

func TestEntryHandler_GetEntry(t *testing.T) {
	t.Parallel()

	entry := testEntry()
	svc := &mockEntryService{getFunc: func(_ context.Context, id uuid.UUID) (*models.Entry, error) {
		if id == entry.ID {
			return entry, nil
		}
		return nil, database.ErrEntryNotFound
	}}
	router := newEntryRouter(svc)

	tests := []struct {
		name       string
		path       string
		expectCode int
	}{
		{name: "found", path: "/api/v1/entries/" + entry.ID.String(), expectCode: http.StatusOK},
		{name: "not found", path: "/api/v1/entries/" + uuid.NewString(), expectCode: http.StatusNotFound},
		{name: "bad id", path: "/api/v1/entries/not-a-uuid", expectCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.expectCode {
				t.Errorf("Expected status %d, got %d", tt.expectCode, w.Code)
			}
		})
	}
}

func TestEntryHandler_DeleteEntry(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var removed uuid.UUID
	svc := &mockEntryService{removeFunc: func(_ context.Context, got uuid.UUID) error {
		removed = got
		return nil
	}}

	w := httptest.NewRecorder()
	newEntryRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/entries/"+id.String(), nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if removed != id {
		t.Errorf("Expected %s to be removed, got %s", id, removed)
	}
}

func TestEntryHandler_UpdateOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       any
		err        error
		expectCode int
	}{
		{name: "updated", body: map[string]any{"reset_time": "04:30:00"}, expectCode: http.StatusOK},
		{name: "no options", body: map[string]any{}, err: integration.ErrNoOptions, expectCode: http.StatusBadRequest},
		{name: "conflict", body: map[string]any{"reset_time": "04:30:00"}, err: integration.ErrAlreadyConfigured, expectCode: http.StatusConflict},
		{name: "missing entry", body: map[string]any{"reset_time": "04:30:00"}, err: database.ErrEntryNotFound, expectCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got integration.OptionsInput
			svc := &mockEntryService{optionsFunc: func(_ context.Context, _ uuid.UUID, in integration.OptionsInput) (*models.Entry, error) {
				got = in
				if tt.err != nil {
					return nil, tt.err
				}
				e := testEntry()
				e.ResetTime = *in.ResetTime
				return e, nil
			}}

			w := httptest.NewRecorder()
			req := newTestRequest(http.MethodPatch, "/api/v1/entries/"+uuid.NewString()+"/options", tt.body)
			newEntryRouter(svc).ServeHTTP(w, req)
			if w.Code != tt.expectCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectCode, w.Code, w.Body.String())
			}
			if tt.err == nil && (got.ResetTime == nil || *got.ResetTime != "04:30:00") {
				t.Errorf("Expected reset_time to reach the service, got %v", got.ResetTime)
			}
		})
	}
}

func TestEntryHandler_ReloadEntry(t *testing.T) {
	t.Parallel()

	calls := 0
	svc := &mockEntryService{reloadFunc: func(context.Context, uuid.UUID) error {
		calls++
		return nil
	}}

	w := httptest.NewRecorder()
	newEntryRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/entries/"+uuid.NewString()+"/reload", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if calls != 1 {
		t.Errorf("Expected one reload, got %d", calls)
	}
}

func TestEntryHandler_GetStatus(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	next := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	svc := &mockEntryService{statusFunc: func(_ context.Context, got uuid.UUID) (*integration.StatusView, error) {
		if got != id {
			return nil, integration.ErrEntryNotLoaded
		}
		return &integration.StatusView{
			Status: &models.StatusSnapshot{
				EntryID:  id.String(),
				EntityID: "todo_list.chores_with_reset",
				State:    models.ResetStatusActive,
			},
			NextReset: &next,
		}, nil
	}}
	router := newEntryRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries/"+id.String()+"/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	if data["next_reset"] != "2026-03-02T03:00:00Z" {
		t.Errorf("Expected next_reset, got %v", data["next_reset"])
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries/"+uuid.NewString()+"/status", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for an unloaded entry, got %d", w.Code)
	}
}

func TestEntryHandler_ResetEntry(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	var reset []uuid.UUID
	svc := &mockEntryService{resetFunc: func(_ context.Context, got uuid.UUID) error {
		reset = append(reset, got)
		return nil
	}}

	w := httptest.NewRecorder()
	newEntryRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/entries/"+id.String()+"/reset", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	if len(reset) != 1 || reset[0] != id {
		t.Errorf("Expected reset of %s, got %v", id, reset)
	}
}

func TestEntryHandler_ResetNowService(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	tests := []struct {
		name           string
		body           string
		resetErr       error
		resetAllErr    error
		expectCode     int
		expectOne      bool
		expectAll      bool
		expectDispatch float64
	}{
		{name: "no body resets all", body: "", expectCode: http.StatusAccepted, expectAll: true, expectDispatch: 2},
		{name: "empty object resets all", body: `{}`, expectCode: http.StatusAccepted, expectAll: true, expectDispatch: 2},
		{name: "single entry", body: `{"entry_id":"` + id.String() + `"}`, expectCode: http.StatusAccepted, expectOne: true, expectDispatch: 1},
		{name: "unloaded entry", body: `{"entry_id":"` + id.String() + `"}`, resetErr: integration.ErrEntryNotLoaded, expectCode: http.StatusConflict, expectOne: true},
		{name: "bad entry id", body: `{"entry_id":"nope"}`, expectCode: http.StatusBadRequest},
		{name: "dispatch failure", body: "", resetAllErr: errors.New("queue down"), expectCode: http.StatusInternalServerError, expectAll: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			one, all := false, false
			svc := &mockEntryService{
				resetFunc: func(_ context.Context, got uuid.UUID) error {
					one = got == id
					return tt.resetErr
				},
				resetAll: func(context.Context) (int, error) {
					all = true
					return 2, tt.resetAllErr
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/services/reset_now", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			newEntryRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.expectCode {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectCode, w.Code, w.Body.String())
			}
			if one != tt.expectOne || all != tt.expectAll {
				t.Errorf("Expected one=%v all=%v, got one=%v all=%v", tt.expectOne, tt.expectAll, one, all)
			}
			if tt.expectDispatch > 0 {
				data, _ := decodeBody(t, w)["data"].(map[string]any)
				if data["dispatched"] != tt.expectDispatch {
					t.Errorf("Expected %v dispatched, got %v", tt.expectDispatch, data["dispatched"])
				}
			}
		})
	}
}
