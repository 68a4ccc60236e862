package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/integration"
	"github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// EntryService is the entry lifecycle the handlers drive.
type EntryService interface {
	SetupEntry(ctx context.Context, in integration.SetupInput) (*models.Entry, error)
	UpdateOptions(ctx context.Context, id uuid.UUID, in integration.OptionsInput) (*models.Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*models.Entry, error)
	ListEntries(ctx context.Context) ([]*models.Entry, error)
	RemoveEntry(ctx context.Context, id uuid.UUID) error
	ReloadEntry(ctx context.Context, id uuid.UUID) error
	Status(ctx context.Context, id uuid.UUID) (*integration.StatusView, error)
	ResetNow(ctx context.Context, id uuid.UUID) error
	ResetAll(ctx context.Context) (int, error)
}

// EntryHandler serves the config entry API.
type EntryHandler struct {
	service EntryService
	logger  *zap.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(service EntryService, log *zap.Logger) *EntryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EntryHandler{service: service, logger: log}
}

// RegisterRoutes registers entry routes on the given router.
// The router should already carry the /entries prefix.
func (h *EntryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListEntries).Methods("GET")
	r.HandleFunc("", h.CreateEntry).Methods("POST")
	r.HandleFunc("/{id}", h.GetEntry).Methods("GET")
	r.HandleFunc("/{id}", h.DeleteEntry).Methods("DELETE")
	r.HandleFunc("/{id}/options", h.UpdateOptions).Methods("PATCH")
	r.HandleFunc("/{id}/reload", h.ReloadEntry).Methods("POST")
	r.HandleFunc("/{id}/status", h.GetStatus).Methods("GET")
	r.HandleFunc("/{id}/reset", h.ResetEntry).Methods("POST")
}

// RegisterServiceRoutes registers the service-call routes.
// The router should already carry the /services prefix.
func (h *EntryHandler) RegisterServiceRoutes(r *mux.Router) {
	r.HandleFunc("/reset_now", h.ResetNowService).Methods("POST")
}

// ListEntries lists every configured entry.
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		h.respondServiceError(w, "list_entries_failed", uuid.Nil, err)
		return
	}
	if entries == nil {
		entries = []*models.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// CreateEntry runs the setup flow.
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var in integration.SetupInput
	if err := decodeJSON(r, &in, false); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entry, err := h.service.SetupEntry(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, "create_entry_failed", uuid.Nil, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// GetEntry returns one entry.
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get_entry_failed", id, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// DeleteEntry removes an entry and its status entity.
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.RemoveEntry(r.Context(), id); err != nil {
		h.respondServiceError(w, "delete_entry_failed", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateOptions runs the options flow.
func (h *EntryHandler) UpdateOptions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	var in integration.OptionsInput
	if err := decodeJSON(r, &in, false); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	entry, err := h.service.UpdateOptions(r.Context(), id, in)
	if err != nil {
		h.respondServiceError(w, "update_options_failed", id, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// ReloadEntry tears an entry down and sets it up again.
func (h *EntryHandler) ReloadEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.ReloadEntry(r.Context(), id); err != nil {
		h.respondServiceError(w, "reload_entry_failed", id, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"entry_id": id.String(), "result": "reloaded"})
}

// GetStatus returns the status entity of a loaded entry.
func (h *EntryHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	view, err := h.service.Status(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get_status_failed", id, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ResetEntry resets one entry now. The reset runs in the background.
func (h *EntryHandler) ResetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.ResetNow(r.Context(), id); err != nil {
		h.respondServiceError(w, "reset_entry_failed", id, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"dispatched": 1})
}

// ResetNowRequest is the optional reset_now service payload.
type ResetNowRequest struct {
	EntryID *string `json:"entry_id,omitempty"`
}

// ResetNowService resets one entry when entry_id is given, otherwise every loaded entry.
func (h *EntryHandler) ResetNowService(w http.ResponseWriter, r *http.Request) {
	var req ResetNowRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	if req.EntryID != nil {
		id, err := uuid.Parse(*req.EntryID)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
			return
		}
		if err := h.service.ResetNow(r.Context(), id); err != nil {
			h.respondServiceError(w, "reset_now_failed", id, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]any{"dispatched": 1})
		return
	}

	n, err := h.service.ResetAll(r.Context())
	if err != nil {
		h.logger.Error("reset_now_partial_failure",
			zap.Int("dispatched", n),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Some resets could not be started")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"dispatched": n})
}

// respondServiceError maps lifecycle errors onto HTTP responses.
func (h *EntryHandler) respondServiceError(w http.ResponseWriter, event string, id uuid.UUID, err error) {
	var inputErr *integration.InputError
	switch {
	case errors.As(err, &inputErr):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", inputErr.Message)
	case errors.Is(err, integration.ErrNoOptions):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, integration.ErrAlreadyConfigured):
		respondJSONError(w, http.StatusConflict, "already_configured", "An entry for this list and reset time already exists")
	case errors.Is(err, database.ErrEntryNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Entry not found")
	case errors.Is(err, integration.ErrEntryNotLoaded):
		respondJSONError(w, http.StatusConflict, "not_loaded", "Entry is not loaded")
	case errors.Is(err, integration.ErrSetupFailed):
		h.logError(event, id, err)
		respondJSONError(w, http.StatusBadGateway, "setup_failed", "Entry could not be set up")
	default:
		h.logError(event, id, err)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Request failed")
	}
}

func (h *EntryHandler) logError(event string, id uuid.UUID, err error) {
	fields := []zap.Field{zap.String("error", logger.SanitizeError(err))}
	if id != uuid.Nil {
		fields = append(fields, zap.String("entry_id", id.String()))
	}
	h.logger.Error(event, fields...)
}
