package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/entity"
	"github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FrontendRegistrar keeps the dashboard card resources in place.
type FrontendRegistrar interface {
	Register(ctx context.Context) error
	Unregister(ctx context.Context) error
}

// Options configures a Manager.
type Options struct {
	Repository database.EntryRepositoryInterface
	Registry   *Registry
	Scheduler  *scheduler.Scheduler
	Dispatcher Dispatcher
	Frontend   FrontendRegistrar
	EntityDeps entity.Deps
	Logger     *zap.Logger
}

// Manager owns the loaded entries of this process.
type Manager struct {
	repo       database.EntryRepositoryInterface
	registry   *Registry
	scheduler  *scheduler.Scheduler
	dispatcher Dispatcher
	frontend   FrontendRegistrar
	deps       entity.Deps
	logger     *zap.Logger
}

func NewManager(opts Options) *Manager {
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		repo:       opts.Repository,
		registry:   opts.Registry,
		scheduler:  opts.Scheduler,
		dispatcher: opts.Dispatcher,
		frontend:   opts.Frontend,
		deps:       opts.EntityDeps,
		logger:     opts.Logger,
	}
}

// Registry exposes the loaded entries.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SetupEntry validates the setup form, persists a new entry and brings it up.
func (m *Manager) SetupEntry(ctx context.Context, in SetupInput) (*models.Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	entry := in.Entry()

	if err := m.ensureUnique(ctx, entry, uuid.Nil); err != nil {
		return nil, err
	}
	if err := m.repo.Create(ctx, &entry); err != nil {
		if errors.Is(err, database.ErrDuplicateEntry) {
			return nil, ErrAlreadyConfigured
		}
		return nil, err
	}

	if err := m.setup(ctx, entry); err != nil {
		if delErr := m.repo.Delete(ctx, entry.ID); delErr != nil {
			m.logger.Error("entry_setup_rollback_failed", zap.String("entry_id", entry.ID.String()), zap.Error(delErr))
		}
		return nil, err
	}
	return &entry, nil
}

// ensureUnique rejects entry when another entry (other than self) already
// uses the same target list and reset time.
func (m *Manager) ensureUnique(ctx context.Context, entry models.Entry, self uuid.UUID) error {
	existing, err := m.repo.FindByUniqueID(ctx, entry.UniqueID())
	if errors.Is(err, database.ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return ErrAlreadyConfigured
	}
	return nil
}

// setup brings a persisted entry up: entity, trigger, registry, initial state
// and frontend resources. A failure to arm the trigger aborts with nothing
// registered.
func (m *Manager) setup(ctx context.Context, entry models.Entry) error {
	log := logger.ForEntry(m.logger, entry.ID.String(), entry.TargetEntityID)

	ent := entity.New(entry, m.deps)
	if err := m.scheduler.Arm(entry.ID.String(), entry.ResetTime, m.fireFunc(entry.ID)); err != nil {
		log.Error("entry_setup_failed", zap.Error(err))
		return setupFailed(err)
	}
	if !m.registry.Put(Handle{Entry: entry, Entity: ent}) {
		m.scheduler.Cancel(entry.ID.String())
		return setupFailed(fmt.Errorf("entry %s already loaded", entry.ID))
	}

	if err := ent.Initialize(ctx); err != nil {
		log.Warn("status_initialize_failed", zap.Error(err))
	}
	if m.frontend != nil {
		if err := m.frontend.Register(ctx); err != nil {
			log.Warn("frontend_register_failed", zap.Error(err))
		}
	}

	log.Info("entry_setup_complete", zap.String("reset_time", entry.ResetTime))
	return nil
}

func (m *Manager) fireFunc(entryID uuid.UUID) scheduler.FireFunc {
	return func(firedAt time.Time) {
		m.logger.Info("reset_trigger_fired",
			zap.String("entry_id", entryID.String()),
			zap.Time("fired_at", firedAt))
		if err := m.dispatcher.Dispatch(context.Background(), entryID, queue.ReasonScheduled); err != nil {
			m.logger.Error("reset_dispatch_failed", zap.String("entry_id", entryID.String()), zap.Error(err))
		}
	}
}

// UpdateOptions applies an options form. A loaded entry is updated in place
// and its trigger re-armed; an entry that is not loaded is reloaded instead.
func (m *Manager) UpdateOptions(ctx context.Context, id uuid.UUID, in OptionsInput) (*models.Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	stored, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := stored.Merge(in.Options())

	if updated.UniqueID() != stored.UniqueID() {
		if err := m.ensureUnique(ctx, updated, id); err != nil {
			return nil, err
		}
	}
	if err := m.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, database.ErrDuplicateEntry) {
			return nil, ErrAlreadyConfigured
		}
		return nil, err
	}

	h, loaded := m.registry.Get(id)
	if !loaded {
		m.logger.Info("entry_options_reload", zap.String("entry_id", id.String()))
		if err := m.ReloadEntry(ctx, id); err != nil {
			return nil, err
		}
		return &updated, nil
	}

	if updated.ResetTime != h.Entry.ResetTime {
		if err := m.scheduler.Arm(id.String(), updated.ResetTime, m.fireFunc(id)); err != nil {
			return nil, err
		}
	}
	if err := h.Entity.UpdateSettings(ctx, updated.TargetEntityID, updated.ResetTime, updated.DisplayPosition, updated.DisplayHours); err != nil {
		m.logger.Warn("status_update_failed", zap.String("entry_id", id.String()), zap.Error(err))
	}
	m.registry.Update(updated)

	logger.ForEntry(m.logger, id.String(), updated.TargetEntityID).Info("entry_options_updated",
		zap.String("reset_time", updated.ResetTime))
	return &updated, nil
}

// UnloadEntry stops a loaded entry: its trigger is cancelled, it leaves the
// registry and its status entity is removed. Resets already running finish.
func (m *Manager) UnloadEntry(ctx context.Context, id uuid.UUID) error {
	h, ok := m.registry.Remove(id)
	if !ok {
		return ErrEntryNotLoaded
	}
	m.scheduler.Cancel(id.String())
	if err := h.Entity.Remove(ctx); err != nil {
		m.logger.Warn("status_remove_failed", zap.String("entry_id", id.String()), zap.Error(err))
	}
	m.logger.Info("entry_unloaded", zap.String("entry_id", id.String()))
	return nil
}

// ReloadEntry unloads the entry if it is loaded and sets it up again from storage.
func (m *Manager) ReloadEntry(ctx context.Context, id uuid.UUID) error {
	if err := m.UnloadEntry(ctx, id); err != nil && !errors.Is(err, ErrEntryNotLoaded) {
		return err
	}
	entry, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return m.setup(ctx, *entry)
}

// RemoveEntry unloads and deletes an entry. Removing the last persisted entry
// also removes the card resources.
func (m *Manager) RemoveEntry(ctx context.Context, id uuid.UUID) error {
	if err := m.UnloadEntry(ctx, id); err != nil && !errors.Is(err, ErrEntryNotLoaded) {
		return err
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}
	if m.frontend != nil {
		m.unregisterFrontendIfUnused(ctx)
	}
	m.logger.Info("entry_removed", zap.String("entry_id", id.String()))
	return nil
}

// unregisterFrontendIfUnused removes the card resources once no entry is
// persisted. Entries that failed to load still count.
func (m *Manager) unregisterFrontendIfUnused(ctx context.Context) {
	remaining, err := m.repo.List(ctx)
	if err != nil {
		m.logger.Warn("frontend_unregister_skipped", zap.Error(err))
		return
	}
	if len(remaining) > 0 {
		return
	}
	if err := m.frontend.Unregister(ctx); err != nil {
		m.logger.Warn("frontend_unregister_failed", zap.Error(err))
	}
}

// ResetNow starts a reset of one loaded entry immediately.
func (m *Manager) ResetNow(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.registry.Get(id); !ok {
		return ErrEntryNotLoaded
	}
	return m.dispatcher.Dispatch(ctx, id, queue.ReasonManual)
}

// ResetAll starts a reset of every loaded entry and returns how many were dispatched.
func (m *Manager) ResetAll(ctx context.Context) (int, error) {
	var errs []error
	n := 0
	for _, h := range m.registry.List() {
		if err := m.dispatcher.Dispatch(ctx, h.Entry.ID, queue.ReasonManual); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// LoadAll sets up every persisted entry. One entry failing does not stop the others.
func (m *Manager) LoadAll(ctx context.Context) (int, error) {
	entries, err := m.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, e := range entries {
		if err := m.setup(ctx, *e); err != nil {
			m.logger.Error("entry_load_failed", zap.String("entry_id", e.ID.String()), zap.Error(err))
			continue
		}
		loaded++
	}
	m.logger.Info("entries_loaded", zap.Int("loaded", loaded), zap.Int("total", len(entries)))
	return loaded, nil
}

// RefreshAll re-checks the target list of every loaded entry.
func (m *Manager) RefreshAll(ctx context.Context) {
	for _, h := range m.registry.List() {
		h.Entity.Refresh(ctx)
	}
}

// RunRefreshLoop calls RefreshAll every interval until ctx is done.
func (m *Manager) RunRefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshAll(ctx)
		}
	}
}

// StatusView is the status endpoint payload.
type StatusView struct {
	Status    *models.StatusSnapshot `json:"status"`
	NextReset *time.Time             `json:"next_reset,omitempty"`
}

// Status returns the current status of a loaded entry and its next trigger time.
func (m *Manager) Status(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	h, ok := m.registry.Get(id)
	if !ok {
		return nil, ErrEntryNotLoaded
	}
	snap, err := h.Entity.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	view := &StatusView{Status: snap}
	if next, ok := m.scheduler.Next(id.String()); ok {
		view.NextReset = &next
	}
	return view, nil
}

// GetEntry returns a persisted entry.
func (m *Manager) GetEntry(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	return m.repo.GetByID(ctx, id)
}

// ListEntries returns every persisted entry.
func (m *Manager) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	return m.repo.List(ctx)
}

// Shutdown cancels every trigger. Status is left in place for the next start.
func (m *Manager) Shutdown() {
	m.scheduler.Close()
}
