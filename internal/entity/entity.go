// Package entity implements the per-entry status entity: a small state machine
// (idle, active, error, resetting, reset_complete) persisted in a StatusStore
// and mirrored into the host.
package entity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/logger"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/reset"
	"go.uber.org/zap"
)

const (
	// DefaultSettleDelay is how long reset_complete is shown before returning to active.
	DefaultSettleDelay = 2 * time.Second
	// DefaultResetLease bounds how long a resetting state blocks other resets
	// when its outcome was never recorded.
	DefaultResetLease = 10 * time.Minute

	outcomeWriteTimeout = 10 * time.Second
)

// Resetter runs the reset operation for a target list.
type Resetter interface {
	Reset(ctx context.Context, target string) (reset.Result, error)
}

// ExistenceChecker reports whether the target list exists on the host.
type ExistenceChecker interface {
	EntityExists(ctx context.Context, entityID string) (bool, error)
}

// Deps are the collaborators shared by every entity of a process. A zero
// ResetLease means DefaultResetLease.
type Deps struct {
	Store       StatusStore
	Resetter    Resetter
	Checker     ExistenceChecker
	Publisher   Publisher
	Clock       clock.Clock
	SettleDelay time.Duration
	ResetLease  time.Duration
	Logger      *zap.Logger
}

// ResetEntity is the status entity of one configured entry.
type ResetEntity struct {
	deps Deps

	mu          sync.Mutex
	entry       models.Entry
	settleTimer clock.Timer
	removed     bool
}

// New builds the entity for entry. Nothing is written until Initialize.
func New(entry models.Entry, deps Deps) *ResetEntity {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.ResetLease <= 0 {
		deps.ResetLease = DefaultResetLease
	}
	return &ResetEntity{deps: deps, entry: entry}
}

// Entry returns a copy of the current settings.
func (e *ResetEntity) Entry() models.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entry
}

// EntityID is the host entity id of the status entity.
func (e *ResetEntity) EntityID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.StatusEntityID(e.entry.TargetEntityID)
}

func (e *ResetEntity) log() *zap.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return logger.ForEntry(e.deps.Logger, e.entry.ID.String(), e.entry.TargetEntityID)
}

// Initialize records the entity as idle. A snapshot left behind by an earlier
// run keeps its reset history, and a reset still running in another process
// keeps its resetting state until its lease runs out.
func (e *ResetEntity) Initialize(ctx context.Context) error {
	now := e.deps.Clock.Now()
	_, _, err := e.transition(ctx, func(s *models.StatusSnapshot) bool {
		if e.resetInFlight(s, now) {
			return false
		}
		s.State = models.ResetStatusIdle
		s.LastError = ""
		s.LastErrorKind = models.ErrorKindNone
		s.ResetStartedAt = nil
		return true
	})
	return err
}

// resetInFlight reports whether s records a reset that started less than
// ResetLease ago. A resetting state without a start time is stale.
func (e *ResetEntity) resetInFlight(s *models.StatusSnapshot, now time.Time) bool {
	if s.State != models.ResetStatusResetting || s.ResetStartedAt == nil {
		return false
	}
	return now.Sub(*s.ResetStartedAt) < e.deps.ResetLease
}

// Snapshot returns the stored status.
func (e *ResetEntity) Snapshot(ctx context.Context) (*models.StatusSnapshot, error) {
	e.mu.Lock()
	id := e.entry.ID.String()
	e.mu.Unlock()
	return e.deps.Store.Load(ctx, id)
}

// Refresh sets active or error depending on whether the target list exists.
// It does nothing while a reset is running; a resetting state past its lease
// is overwritten.
func (e *ResetEntity) Refresh(ctx context.Context) {
	e.mu.Lock()
	target := e.entry.TargetEntityID
	e.mu.Unlock()

	exists, checkErr := e.deps.Checker.EntityExists(ctx, target)
	now := e.deps.Clock.Now()
	_, written, err := e.transition(ctx, func(s *models.StatusSnapshot) bool {
		if e.resetInFlight(s, now) {
			return false
		}
		if s.State == models.ResetStatusResetting {
			e.log().Warn("stale_reset_cleared", zap.Timep("reset_started_at", s.ResetStartedAt))
		}
		s.ResetStartedAt = nil
		switch {
		case checkErr != nil:
			s.State = models.ResetStatusError
			s.LastError = logger.SanitizeError(checkErr)
			s.LastErrorKind = models.ErrorKindHost
		case exists:
			s.State = models.ResetStatusActive
			s.LastError = ""
			s.LastErrorKind = models.ErrorKindNone
		default:
			s.State = models.ResetStatusError
			s.LastError = reset.ErrTargetNotFound.Error()
			s.LastErrorKind = models.ErrorKindTargetNotFound
		}
		return true
	})
	if err != nil {
		e.log().Warn("status_refresh_failed", zap.Error(err))
		return
	}
	if written && !exists {
		e.log().Debug("status_source_missing")
	}
}

// Outcome is how a ResetItems call ended.
type Outcome string

const (
	// OutcomeCompleted means the list was reset and reset_complete recorded.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the reset failed and the error state was recorded.
	OutcomeFailed Outcome = "failed"
	// OutcomeTargetMissing means the target list does not exist on the host.
	OutcomeTargetMissing Outcome = "target_missing"
	// OutcomeBusy means another reset of the entry holds a live lease.
	OutcomeBusy Outcome = "busy"
	// OutcomeNotRecorded means the status store could not be written.
	OutcomeNotRecorded Outcome = "not_recorded"
	// OutcomeRemoved means the entity was removed before the reset started.
	OutcomeRemoved Outcome = "removed"
)

// ResetItems resets the target list and records the outcome. It never returns
// an error; failures end in the error state with last_error set. A call made
// while another reset of the same entry holds a live lease returns OutcomeBusy.
// Outcome writes survive cancellation of ctx.
func (e *ResetEntity) ResetItems(ctx context.Context) Outcome {
	e.mu.Lock()
	target := e.entry.TargetEntityID
	e.stopSettleLocked()
	e.mu.Unlock()

	startedAt := e.deps.Clock.Now()
	_, started, err := e.transition(ctx, func(s *models.StatusSnapshot) bool {
		if e.resetInFlight(s, startedAt) {
			return false
		}
		if s.State == models.ResetStatusResetting {
			e.log().Warn("stale_reset_taken_over", zap.Timep("reset_started_at", s.ResetStartedAt))
		}
		s.State = models.ResetStatusResetting
		s.ResetStartedAt = &startedAt
		return true
	})
	if err != nil {
		e.log().Error("reset_state_write_failed", zap.Error(err))
		return OutcomeNotRecorded
	}
	if !started {
		if e.isRemoved() {
			return OutcomeRemoved
		}
		e.log().Info("reset_already_running")
		return OutcomeBusy
	}

	result, resetErr := e.deps.Resetter.Reset(ctx, target)
	now := e.deps.Clock.Now()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	if resetErr != nil {
		kind, outcome := models.ErrorKindHost, OutcomeFailed
		if errors.Is(resetErr, reset.ErrTargetNotFound) {
			kind, outcome = models.ErrorKindTargetNotFound, OutcomeTargetMissing
		}
		_, _, err = e.transition(writeCtx, func(s *models.StatusSnapshot) bool {
			s.State = models.ResetStatusError
			s.LastError = logger.SanitizeError(resetErr)
			s.LastErrorKind = kind
			s.ResetStartedAt = nil
			return true
		})
		if err != nil {
			e.log().Error("reset_state_write_failed", zap.Error(err))
			return OutcomeNotRecorded
		}
		if outcome == OutcomeFailed {
			e.log().Error("reset_failed", zap.Error(resetErr), zap.Int("reset_before_failure", result.Reset))
		}
		return outcome
	}

	_, _, err = e.transition(writeCtx, func(s *models.StatusSnapshot) bool {
		s.State = models.ResetStatusResetComplete
		s.LastReset = &now
		s.LastResetCount = result.Reset
		s.LastError = ""
		s.LastErrorKind = models.ErrorKindNone
		s.ResetStartedAt = nil
		return true
	})
	if err != nil {
		e.log().Error("reset_state_write_failed", zap.Error(err))
		return OutcomeNotRecorded
	}
	e.scheduleSettle(now)
	return OutcomeCompleted
}

func (e *ResetEntity) isRemoved() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removed
}

// scheduleSettle returns to active after the settle delay unless another
// transition replaced reset_complete in the meantime.
func (e *ResetEntity) scheduleSettle(completedAt time.Time) {
	settle := func() {
		ctx, cancel := context.WithTimeout(context.Background(), outcomeWriteTimeout)
		defer cancel()
		_, _, err := e.transition(ctx, func(s *models.StatusSnapshot) bool {
			if s.State != models.ResetStatusResetComplete || s.LastReset == nil || !s.LastReset.Equal(completedAt) {
				return false
			}
			s.State = models.ResetStatusActive
			return true
		})
		if err != nil {
			e.log().Warn("status_settle_failed", zap.Error(err))
		}
	}

	// AfterFunc may run settle inline, so e.mu is not held here.
	timer := e.deps.Clock.AfterFunc(e.deps.SettleDelay, settle)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		timer.Stop()
		return
	}
	e.stopSettleLocked()
	e.settleTimer = timer
}

func (e *ResetEntity) stopSettleLocked() {
	if e.settleTimer != nil {
		e.settleTimer.Stop()
		e.settleTimer = nil
	}
}

// UpdateSettings applies new settings in place. When the target changes the
// status entity is renamed: the old host entity is removed and the new one
// published.
func (e *ResetEntity) UpdateSettings(ctx context.Context, target, resetTime string, position models.DisplayPosition, hours int) error {
	e.mu.Lock()
	oldEntityID := models.StatusEntityID(e.entry.TargetEntityID)
	e.entry.TargetEntityID = target
	e.entry.ResetTime = resetTime
	e.entry.DisplayPosition = position
	e.entry.DisplayHours = hours
	newEntityID := models.StatusEntityID(target)
	e.mu.Unlock()

	if oldEntityID != newEntityID {
		if err := e.deps.Publisher.Remove(ctx, oldEntityID); err != nil {
			e.log().Warn("status_entity_rename_failed", zap.String("old_entity_id", oldEntityID), zap.Error(err))
		}
		e.log().Info("status_entity_renamed", zap.String("old_entity_id", oldEntityID), zap.String("new_entity_id", newEntityID))
	}

	_, _, err := e.transition(ctx, func(s *models.StatusSnapshot) bool { return true })
	return err
}

// Remove stops the entity and deletes its status. A reset already running
// completes but its outcome is no longer recorded.
func (e *ResetEntity) Remove(ctx context.Context) error {
	e.mu.Lock()
	e.removed = true
	e.stopSettleLocked()
	id := e.entry.ID.String()
	entityID := models.StatusEntityID(e.entry.TargetEntityID)
	e.mu.Unlock()

	if err := e.deps.Store.Delete(ctx, id); err != nil {
		return err
	}
	return e.deps.Publisher.Remove(ctx, entityID)
}

// transition applies fn to the stored snapshot, fills in the entry-derived
// attributes and publishes the result when it was written.
func (e *ResetEntity) transition(ctx context.Context, fn MutateFunc) (*models.StatusSnapshot, bool, error) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, false, nil
	}
	entry := e.entry
	e.mu.Unlock()

	now := e.deps.Clock.Now()
	snap, written, err := e.deps.Store.Update(ctx, entry.ID.String(), func(s *models.StatusSnapshot) bool {
		if !fn(s) {
			return false
		}
		s.EntryID = entry.ID.String()
		s.EntityID = models.StatusEntityID(entry.TargetEntityID)
		s.FriendlyName = models.StatusFriendlyName(entry.TargetEntityID)
		s.SourceEntityID = entry.TargetEntityID
		s.ResetTime = entry.ResetTime
		s.DisplayPosition = entry.DisplayPosition
		s.DisplayHours = entry.DisplayHours
		s.UpdatedAt = now
		return true
	})
	if err != nil || !written {
		return snap, written, err
	}

	e.log().Debug("status_changed", zap.String("state", string(snap.State)))
	if err := e.deps.Publisher.Publish(ctx, snap); err != nil {
		e.log().Warn("status_publish_failed", zap.Error(err))
	}
	return snap, true, nil
}
