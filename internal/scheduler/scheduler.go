// Package scheduler arms one daily trigger per configured entry.
//
// A trigger fires at a fixed wall-clock hour and minute (seconds are always 0)
// in the scheduler's location and re-arms itself for the following day. Arm
// replaces any trigger already live for the same entry, so an entry never has
// more than one.
package scheduler

import (
	"sync"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"go.uber.org/zap"
)

// FireFunc is invoked when a trigger fires. It runs on the timer's goroutine
// and should hand long work off instead of blocking.
type FireFunc func(firedAt time.Time)

type trigger struct {
	entryID string
	hour    int
	minute  int
	fn      FireFunc
	timer   clock.Timer
	next    time.Time
}

// Scheduler owns the live triggers, keyed by entry id.
type Scheduler struct {
	clock    clock.Clock
	location *time.Location
	logger   *zap.Logger

	mu       sync.Mutex
	triggers map[string]*trigger
}

// New creates a scheduler. A nil location means time.Local.
func New(clk clock.Clock, location *time.Location, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:    clk,
		location: location,
		logger:   logger,
		triggers: make(map[string]*trigger),
	}
}

// Arm installs the daily trigger for entryID at resetTime. The time is parsed
// before anything else happens: on a parse error the previous trigger (if any)
// stays as it was and nothing new is armed.
func (s *Scheduler) Arm(entryID, resetTime string, fn FireFunc) error {
	hour, minute, err := ParseResetTime(resetTime)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.triggers[entryID]; ok {
		old.timer.Stop()
		delete(s.triggers, entryID)
	}

	t := &trigger{entryID: entryID, hour: hour, minute: minute, fn: fn}
	s.scheduleLocked(t, s.clock.Now())
	s.triggers[entryID] = t

	s.logger.Info("reset_trigger_armed",
		zap.String("entry_id", entryID),
		zap.String("reset_time", FormatResetTime(hour, minute)),
		zap.Time("next_fire", t.next),
	)
	return nil
}

// Cancel stops the trigger for entryID. It reports whether a trigger was live.
func (s *Scheduler) Cancel(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.triggers[entryID]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.triggers, entryID)
	s.logger.Info("reset_trigger_cancelled", zap.String("entry_id", entryID))
	return true
}

// Next returns when the trigger for entryID fires next.
func (s *Scheduler) Next(entryID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[entryID]
	if !ok {
		return time.Time{}, false
	}
	return t.next, true
}

// Active returns the number of live triggers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.triggers)
}

// Close cancels every trigger.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.triggers {
		t.timer.Stop()
		delete(s.triggers, id)
	}
}

// scheduleLocked points t's timer at the next occurrence after now. Caller holds s.mu.
func (s *Scheduler) scheduleLocked(t *trigger, now time.Time) {
	t.next = NextOccurrence(now, t.hour, t.minute, s.location)
	t.timer = s.clock.AfterFunc(t.next.Sub(now), func() { s.fire(t) })
}

func (s *Scheduler) fire(t *trigger) {
	s.mu.Lock()
	// A replaced or cancelled trigger whose timer raced Stop must not fire.
	if current, ok := s.triggers[t.entryID]; !ok || current != t {
		s.mu.Unlock()
		return
	}
	firedAt := s.clock.Now()
	s.scheduleLocked(t, firedAt)
	next := t.next
	s.mu.Unlock()

	s.logger.Info("reset_trigger_fired",
		zap.String("entry_id", t.entryID),
		zap.Time("fired_at", firedAt),
		zap.Time("next_fire", next),
	)
	t.fn(firedAt)
}

// NextOccurrence returns the first hour:minute:00 in loc strictly after now.
func NextOccurrence(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return candidate
}
