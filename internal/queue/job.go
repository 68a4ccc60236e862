package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeResetEntry resets the completed items of one configured list.
	JobTypeResetEntry JobType = "reset_entry"
)

// Job reasons recorded in Reason.
const (
	ReasonScheduled = "scheduled"
	ReasonManual    = "manual"
)

// Job represents a job in the queue
type Job struct {
	ID      uuid.UUID `json:"id"`
	Type    JobType   `json:"type"`
	EntryID uuid.UUID `json:"entry_id"`
	Reason  string    `json:"reason,omitempty"`
	// Trace carries the W3C trace context of the enqueuing request.
	Trace      map[string]string `json:"trace,omitempty"`
	NotBefore  *time.Time        `json:"not_before,omitempty"` // nil = immediate
	NotAfter   *time.Time        `json:"not_after,omitempty"`  // nil = no expiration
	CreatedAt  time.Time         `json:"created_at"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
}

// NewResetJob creates a reset job for an entry. Reset jobs expire after a day
// so a backlog never replays yesterday's reset on top of today's.
func NewResetJob(entryID uuid.UUID, reason string, now time.Time) *Job {
	notAfter := now.Add(24 * time.Hour)
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeResetEntry,
		EntryID:    entryID,
		Reason:     reason,
		NotAfter:   &notAfter,
		CreatedAt:  now,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired()
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
