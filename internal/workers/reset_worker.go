package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/entity"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	// BaseRetryDelay is the delay before the first retry of a failed reset.
	BaseRetryDelay = 30 * time.Second
	// MaxRetryDelay caps the exponential retry delay.
	MaxRetryDelay = 10 * time.Minute
)

// ErrResetFailed is returned when a reset did not complete.
var ErrResetFailed = errors.New("reset failed")

// EntryLoader loads persisted entries.
type EntryLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error)
}

// ResetWorker runs queued reset jobs.
type ResetWorker struct {
	entries  EntryLoader
	deps     entity.Deps
	jobQueue queue.JobQueue
	clock    clock.Clock
	logger   *zap.Logger
}

// NewResetWorker creates a reset worker. jobQueue is used to re-enqueue
// delayed retries.
func NewResetWorker(entries EntryLoader, deps entity.Deps, jobQueue queue.JobQueue, logger *zap.Logger) *ResetWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &ResetWorker{
		entries:  entries,
		deps:     deps,
		jobQueue: jobQueue,
		clock:    clk,
		logger:   logger,
	}
}

// Run consumes jobs until ctx is cancelled or the queue closes the delivery channel.
func (w *ResetWorker) Run(ctx context.Context, prefetch int) error {
	msgChan, errChan, err := w.jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			w.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				w.logger.Info("message_channel_closed")
				return nil
			}
			if err := w.ProcessJob(ctx, msg); err != nil {
				w.logger.Error("job_processing_failed",
					zap.Error(err),
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
				)
			}
		}
	}
}

// ProcessJob processes one delivered job and settles it on the queue.
func (w *ResetWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		w.logger.Warn("reset_job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("entry_id", job.EntryID.String()),
		)
		return msg.Ack()
	}

	if !job.ShouldProcess() {
		// Delivered before NotBefore, e.g. after clock skew between processes.
		return w.requeue(ctx, msg, job)
	}

	if job.Type != queue.JobTypeResetEntry {
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	err := w.processReset(ctx, job)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil
	}
	return w.handleJobError(ctx, msg, job, err)
}

// processReset runs the reset for the job's entry through a fresh status entity.
func (w *ResetWorker) processReset(ctx context.Context, job *queue.Job) error {
	ctx = telemetry.Extract(ctx, job.Trace)
	ctx, span := telemetry.Tracer().Start(ctx, "worker.ResetEntry")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("entry.id", job.EntryID.String()),
		attribute.String("job.reason", job.Reason),
		attribute.Int("job.retry_count", job.RetryCount),
	)

	entry, err := w.entries.GetByID(ctx, job.EntryID)
	if errors.Is(err, database.ErrEntryNotFound) {
		w.logger.Info("reset_job_entry_removed",
			zap.String("job_id", job.ID.String()),
			zap.String("entry_id", job.EntryID.String()),
		)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load entry")
		return fmt.Errorf("failed to load entry: %w", err)
	}

	ent := entity.New(*entry, w.deps)
	outcome := ent.ResetItems(ctx)
	span.SetAttributes(attribute.String("reset.outcome", string(outcome)))

	switch outcome {
	case entity.OutcomeCompleted:
		snap, err := ent.Snapshot(ctx)
		if err != nil {
			w.logger.Warn("reset_job_status_unreadable", zap.String("job_id", job.ID.String()), zap.Error(err))
			snap = &models.StatusSnapshot{}
		}
		w.logger.Info("reset_job_completed",
			zap.String("job_id", job.ID.String()),
			zap.String("entry_id", job.EntryID.String()),
			zap.String("reason", job.Reason),
			zap.String("state", string(snap.State)),
			zap.Int("reset_count", snap.LastResetCount),
		)
		return nil
	case entity.OutcomeRemoved:
		return nil
	case entity.OutcomeTargetMissing:
		// Not transient; the refresh loop reports it.
		w.logger.Warn("reset_job_target_missing",
			zap.String("job_id", job.ID.String()),
			zap.String("entry_id", job.EntryID.String()),
		)
		return nil
	}

	// Any other outcome may have left completed items behind.
	msg := string(outcome)
	if snap, err := ent.Snapshot(ctx); err == nil && snap.LastError != "" && outcome == entity.OutcomeFailed {
		msg = snap.LastError
	}
	span.SetStatus(codes.Error, msg)
	return fmt.Errorf("%w: %s", ErrResetFailed, msg)
}

// handleJobError schedules a delayed retry, or dead-letters the job once its
// retries are used up.
func (w *ResetWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if !job.CanRetry() {
		w.logger.Error("reset_job_failed_permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("entry_id", job.EntryID.String()),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	delay := RetryDelay(job.RetryCount)
	notBefore := w.clock.Now().Add(delay)
	retry := *job
	retry.NotBefore = &notBefore
	retry.RetryCount++

	if enqueueErr := w.jobQueue.Enqueue(ctx, &retry); enqueueErr != nil {
		w.logger.Error("reset_job_requeue_failed", zap.String("job_id", job.ID.String()), zap.Error(enqueueErr))
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed, re-enqueue failed: %w", enqueueErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		w.logger.Warn("job_ack_failed", zap.Error(ackErr))
	}

	w.logger.Warn("reset_job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("entry_id", job.EntryID.String()),
		zap.Int("attempt", retry.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Duration("retry_delay", delay),
		zap.Error(err),
	)
	return fmt.Errorf("job failed (will retry): %w", err)
}

// requeue puts an early job back for later delivery.
func (w *ResetWorker) requeue(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	if err := w.jobQueue.Enqueue(ctx, job); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Error("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("failed to requeue early job: %w", err)
	}
	w.logger.Debug("reset_job_not_ready",
		zap.String("job_id", job.ID.String()),
		zap.Timep("not_before", job.NotBefore),
	)
	return msg.Ack()
}

// RetryDelay is the backoff before retry number attempt+1.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		return MaxRetryDelay
	}
	delay := BaseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}
