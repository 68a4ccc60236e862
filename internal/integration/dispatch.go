package integration

import (
	"context"
	"fmt"
	"sync"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher starts a reset for a loaded entry without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, entryID uuid.UUID, reason string) error
}

// InlineDispatcher runs resets on a goroutine in this process.
type InlineDispatcher struct {
	registry *Registry
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewInlineDispatcher(registry *Registry, logger *zap.Logger) *InlineDispatcher {
	return &InlineDispatcher{registry: registry, logger: logger}
}

// Dispatch starts the reset. The reset keeps running if ctx is cancelled or
// the entry is unloaded meanwhile.
func (d *InlineDispatcher) Dispatch(ctx context.Context, entryID uuid.UUID, reason string) error {
	h, ok := d.registry.Get(entryID)
	if !ok {
		return ErrEntryNotLoaded
	}
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Info("reset_dispatched",
			zap.String("entry_id", entryID.String()),
			zap.String("reason", reason))
		outcome := h.Entity.ResetItems(runCtx)
		d.logger.Debug("reset_finished",
			zap.String("entry_id", entryID.String()),
			zap.String("outcome", string(outcome)))
	}()
	return nil
}

// Wait blocks until every dispatched reset has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

// QueueDispatcher hands resets to the worker over the job queue.
type QueueDispatcher struct {
	queue  queue.JobQueue
	clock  clock.Clock
	logger *zap.Logger
}

func NewQueueDispatcher(q queue.JobQueue, clk clock.Clock, logger *zap.Logger) *QueueDispatcher {
	return &QueueDispatcher{queue: q, clock: clk, logger: logger}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, entryID uuid.UUID, reason string) error {
	job := queue.NewResetJob(entryID, reason, d.clock.Now())
	job.Trace = telemetry.Inject(ctx)
	if err := d.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue reset for %s: %w", entryID, err)
	}
	d.logger.Info("reset_enqueued",
		zap.String("entry_id", entryID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("reason", reason))
	return nil
}
