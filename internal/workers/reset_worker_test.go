package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/todo-reset/internal/clock"
	"github.com/benvon/todo-reset/internal/database"
	"github.com/benvon/todo-reset/internal/entity"
	"github.com/benvon/todo-reset/internal/homeassistant"
	"github.com/benvon/todo-reset/internal/models"
	"github.com/benvon/todo-reset/internal/queue"
	"github.com/benvon/todo-reset/internal/reset"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockEntryLoader struct {
	getFunc func(ctx context.Context, id uuid.UUID) (*models.Entry, error)
}

func (m *mockEntryLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.Entry, error) {
	return m.getFunc(ctx, id)
}

type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

type workerFixture struct {
	host   *homeassistant.FakeClient
	store  *entity.MemoryStore
	queue  *queue.MemoryQueue
	clock  *clock.FakeClock
	entry  *models.Entry
	worker *ResetWorker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	f := &workerFixture{
		host:  homeassistant.NewFakeClient(),
		store: entity.NewMemoryStore(),
		queue: queue.NewMemoryQueue(),
		clock: clock.Fake(time.Now()),
		entry: &models.Entry{
			ID:              uuid.New(),
			Title:           "Chores",
			TargetEntityID:  "todo.chores",
			ResetTime:       "03:00:00",
			DisplayPosition: models.DisplayPositionBefore,
			DisplayHours:    models.DefaultDisplayHours,
		},
	}
	f.host.SetList("todo.chores",
		models.TodoItem{UID: "a", Summary: "dishes", Status: models.ItemStatusCompleted},
		models.TodoItem{UID: "b", Summary: "laundry", Status: models.ItemStatusCompleted},
		models.TodoItem{UID: "c", Summary: "vacuum", Status: models.ItemStatusNeedsAction},
	)

	loader := &mockEntryLoader{getFunc: func(_ context.Context, id uuid.UUID) (*models.Entry, error) {
		if id == f.entry.ID {
			e := *f.entry
			return &e, nil
		}
		return nil, database.ErrEntryNotFound
	}}
	deps := entity.Deps{
		Store:       f.store,
		Resetter:    reset.New(f.host, zap.NewNop()),
		Checker:     f.host,
		Publisher:   entity.NewHostPublisher(f.host),
		Clock:       f.clock,
		SettleDelay: entity.DefaultSettleDelay,
		Logger:      zap.NewNop(),
	}
	f.worker = NewResetWorker(loader, deps, f.queue, zap.NewNop())
	return f
}

func (f *workerFixture) status(t *testing.T) *models.StatusSnapshot {
	t.Helper()
	snap, err := f.store.Load(context.Background(), f.entry.ID.String())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return snap
}

func TestResetWorker_ProcessJob_Success(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	msg := &mockMessage{job: queue.NewResetJob(f.entry.ID, queue.ReasonScheduled, time.Now())}

	if err := f.worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("Expected ack only, got acked=%v nacked=%v", msg.acked, msg.nacked)
	}
	if got := len(f.host.Updates()); got != 2 {
		t.Errorf("Expected 2 item updates, got %d", got)
	}
	for _, item := range f.host.Items("todo.chores") {
		if item.IsCompleted() {
			t.Errorf("Expected %s to be reopened", item.Summary)
		}
	}

	snap := f.status(t)
	if snap.State != models.ResetStatusResetComplete || snap.LastResetCount != 2 {
		t.Errorf("Expected reset_complete with count 2, got %s/%d", snap.State, snap.LastResetCount)
	}
	if _, ok := f.host.State("todo_list.chores_with_reset"); !ok {
		t.Error("Expected status entity to be published to the host")
	}

	f.clock.Advance(entity.DefaultSettleDelay)
	if got := f.status(t).State; got != models.ResetStatusActive {
		t.Errorf("Expected active after settle delay, got %s", got)
	}
}

func TestResetWorker_ProcessJob_EntryRemoved(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	msg := &mockMessage{job: queue.NewResetJob(uuid.New(), queue.ReasonManual, time.Now())}

	if err := f.worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("Expected job for a removed entry to be acked")
	}
	if len(f.host.Updates()) != 0 {
		t.Error("Expected no item updates")
	}
}

func TestResetWorker_ProcessJob_TargetMissing(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	f.host.RemoveEntity("todo.chores")
	msg := &mockMessage{job: queue.NewResetJob(f.entry.ID, queue.ReasonScheduled, time.Now())}

	if err := f.worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("Expected ack without retry for a missing list")
	}
	if len(f.queue.Pending()) != 0 {
		t.Error("Expected no retry to be enqueued")
	}
	if got := f.status(t).State; got != models.ResetStatusError {
		t.Errorf("Expected error state, got %s", got)
	}
}

func TestResetWorker_ProcessJob_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	f.host.GetItemsErr = errors.New("host unavailable")
	job := queue.NewResetJob(f.entry.ID, queue.ReasonScheduled, time.Now())
	msg := &mockMessage{job: job}

	err := f.worker.ProcessJob(context.Background(), msg)
	if !errors.Is(err, ErrResetFailed) {
		t.Fatalf("Expected ErrResetFailed, got %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("Expected original delivery to be acked, got acked=%v nacked=%v", msg.acked, msg.nacked)
	}

	pending := f.queue.Pending()
	if len(pending) != 1 {
		t.Fatalf("Expected one retry job, got %d", len(pending))
	}
	retry := pending[0]
	if retry.ID != job.ID || retry.RetryCount != 1 {
		t.Errorf("Expected retry of %s with count 1, got %s/%d", job.ID, retry.ID, retry.RetryCount)
	}
	if retry.NotBefore == nil || !retry.NotBefore.Equal(f.clock.Now().Add(BaseRetryDelay)) {
		t.Errorf("Expected NotBefore %v, got %v", f.clock.Now().Add(BaseRetryDelay), retry.NotBefore)
	}
	if job.RetryCount != 0 {
		t.Error("Expected the delivered job to be left untouched")
	}
	if snap := f.status(t); snap.State != models.ResetStatusError || snap.LastError == "" {
		t.Errorf("Expected error state with last_error, got %s/%q", snap.State, snap.LastError)
	}
}

func TestResetWorker_ProcessJob_RetriesWhileResetInFlight(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	ctx := context.Background()
	startedAt := f.clock.Now()
	if _, _, err := f.store.Update(ctx, f.entry.ID.String(), func(s *models.StatusSnapshot) bool {
		s.State = models.ResetStatusResetting
		s.ResetStartedAt = &startedAt
		return true
	}); err != nil {
		t.Fatalf("seed Update() error = %v", err)
	}

	msg := &mockMessage{job: queue.NewResetJob(f.entry.ID, queue.ReasonScheduled, time.Now())}
	if err := f.worker.ProcessJob(ctx, msg); !errors.Is(err, ErrResetFailed) {
		t.Fatalf("Expected ErrResetFailed while another reset holds the lease, got %v", err)
	}
	if len(f.host.Updates()) != 0 {
		t.Fatal("Expected no item updates while the lease is live")
	}
	pending := f.queue.Pending()
	if len(pending) != 1 {
		t.Fatalf("Expected a retry to be enqueued, got %d", len(pending))
	}

	// The earlier run never recorded an outcome; its lease runs out before
	// the retry is delivered.
	f.clock.Advance(entity.DefaultResetLease)
	job := *pending[0]
	job.NotBefore = nil
	retry := &mockMessage{job: &job}
	if err := f.worker.ProcessJob(ctx, retry); err != nil {
		t.Fatalf("ProcessJob(retry) error = %v", err)
	}
	if got := len(f.host.Updates()); got != 2 {
		t.Errorf("Expected 2 item updates after the stale lease, got %d", got)
	}
	if got := f.status(t).State; got != models.ResetStatusResetComplete {
		t.Errorf("Expected reset_complete, got %s", got)
	}
}

func TestResetWorker_ProcessJob_DeadLettersAfterMaxRetries(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	f.host.GetItemsErr = errors.New("host unavailable")
	job := queue.NewResetJob(f.entry.ID, queue.ReasonScheduled, time.Now())
	job.RetryCount = job.MaxRetries
	msg := &mockMessage{job: job}

	if err := f.worker.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error")
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected nack without requeue, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
	if len(f.queue.Pending()) != 0 {
		t.Error("Expected no further retry")
	}
}

func TestResetWorker_ProcessJob_Expired(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	msg := &mockMessage{job: queue.NewResetJob(f.entry.ID, queue.ReasonScheduled, time.Now().Add(-48*time.Hour))}

	if err := f.worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("Expected expired job to be acked")
	}
	if len(f.host.Updates()) != 0 {
		t.Error("Expected expired job not to reset anything")
	}
}

func TestResetWorker_ProcessJob_UnknownType(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	job := queue.NewResetJob(f.entry.ID, queue.ReasonManual, time.Now())
	job.Type = "bogus"
	msg := &mockMessage{job: job}

	if err := f.worker.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for unknown job type")
	}
	if !msg.nacked || msg.requeue {
		t.Error("Expected unknown job to be dead-lettered")
	}
}

func TestResetWorker_ProcessJob_NotReady(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	job := queue.NewResetJob(f.entry.ID, queue.ReasonManual, time.Now())
	later := time.Now().Add(time.Hour)
	job.NotBefore = &later
	msg := &mockMessage{job: job}

	if err := f.worker.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("Expected early delivery to be acked")
	}
	if len(f.queue.Pending()) != 1 {
		t.Error("Expected early job to be re-enqueued")
	}
	if len(f.host.Updates()) != 0 {
		t.Error("Expected no reset before NotBefore")
	}
}

func TestResetWorker_Run(t *testing.T) {
	t.Parallel()

	f := newWorkerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := f.queue.Enqueue(ctx, queue.NewResetJob(f.entry.ID, queue.ReasonManual, time.Now())); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx, 1) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(f.queue.Acked()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(f.queue.Acked()) != 1 {
		t.Fatalf("Expected one acked job, got %d", len(f.queue.Acked()))
	}
	if len(f.host.Updates()) != 2 {
		t.Errorf("Expected 2 item updates, got %d", len(f.host.Updates()))
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -1, want: BaseRetryDelay},
		{attempt: 0, want: 30 * time.Second},
		{attempt: 1, want: time.Minute},
		{attempt: 2, want: 2 * time.Minute},
		{attempt: 5, want: MaxRetryDelay},
		{attempt: 40, want: MaxRetryDelay},
	}
	for _, tt := range tests {
		if got := RetryDelay(tt.attempt); got != tt.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
