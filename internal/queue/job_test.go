package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewResetJob(t *testing.T) {
	t.Parallel()

	entryID := uuid.New()
	now := time.Now()

	job := NewResetJob(entryID, ReasonScheduled, now)

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeResetEntry {
		t.Errorf("Expected job type to be %s, got %s", JobTypeResetEntry, job.Type)
	}
	if job.EntryID != entryID {
		t.Errorf("Expected entry ID to be %s, got %s", entryID, job.EntryID)
	}
	if job.Reason != ReasonScheduled {
		t.Errorf("Expected reason %q, got %q", ReasonScheduled, job.Reason)
	}
	if job.NotAfter == nil || !job.NotAfter.Equal(now.Add(24*time.Hour)) {
		t.Errorf("Expected job to expire a day after creation, got %v", job.NotAfter)
	}
	if job.MaxRetries != 3 {
		t.Errorf("Expected max retries to be 3, got %d", job.MaxRetries)
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
	}{
		{name: "no time constraints", want: true},
		{name: "not before in past", notBefore: timePtr(now.Add(-time.Hour)), want: true},
		{name: "not before in future", notBefore: timePtr(now.Add(time.Hour)), want: false},
		{name: "not after in past", notAfter: timePtr(now.Add(-time.Hour)), want: false},
		{name: "not after in future", notAfter: timePtr(now.Add(time.Hour)), want: true},
		{
			name:      "within time window",
			notBefore: timePtr(now.Add(-time.Hour)),
			notAfter:  timePtr(now.Add(time.Hour)),
			want:      true,
		},
		{
			name:      "outside time window - after",
			notBefore: timePtr(now.Add(-2 * time.Hour)),
			notAfter:  timePtr(now.Add(-time.Hour)),
			want:      false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := &Job{ID: uuid.New(), Type: JobTypeResetEntry, NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	job := &Job{ID: uuid.New(), Type: JobTypeResetEntry, MaxRetries: 2}
	if !job.CanRetry() {
		t.Fatal("Expected a fresh job to be retryable")
	}
	job.IncrementRetry()
	job.IncrementRetry()
	if job.RetryCount != 2 {
		t.Errorf("Expected retry count 2, got %d", job.RetryCount)
	}
	if job.CanRetry() {
		t.Error("Expected job at max retries to not be retryable")
	}
}

func TestMemoryQueue_AckNack(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewMemoryQueue()
	first := NewResetJob(uuid.New(), ReasonManual, time.Now())
	second := NewResetJob(uuid.New(), ReasonManual, time.Now())
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	msgs, _, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	msg := receive(t, msgs)
	if msg.GetJob().ID != first.ID {
		t.Fatalf("Expected jobs in FIFO order")
	}
	if err := msg.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	msg = receive(t, msgs)
	if err := msg.Nack(false); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	if got := len(q.Acked()); got != 1 {
		t.Errorf("Expected 1 acked job, got %d", got)
	}
	dead := q.DeadLettered()
	if len(dead) != 1 || dead[0].ID != second.ID {
		t.Errorf("Expected second job dead-lettered, got %v", dead)
	}
	if err := msg.Ack(); err == nil {
		t.Error("Expected acking a settled delivery to fail")
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue()
	if err := q.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	_ = q.Close()
	if err := q.Enqueue(context.Background(), NewResetJob(uuid.New(), ReasonManual, time.Now())); err != ErrQueueClosed {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	if err := q.HealthCheck(context.Background()); err == nil {
		t.Error("Expected closed queue to be unhealthy")
	}
}

func receive(t *testing.T, msgs <-chan *Message) *Message {
	t.Helper()
	select {
	case msg := <-msgs:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
