package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by a closed MemoryQueue.
var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue is an in-process JobQueue. Nacked messages with requeue are put
// back at the tail; nacked messages without requeue go to the dead letter list.
type MemoryQueue struct {
	mu       sync.Mutex
	pending  []*Job
	inflight map[uint64]*Job
	dead     []*Job
	acked    []*Job
	nextTag  uint64
	notify   chan struct{}
	closed   bool
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		inflight: make(map[uint64]*Job),
		notify:   make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, job)
	q.signal()
	return nil
}

func (q *MemoryQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	if prefetchCount < 1 {
		prefetchCount = 1
	}
	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		for {
			msg, ok := q.take()
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-q.notify:
					continue
				}
			}
			select {
			case <-ctx.Done():
				_ = msg.Nack(true)
				return
			case msgChan <- msg:
			}
		}
	}()

	return msgChan, errChan, nil
}

func (q *MemoryQueue) take() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 || q.closed {
		return nil, false
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.nextTag++
	q.inflight[q.nextTag] = job
	return &Message{Job: job, DeliveryTag: q.nextTag, Acknowledger: q}, true
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Ack implements amqp.Acknowledger.
func (q *MemoryQueue) Ack(tag uint64, multiple bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.inflight[tag]
	if !ok {
		return errors.New("unknown delivery tag")
	}
	delete(q.inflight, tag)
	q.acked = append(q.acked, job)
	return nil
}

// Nack implements amqp.Acknowledger.
func (q *MemoryQueue) Nack(tag uint64, multiple bool, requeue bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.inflight[tag]
	if !ok {
		return errors.New("unknown delivery tag")
	}
	delete(q.inflight, tag)
	if requeue {
		q.pending = append(q.pending, job)
		q.signal()
	} else {
		q.dead = append(q.dead, job)
	}
	return nil
}

// Reject implements amqp.Acknowledger.
func (q *MemoryQueue) Reject(tag uint64, requeue bool) error {
	return q.Nack(tag, false, requeue)
}

// Pending returns the jobs waiting for delivery.
func (q *MemoryQueue) Pending() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Job(nil), q.pending...)
}

// Acked returns acknowledged jobs in ack order.
func (q *MemoryQueue) Acked() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Job(nil), q.acked...)
}

// DeadLettered returns jobs nacked without requeue.
func (q *MemoryQueue) DeadLettered() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Job(nil), q.dead...)
}

func (q *MemoryQueue) HealthCheck(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

var _ JobQueue = (*MemoryQueue)(nil)
