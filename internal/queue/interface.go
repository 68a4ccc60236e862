// Package queue hands reset jobs from the API process to the worker.
package queue

import (
	"context"
)

// MessageInterface is what a worker needs from a delivered message.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue carries reset jobs. Implementations: RabbitMQQueue across
// processes and MemoryQueue in tests.
type JobQueue interface {
	// Enqueue publishes job. Delivery of a job with a future NotBefore may be
	// early, so consumers check ShouldProcess.
	Enqueue(ctx context.Context, job *Job) error

	// Consume streams deliveries until ctx is done or the connection drops,
	// then closes both channels. Every message must be acked or nacked;
	// prefetchCount bounds how many may be outstanding.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error

	// HealthCheck reports a closed connection.
	HealthCheck(ctx context.Context) error
}
