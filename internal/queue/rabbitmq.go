package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Topology names. Jobs are published to ExchangeName; delayed jobs park in
// WaitQueueName with a per-message TTL and dead-letter back into JobsQueueName
// when due. JobsQueueName dead-letters rejected jobs into DLQName.
const (
	ExchangeName  = "todo_reset"
	JobsQueueName = "todo_reset_jobs"
	WaitQueueName = "todo_reset_jobs_wait"
	DLQName       = "todo_reset_jobs_dlq"

	jobsRoutingKey = "jobs"
	waitRoutingKey = "wait"
	dlqRoutingKey  = "dlq"
)

// RabbitMQQueue is the JobQueue shared by the API process and the worker.
type RabbitMQQueue struct {
	logger *zap.Logger
	conn   *amqp.Connection

	mu      sync.Mutex // guards channel
	channel *amqp.Channel
}

// NewRabbitMQQueue dials amqpURL and declares the reset topology.
func NewRabbitMQQueue(amqpURL string, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	return &RabbitMQQueue{logger: logger, conn: conn, channel: ch}, nil
}

type queueSpec struct {
	name       string
	routingKey string
	args       amqp.Table
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange %s: %w", ExchangeName, err)
	}

	queues := []queueSpec{
		{name: DLQName, routingKey: dlqRoutingKey},
		{name: JobsQueueName, routingKey: jobsRoutingKey, args: amqp.Table{
			"x-dead-letter-exchange":    ExchangeName,
			"x-dead-letter-routing-key": dlqRoutingKey,
		}},
		{name: WaitQueueName, routingKey: waitRoutingKey, args: amqp.Table{
			"x-dead-letter-exchange":    ExchangeName,
			"x-dead-letter-routing-key": jobsRoutingKey,
		}},
	}
	for _, qs := range queues {
		if _, err := ch.QueueDeclare(qs.name, true, false, false, false, qs.args); err != nil {
			return fmt.Errorf("queue %s: %w", qs.name, err)
		}
		if err := ch.QueueBind(qs.name, qs.routingKey, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", qs.name, err)
		}
	}
	return nil
}

// Enqueue publishes job. A job due in the future goes to the wait queue with
// its remaining delay as TTL.
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
		Type:         string(job.Type),
	}

	routingKey := jobsRoutingKey
	if delay := untilPtr(job.NotBefore); delay > 0 {
		routingKey = waitRoutingKey
		pub.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	} else if ttl := untilPtr(job.NotAfter); ttl > 0 {
		pub.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

func untilPtr(t *time.Time) time.Duration {
	if t == nil {
		return 0
	}
	return time.Until(*t)
}

// Consume reads JobsQueueName on its own channel. Bodies that do not decode
// are dead-lettered here; everything else is handed to the caller.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	if prefetchCount < 1 {
		prefetchCount = 1
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, JobsQueueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer close(msgChan)
		defer func() { _ = ch.Close() }()

		for {
			var d amqp.Delivery
			var ok bool
			select {
			case <-ctx.Done():
				return
			case d, ok = <-deliveries:
			}
			if !ok {
				if ctx.Err() == nil {
					errChan <- errors.New("delivery channel closed")
				}
				return
			}

			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				q.logger.Error("job_decode_failed",
					zap.String("message_id", d.MessageId),
					zap.Error(err),
				)
				_ = d.Nack(false, false)
				continue
			}

			msg := &Message{Job: &job, DeliveryTag: d.DeliveryTag, Redelivered: d.Redelivered, Acknowledger: ch}
			select {
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			case msgChan <- msg:
			}
		}
	}()

	return msgChan, errChan, nil
}

// HealthCheck reports an error when the connection or publish channel is closed.
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes the publish channel and the connection.
func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	chErr := q.channel.Close()
	q.mu.Unlock()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}

var _ JobQueue = (*RabbitMQQueue)(nil)
