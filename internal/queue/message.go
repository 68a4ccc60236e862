package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message is one delivered job. Acknowledger is the AMQP channel it arrived
// on, or the MemoryQueue in process.
type Message struct {
	Job          *Job
	DeliveryTag  uint64
	Redelivered  bool
	Acknowledger amqp.Acknowledger
}

// Ack settles the delivery as done.
func (m *Message) Ack() error {
	return m.Acknowledger.Ack(m.DeliveryTag, false)
}

// Nack settles the delivery as failed. Without requeue the job is dead-lettered.
func (m *Message) Nack(requeue bool) error {
	return m.Acknowledger.Nack(m.DeliveryTag, false, requeue)
}

func (m *Message) GetJob() *Job {
	return m.Job
}
