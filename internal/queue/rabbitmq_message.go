package queue

import (
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a Job with its RabbitMQ delivery information
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     amqp.Acknowledger

	settled func()
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	defer m.settle()
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message. Without requeue it goes to the dead letter queue.
func (m *Message) Nack(requeue bool) error {
	defer m.settle()
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetJob returns the decoded job
func (m *Message) GetJob() *Job {
	return m.Job
}

func (m *Message) settle() {
	if m.settled != nil {
		m.settled()
	}
}

var _ MessageInterface = (*Message)(nil)

// settleTracker counts handed-out messages that are not yet acked or nacked,
// so the consumer channel stays open until they are.
type settleTracker struct {
	wg sync.WaitGroup
}

func (t *settleTracker) track(m *Message) {
	t.wg.Add(1)
	var once sync.Once
	m.settled = func() { once.Do(t.wg.Done) }
}

// wait blocks until every tracked message is settled or timeout elapses. It
// reports whether all of them were settled.
func (t *settleTracker) wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
