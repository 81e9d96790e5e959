package queue

import (
	"context"
	"time"
)

// MessageInterface is a delivered job that must be settled exactly once
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// Publisher enqueues jobs
type Publisher interface {
	Enqueue(ctx context.Context, job *Job) error
}

// JobQueue is the interface for job queues
type JobQueue interface {
	Publisher

	// Consume returns a channel of messages from the queue.
	// The caller acknowledges each message. prefetchCount bounds the
	// unacknowledged messages held by this consumer. Both channels are
	// closed when ctx is cancelled or the delivery channel fails; messages
	// already handed out can still be settled until the caller has acked or
	// nacked each of them.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than retention and reports how many
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
