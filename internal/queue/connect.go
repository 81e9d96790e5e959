package queue

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const maxConnectDelay = 30 * time.Second

// ConnectWithRetry dials RabbitMQ until it succeeds, attempts run out or ctx
// is cancelled. The delay doubles after each failure, capped at 30s.
func ConnectWithRetry(ctx context.Context, amqpURL string, attempts int, initialDelay time.Duration, log *zap.Logger) (*RabbitMQQueue, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := NewRabbitMQQueue(amqpURL, log)
		if err == nil {
			return q, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > maxConnectDelay {
			delay = maxConnectDelay
		}
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
