package workers

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/queue"
)

// JobProcessor settles one delivered job
type JobProcessor interface {
	ProcessJob(ctx context.Context, msg queue.MessageInterface) error
}

// Consume feeds messages from q to p until ctx is cancelled or the delivery
// channel closes. Messages still buffered after cancellation are requeued
// unprocessed. It returns once all in-flight jobs have finished, with the
// context error or the last queue error.
func Consume(ctx context.Context, q queue.JobQueue, prefetch int, p JobProcessor, logger *zap.Logger) error {
	msgChan, errChan, err := q.Consume(ctx, prefetch)
	if err != nil {
		return err
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		lastErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range errChan {
			logger.Error("queue_error", zap.Error(err))
			mu.Lock()
			lastErr = err
			mu.Unlock()
		}
	}()

	for msg := range msgChan {
		job := msg.GetJob()
		if ctx.Err() != nil {
			// stopping: hand buffered jobs back to the broker
			if err := msg.Nack(true); err != nil {
				logger.Warn("failed_to_requeue_job_on_shutdown", zap.Error(err), zap.String("job_id", job.ID.String()))
			}
			continue
		}
		if err := p.ProcessJob(ctx, msg); err != nil {
			logger.Error("failed_to_process_job",
				zap.Error(err),
				zap.String("job_id", job.ID.String()),
				zap.String("job_type", string(job.Type)),
			)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	return lastErr
}
