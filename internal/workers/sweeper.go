package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/queue"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

// CaseSource fetches and decorates case records
type CaseSource interface {
	Refresh(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error)
	EvaluateRecords(now time.Time, records []models.CaseRecord, strategy urgency.SortStrategy) []models.CaseView
}

// SweepObserver receives finished sweep runs
type SweepObserver interface {
	ObserveSweep(run *models.SweepRun)
}

// Sweeper runs urgency sweeps: it evaluates every matching case at one
// instant, logs the overdue and urgent ones and stores a summary run.
type Sweeper struct {
	cases    CaseSource
	runs     database.SweepRunStore
	jobQueue queue.Publisher
	clock    urgency.Clock
	observer SweepObserver
	logger   *zap.Logger

	retryBase time.Duration
}

// NewSweeper creates a sweeper. jobQueue is used to schedule retries and may be nil.
func NewSweeper(cases CaseSource, runs database.SweepRunStore, jobQueue queue.Publisher, clock urgency.Clock, observer SweepObserver, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		cases:     cases,
		runs:      runs,
		jobQueue:  jobQueue,
		clock:     clock,
		observer:  observer,
		logger:    logger,
		retryBase: 30 * time.Second,
	}
}

// Run executes one sweep for job and returns the stored run
func (s *Sweeper) Run(ctx context.Context, job *queue.Job) (*models.SweepRun, error) {
	run := &models.SweepRun{
		JobID:     job.ID,
		Filter:    job.Filter,
		StartedAt: s.clock.Now(),
	}
	if err := s.runs.Start(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record sweep start: %w", err)
	}

	records, err := s.cases.Refresh(ctx, job.Filter)
	if err != nil {
		s.finish(ctx, run, err)
		return run, err
	}

	now := s.clock.Now()
	for _, v := range s.cases.EvaluateRecords(now, records, "") {
		run.Total++
		switch v.UrgencyClass {
		case urgency.ClassOverdue:
			run.Overdue++
			s.logCase("overdue_case", v)
		case urgency.ClassUrgent:
			run.Urgent++
			s.logCase("urgent_case", v)
		case urgency.ClassInvalid:
			run.Invalid++
			s.logger.Debug("invalid_deadline",
				zap.String("registro_ppu", logger.SanitizeCaseID(v.RegistroPPU)),
				zap.String("dias_restantes", v.DiasRestantes),
			)
		}
	}

	s.finish(ctx, run, nil)
	s.logger.Info("sweep_completed",
		zap.String("run_id", run.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", string(job.Trigger)),
		zap.Int("total", run.Total),
		zap.Int("overdue", run.Overdue),
		zap.Int("urgent", run.Urgent),
		zap.Int("invalid", run.Invalid),
	)
	return run, nil
}

func (s *Sweeper) logCase(event string, v models.CaseView) {
	s.logger.Info(event,
		zap.String("registro_ppu", logger.SanitizeCaseID(v.RegistroPPU)),
		zap.String("abogado", logger.SanitizeString(v.Abogado, logger.MaxGeneralStringLength)),
		zap.String("estado", logger.SanitizeString(v.Estado, logger.MaxGeneralStringLength)),
		zap.String("dias_restantes", v.DiasRestantes),
	)
}

func (s *Sweeper) finish(ctx context.Context, run *models.SweepRun, runErr error) {
	finished := s.clock.Now()
	run.FinishedAt = &finished
	run.Status = models.SweepStatusCompleted
	if runErr != nil {
		run.Status = models.SweepStatusFailed
		run.Error = logger.SanitizeError(runErr)
	}
	// a cancelled job context must not lose the run record
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Finish(storeCtx, run); err != nil {
		s.logger.Error("failed_to_record_sweep_result",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
	if s.observer != nil {
		s.observer.ObserveSweep(run)
	}
}

// ProcessJob runs the job carried by msg and settles the message
func (s *Sweeper) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.NotBefore != nil {
		if err := sleepUntil(ctx, *job.NotBefore); err != nil {
			_ = msg.Nack(true)
			return err
		}
	}

	switch job.Type {
	case queue.JobTypeUrgencySweep:
		if _, err := s.Run(ctx, job); err != nil {
			return s.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError re-enqueues the job with backoff, or dead-letters it once retries run out.
// A job interrupted by shutdown goes back to the broker unchanged.
func (s *Sweeper) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if ctx.Err() != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Warn("failed_to_requeue_interrupted_job", zap.Error(nackErr))
		}
		s.logger.Info("sweep_interrupted_requeued", zap.String("job_id", job.ID.String()))
		return fmt.Errorf("sweep interrupted: %w", err)
	}
	if job.CanRetry() && s.jobQueue != nil {
		delay := s.retryBase * time.Duration(1<<uint(job.RetryCount))
		retry := job.Retry(s.clock.Now().Add(delay))
		if enqueueErr := s.jobQueue.Enqueue(ctx, retry); enqueueErr != nil {
			s.logger.Warn("failed_to_reenqueue_sweep",
				zap.String("job_id", job.ID.String()),
				zap.Error(enqueueErr),
			)
			if nackErr := msg.Nack(true); nackErr != nil {
				s.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
			}
			return fmt.Errorf("sweep failed, re-enqueue failed: %w", err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			s.logger.Warn("failed_to_ack_retried_job", zap.Error(ackErr))
		}
		s.logger.Warn("sweep_failed_will_retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", retry.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		return fmt.Errorf("sweep failed (will retry): %w", err)
	}

	s.logger.Error("sweep_failed_dead_lettered",
		zap.String("job_id", job.ID.String()),
		zap.Int("retries", job.RetryCount),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		s.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(nackErr))
	}
	return fmt.Errorf("sweep failed (max retries): %w", err)
}

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
