package workers

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/queue"
)

// ClockTime is a wall-clock time of day
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTimes parses "HH:MM" entries, sorted and without duplicates
func ParseClockTimes(values []string) ([]ClockTime, error) {
	out := make([]ClockTime, 0, len(values))
	for _, v := range values {
		t, err := time.Parse("15:04", v)
		if err != nil {
			return nil, fmt.Errorf("invalid sweep time %q: want HH:MM", v)
		}
		out = append(out, ClockTime{Hour: t.Hour(), Minute: t.Minute()})
	}
	slices.SortFunc(out, func(a, b ClockTime) int {
		return (a.Hour*60 + a.Minute) - (b.Hour*60 + b.Minute)
	})
	return slices.Compact(out), nil
}

// NextRun returns the first slot strictly after now, in loc
func NextRun(now time.Time, slots []ClockTime, loc *time.Location) time.Time {
	local := now.In(loc)
	for day := 0; day <= 1; day++ {
		for _, s := range slots {
			t := time.Date(local.Year(), local.Month(), local.Day()+day, s.Hour, s.Minute, 0, 0, loc)
			if t.After(local) {
				return t
			}
		}
	}
	return time.Time{}
}

// SlotClaimer ensures a scheduled slot is enqueued by only one worker replica
type SlotClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisSlotClaimer claims slots with SET NX
type RedisSlotClaimer struct {
	client *redis.Client
}

// NewRedisSlotClaimer creates a claimer on client
func NewRedisSlotClaimer(client *redis.Client) *RedisSlotClaimer {
	return &RedisSlotClaimer{client: client}
}

// Claim reports whether this caller is the first to claim key
func (c *RedisSlotClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, "1", ttl).Result()
}

// Scheduler enqueues urgency sweeps at fixed times of day
type Scheduler struct {
	jobQueue queue.Publisher
	claimer  SlotClaimer
	slots    []ClockTime
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// NewScheduler creates a scheduler for slots in loc. claimer may be nil when
// a single worker runs.
func NewScheduler(jobQueue queue.Publisher, claimer SlotClaimer, slots []ClockTime, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		jobQueue: jobQueue,
		claimer:  claimer,
		slots:    slots,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		after:    time.After,
	}
}

// Start waits for each slot and enqueues a sweep, until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.slots) == 0 {
		s.logger.Info("sweep_scheduler_disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		next := NextRun(s.now(), s.slots, s.loc)
		s.logger.Info("next_sweep_scheduled", zap.Time("at", next))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}
		if err := s.enqueue(ctx, next); err != nil {
			s.logger.Error("failed_to_schedule_sweep", zap.Time("slot", next), zap.Error(err))
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, slot time.Time) error {
	// the slot expires when the next one starts
	expires := NextRun(slot, s.slots, s.loc)

	if s.claimer != nil {
		key := "casedesk:sweep:slot:" + strconv.FormatInt(slot.Unix(), 10)
		ok, err := s.claimer.Claim(ctx, key, expires.Sub(slot))
		if err != nil {
			return fmt.Errorf("failed to claim sweep slot: %w", err)
		}
		if !ok {
			s.logger.Debug("sweep_slot_claimed_elsewhere", zap.Time("slot", slot))
			return nil
		}
	}

	job := queue.NewSweepJob(models.CaseFilter{}, queue.TriggerSchedule)
	job.NotAfter = &expires
	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue sweep job: %w", err)
	}
	s.logger.Info("scheduled_sweep_enqueued",
		zap.String("job_id", job.ID.String()),
		zap.Time("slot", slot),
		zap.Time("expires", expires),
	)
	return nil
}
