package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tensai-22/penal-sub001/internal/models"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeUrgencySweep evaluates every matching case and records the overdue and urgent ones
	JobTypeUrgencySweep JobType = "urgency_sweep"
)

// Trigger says who asked for a job
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// DefaultMaxRetries is how often a failed job is retried before it is dead-lettered
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID         `json:"id"`
	Type       JobType           `json:"type"`
	Trigger    Trigger           `json:"trigger"`
	Filter     models.CaseFilter `json:"filter"`
	NotBefore  *time.Time        `json:"not_before,omitempty"`
	NotAfter   *time.Time        `json:"not_after,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
}

// NewSweepJob creates an urgency sweep over the cases matching filter
func NewSweepJob(filter models.CaseFilter, trigger Trigger) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeUrgencySweep,
		Trigger:    trigger,
		Filter:     filter,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate rejects jobs a worker cannot run
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return fmt.Errorf("job has no id")
	}
	switch j.Type {
	case JobTypeUrgencySweep:
		return nil
	default:
		return fmt.Errorf("unknown job type: %q", j.Type)
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	return j.shouldProcessAt(time.Now())
}

func (j *Job) shouldProcessAt(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	return j.NotAfter != nil && time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry returns a copy of the job scheduled no earlier than notBefore with the retry count bumped
func (j *Job) Retry(notBefore time.Time) *Job {
	next := *j
	next.RetryCount++
	next.NotBefore = &notBefore
	return &next
}
