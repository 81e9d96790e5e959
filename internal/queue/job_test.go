package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tensai-22/penal-sub001/internal/models"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNewSweepJob(t *testing.T) {
	t.Parallel()

	filter := models.CaseFilter{Abogado: "PEREZ"}
	job := NewSweepJob(filter, TriggerManual)

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeUrgencySweep {
		t.Errorf("Expected job type %s, got %s", JobTypeUrgencySweep, job.Type)
	}
	if job.Filter != filter {
		t.Errorf("Expected filter %+v, got %+v", filter, job.Filter)
	}
	if job.Trigger != TriggerManual {
		t.Errorf("Expected trigger manual, got %s", job.Trigger)
	}
	if job.RetryCount != 0 || job.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected 0/%d retries, got %d/%d", DefaultMaxRetries, job.RetryCount, job.MaxRetries)
	}
	if err := job.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "sweep", job: Job{ID: uuid.New(), Type: JobTypeUrgencySweep}, wantErr: false},
		{name: "no id", job: Job{Type: JobTypeUrgencySweep}, wantErr: true},
		{name: "unknown type", job: Job{ID: uuid.New(), Type: "task_analysis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.job.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		job  Job
		want bool
	}{
		{name: "no time constraints", job: Job{}, want: true},
		{name: "not before in past", job: Job{NotBefore: timePtr(now.Add(-time.Hour))}, want: true},
		{name: "not before in future", job: Job{NotBefore: timePtr(now.Add(time.Hour))}, want: false},
		{name: "not after in past", job: Job{NotAfter: timePtr(now.Add(-time.Hour))}, want: false},
		{name: "inside window", job: Job{NotBefore: timePtr(now.Add(-time.Hour)), NotAfter: timePtr(now.Add(time.Hour))}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.shouldProcessAt(now); got != tt.want {
				t.Errorf("shouldProcessAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	if (&Job{}).IsExpired() {
		t.Error("job without NotAfter should never expire")
	}
	if !(&Job{NotAfter: timePtr(time.Now().Add(-time.Minute))}).IsExpired() {
		t.Error("job past NotAfter should be expired")
	}
	if (&Job{NotAfter: timePtr(time.Now().Add(time.Hour))}).IsExpired() {
		t.Error("job before NotAfter should not be expired")
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	job := NewSweepJob(models.CaseFilter{}, TriggerSchedule)
	at := time.Now().Add(time.Minute)
	next := job.Retry(at)

	if next.ID != job.ID {
		t.Error("retry should keep the job id")
	}
	if next.RetryCount != 1 || job.RetryCount != 0 {
		t.Errorf("retry counts = %d (copy), %d (original), want 1, 0", next.RetryCount, job.RetryCount)
	}
	if next.NotBefore == nil || !next.NotBefore.Equal(at) {
		t.Errorf("NotBefore = %v, want %v", next.NotBefore, at)
	}

	for next.CanRetry() {
		next = next.Retry(at)
	}
	if next.RetryCount != DefaultMaxRetries {
		t.Errorf("RetryCount = %d after exhausting retries, want %d", next.RetryCount, DefaultMaxRetries)
	}
}

func TestJob_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	job := NewSweepJob(models.CaseFilter{Estado: "pendiente", Tab: "vencidos"}, TriggerSchedule)
	job.NotAfter = timePtr(job.CreatedAt.Add(time.Hour))

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Job
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Filter != job.Filter || decoded.Trigger != job.Trigger || decoded.Type != job.Type {
		t.Errorf("decoded job = %+v, want %+v", decoded, *job)
	}
}
