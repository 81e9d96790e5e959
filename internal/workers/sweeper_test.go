package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/queue"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

var lima = time.FixedZone("America/Lima", -5*60*60)

var sweepNow = time.Date(2024, 1, 3, 8, 0, 0, 0, lima)

type fakeCases struct {
	records []models.CaseRecord
	err     error
	filters []models.CaseFilter
	eval    *urgency.Evaluator
}

func newFakeCases(records []models.CaseRecord, err error) *fakeCases {
	return &fakeCases{
		records: records,
		err:     err,
		eval:    urgency.New(urgency.WithLocation(lima)),
	}
}

func (f *fakeCases) Refresh(_ context.Context, filter models.CaseFilter) ([]models.CaseRecord, error) {
	f.filters = append(f.filters, filter)
	return f.records, f.err
}

func (f *fakeCases) EvaluateRecords(now time.Time, records []models.CaseRecord, _ urgency.SortStrategy) []models.CaseView {
	views := make([]models.CaseView, 0, len(records))
	for _, r := range records {
		views = append(views, models.NewCaseView(r, f.eval.EvaluateAt(now, r.FechaAtencion.String(), r.PlazoAtencion.String())))
	}
	return views
}

type memRunStore struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]models.SweepRun
	finishes int
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: map[uuid.UUID]models.SweepRun{}}
}

func (m *memRunStore) Start(_ context.Context, run *models.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = uuid.New()
	run.Status = models.SweepStatusRunning
	m.runs[run.ID] = *run
	return nil
}

func (m *memRunStore) Finish(_ context.Context, run *models.SweepRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return database.ErrSweepRunNotFound
	}
	m.finishes++
	m.runs[run.ID] = *run
	return nil
}

func (m *memRunStore) GetByID(_ context.Context, id uuid.UUID) (*models.SweepRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, database.ErrSweepRunNotFound
	}
	return &run, nil
}

func (m *memRunStore) ListRecent(context.Context, int, int) ([]*models.SweepRun, int, error) {
	return nil, 0, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (p *fakePublisher) Enqueue(_ context.Context, job *queue.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type fakeMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *fakeMessage) Ack() error { m.acked = true; return nil }

func (m *fakeMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *fakeMessage) GetJob() *queue.Job { return m.job }

type sweepCounter struct {
	runs []models.SweepRun
}

func (c *sweepCounter) ObserveSweep(run *models.SweepRun) { c.runs = append(c.runs, *run) }

func sweepRecords() []models.CaseRecord {
	return []models.CaseRecord{
		{RegistroPPU: "LIM-1", Abogado: "PEREZ", FechaAtencion: "2024-01-01", PlazoAtencion: "1"},
		{RegistroPPU: "LIM-2", Abogado: "RUIZ", FechaAtencion: "2024-01-03", PlazoAtencion: "1"},
		{RegistroPPU: "LIM-3", FechaAtencion: "2024-01-03", PlazoAtencion: "10"},
		{RegistroPPU: "LIM-4", FechaAtencion: "2024-01-03", PlazoAtencion: "31-02-2024 10:00 AM"},
		{RegistroPPU: "LIM-5"},
	}
}

func fixedClock() urgency.Clock {
	return urgency.ClockFunc(func() time.Time { return sweepNow })
}

func TestSweeper_Run(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	store := newMemRunStore()
	counter := &sweepCounter{}
	cases := newFakeCases(sweepRecords(), nil)
	s := NewSweeper(cases, store, nil, fixedClock(), counter, zap.New(core))

	job := queue.NewSweepJob(models.CaseFilter{Abogado: "PEREZ"}, queue.TriggerManual)
	run, err := s.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.SweepStatusCompleted, run.Status)
	assert.Equal(t, 5, run.Total)
	assert.Equal(t, 1, run.Overdue)
	assert.Equal(t, 1, run.Urgent)
	assert.Equal(t, 1, run.Invalid)
	assert.Equal(t, job.ID, run.JobID)
	require.NotNil(t, run.FinishedAt)

	stored, err := store.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SweepStatusCompleted, stored.Status)
	assert.Equal(t, []models.CaseFilter{{Abogado: "PEREZ"}}, cases.filters)

	overdue := logs.FilterMessage("overdue_case").All()
	require.Len(t, overdue, 1)
	assert.Equal(t, "LIM-1", overdue[0].ContextMap()["registro_ppu"])
	assert.Equal(t, 1, logs.FilterMessage("urgent_case").Len())
	assert.Equal(t, 1, logs.FilterMessage("sweep_completed").Len())
	require.Len(t, counter.runs, 1)
}

func TestSweeper_RunBackendFailure(t *testing.T) {
	t.Parallel()

	store := newMemRunStore()
	counter := &sweepCounter{}
	s := NewSweeper(newFakeCases(nil, errors.New("backend unavailable")), store, nil, fixedClock(), counter, nil)

	run, err := s.Run(context.Background(), queue.NewSweepJob(models.CaseFilter{}, queue.TriggerSchedule))
	require.Error(t, err)
	assert.Equal(t, models.SweepStatusFailed, run.Status)
	assert.Contains(t, run.Error, "backend unavailable")
	assert.Equal(t, 1, store.finishes)
	assert.Equal(t, models.SweepStatusFailed, counter.runs[0].Status)
}

func TestSweeper_ProcessJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		backendErr  error
		publishErr  error
		retryCount  int
		jobType     queue.JobType
		wantErr     bool
		wantAck     bool
		wantNack    bool
		wantRequeue bool
		wantRetry   bool
	}{
		{name: "success", wantAck: true},
		{name: "failure is retried", backendErr: errors.New("boom"), wantErr: true, wantAck: true, wantRetry: true},
		{name: "failure after max retries is dead-lettered", backendErr: errors.New("boom"), retryCount: queue.DefaultMaxRetries, wantErr: true, wantNack: true},
		{name: "re-enqueue failure requeues", backendErr: errors.New("boom"), publishErr: errors.New("broker down"), wantErr: true, wantNack: true, wantRequeue: true},
		{name: "unknown job type", jobType: "task_analysis", wantErr: true, wantNack: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pub := &fakePublisher{err: tt.publishErr}
			s := NewSweeper(newFakeCases(sweepRecords(), tt.backendErr), newMemRunStore(), pub, fixedClock(), nil, nil)

			job := queue.NewSweepJob(models.CaseFilter{}, queue.TriggerSchedule)
			job.RetryCount = tt.retryCount
			if tt.jobType != "" {
				job.Type = tt.jobType
			}
			msg := &fakeMessage{job: job}

			err := s.ProcessJob(context.Background(), msg)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
			assert.Equal(t, tt.wantAck, msg.acked)
			assert.Equal(t, tt.wantNack, msg.nacked)
			assert.Equal(t, tt.wantRequeue, msg.requeue)
			if tt.wantRetry {
				require.Len(t, pub.jobs, 1)
				assert.Equal(t, job.ID, pub.jobs[0].ID)
				assert.Equal(t, tt.retryCount+1, pub.jobs[0].RetryCount)
				require.NotNil(t, pub.jobs[0].NotBefore)
				assert.Equal(t, sweepNow.Add(30*time.Second), *pub.jobs[0].NotBefore)
			} else {
				assert.Empty(t, pub.jobs)
			}
		})
	}
}

func TestSweeper_ProcessJobWaitsForNotBefore(t *testing.T) {
	t.Parallel()

	s := NewSweeper(newFakeCases(nil, nil), newMemRunStore(), nil, fixedClock(), nil, nil)
	job := queue.NewSweepJob(models.CaseFilter{}, queue.TriggerSchedule)
	later := time.Now().Add(time.Hour)
	job.NotBefore = &later
	msg := &fakeMessage{job: job}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.ProcessJob(ctx, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, msg.nacked)
	assert.True(t, msg.requeue)
}

func TestSweeper_ProcessJobInterruptedByShutdownIsRequeued(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewSweeper(newFakeCases(nil, context.Canceled), newMemRunStore(), pub, fixedClock(), nil, nil)
	job := queue.NewSweepJob(models.CaseFilter{}, queue.TriggerSchedule)
	job.RetryCount = queue.DefaultMaxRetries
	msg := &fakeMessage{job: job}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ProcessJob(ctx, msg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, msg.acked)
	assert.True(t, msg.nacked)
	assert.True(t, msg.requeue, "an interrupted sweep must not be dead-lettered")
	assert.Empty(t, pub.jobs)
}
