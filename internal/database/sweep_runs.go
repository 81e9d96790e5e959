package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tensai-22/penal-sub001/internal/models"
)

// ErrSweepRunNotFound is returned when no sweep run has the requested id
var ErrSweepRunNotFound = errors.New("sweep run not found")

// SweepRunRepository stores the history of overdue sweeps
type SweepRunRepository struct {
	db *DB
}

// NewSweepRunRepository creates a new sweep run repository
func NewSweepRunRepository(db *DB) *SweepRunRepository {
	return &SweepRunRepository{db: db}
}

// Start inserts a run in the running state
func (r *SweepRunRepository) Start(ctx context.Context, run *models.SweepRun) error {
	filterJSON, err := json.Marshal(run.Filter)
	if err != nil {
		return fmt.Errorf("failed to marshal filter: %w", err)
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = models.SweepStatusRunning

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sweep_runs (id, job_id, status, filter, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.JobID, run.Status, filterJSON, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to start sweep run: %w", err)
	}
	return nil
}

// Finish stores the counts and final status of a run
func (r *SweepRunRepository) Finish(ctx context.Context, run *models.SweepRun) error {
	now := time.Now()
	if run.FinishedAt == nil {
		run.FinishedAt = &now
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE sweep_runs
		SET status = $2, total = $3, overdue = $4, urgent = $5, invalid = $6, error = $7, finished_at = $8
		WHERE id = $1
	`, run.ID, run.Status, run.Total, run.Overdue, run.Urgent, run.Invalid, run.Error, *run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish sweep run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSweepRunNotFound
	}
	return nil
}

// GetByID retrieves a run by id
func (r *SweepRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, status, filter, total, overdue, urgent, invalid, error, started_at, finished_at
		FROM sweep_runs
		WHERE id = $1
	`, id)
	run, err := scanSweepRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSweepRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep run: %w", err)
	}
	return run, nil
}

// ListRecent returns a page of runs, newest first, and the total number of runs
func (r *SweepRunRepository) ListRecent(ctx context.Context, page, pageSize int) ([]*models.SweepRun, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sweep_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sweep runs: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, status, filter, total, overdue, urgent, invalid, error, started_at, finished_at
		FROM sweep_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SweepRun
	for rows.Next() {
		run, err := scanSweepRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating sweep runs: %w", err)
	}
	return runs, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweepRun(row rowScanner) (*models.SweepRun, error) {
	run := &models.SweepRun{}
	var filterJSON []byte
	var finishedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.JobID,
		&run.Status,
		&filterJSON,
		&run.Total,
		&run.Overdue,
		&run.Urgent,
		&run.Invalid,
		&run.Error,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &run.Filter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filter: %w", err)
		}
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}
