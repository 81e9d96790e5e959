package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/tensai-22/penal-sub001/internal/models"
)

// CorsConfigStore reads and writes the CORS settings used by the hot-reloading middleware
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
	Set(ctx context.Context, c *models.CorsConfig) error
}

// RatelimitConfigStore reads and writes the API rate limit
type RatelimitConfigStore interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// SweepRunStore records overdue sweep runs
type SweepRunStore interface {
	Start(ctx context.Context, run *models.SweepRun) error
	Finish(ctx context.Context, run *models.SweepRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error)
	ListRecent(ctx context.Context, page, pageSize int) ([]*models.SweepRun, int, error)
}

// Ensure concrete types implement the interfaces
var (
	_ CorsConfigStore      = (*CorsConfigRepository)(nil)
	_ RatelimitConfigStore = (*RatelimitConfigRepository)(nil)
	_ SweepRunStore        = (*SweepRunRepository)(nil)
)
