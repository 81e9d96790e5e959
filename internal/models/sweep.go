package models

import (
	"time"

	"github.com/google/uuid"
)

// SweepStatus is the state of an overdue sweep run.
type SweepStatus string

const (
	SweepStatusRunning   SweepStatus = "running"
	SweepStatusCompleted SweepStatus = "completed"
	SweepStatusFailed    SweepStatus = "failed"
)

// CaseFilter narrows the case records fetched from the backend.
type CaseFilter struct {
	Query   string `json:"query,omitempty"`
	Abogado string `json:"abogado,omitempty"`
	Estado  string `json:"estado,omitempty"`
	Tab     string `json:"tab,omitempty"`
}

// IsZero reports whether no filter is set.
func (f CaseFilter) IsZero() bool {
	return f == CaseFilter{}
}

// SweepRun records one pass of the overdue sweeper over the backend's case records.
type SweepRun struct {
	ID         uuid.UUID   `json:"id"`
	JobID      uuid.UUID   `json:"job_id"`
	Status     SweepStatus `json:"status"`
	Filter     CaseFilter  `json:"filter"`
	Total      int         `json:"total"`
	Overdue    int         `json:"overdue"`
	Urgent     int         `json:"urgent"`
	Invalid    int         `json:"invalid"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}
