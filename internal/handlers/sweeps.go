package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/database"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/queue"
	"github.com/tensai-22/penal-sub001/internal/validation"
)

// SweepHandler enqueues urgency sweeps and reports their runs
type SweepHandler struct {
	jobQueue queue.Publisher
	runs     database.SweepRunStore
	logger   *zap.Logger
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(jobQueue queue.Publisher, runs database.SweepRunStore, logger *zap.Logger) *SweepHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepHandler{jobQueue: jobQueue, runs: runs, logger: logger}
}

// RegisterRoutes registers sweep routes on the given router
// The router should already have the /sweeps prefix
func (h *SweepHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.EnqueueSweep).Methods(http.MethodPost)
	r.HandleFunc("", h.ListSweeps).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.GetSweep).Methods(http.MethodGet)
}

// EnqueueSweepRequest optionally narrows the cases a sweep covers
type EnqueueSweepRequest struct {
	Filter models.CaseFilter `json:"filter"`
}

// EnqueueSweepResponse identifies the queued job
type EnqueueSweepResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// ListSweepsResponse is one page of sweep runs
type ListSweepsResponse struct {
	Runs       []*models.SweepRun `json:"runs"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// EnqueueSweep queues a manual urgency sweep
func (h *SweepHandler) EnqueueSweep(w http.ResponseWriter, r *http.Request) {
	var req EnqueueSweepRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	req.Filter = models.CaseFilter{
		Query:   validation.SanitizeText(req.Filter.Query),
		Abogado: validation.SanitizeText(req.Filter.Abogado),
		Estado:  validation.SanitizeText(req.Filter.Estado),
		Tab:     validation.SanitizeText(req.Filter.Tab),
	}

	job := queue.NewSweepJob(req.Filter, queue.TriggerManual)
	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed_to_enqueue_sweep",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		respondJSONError(w, r, http.StatusServiceUnavailable, "Service Unavailable", "sweep queue unavailable")
		return
	}

	h.logger.Info("manual_sweep_enqueued", zap.String("job_id", job.ID.String()))
	respondJSON(w, http.StatusAccepted, EnqueueSweepResponse{JobID: job.ID, Status: "queued"})
}

// ListSweeps lists sweep runs, newest first
func (h *SweepHandler) ListSweeps(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	runs, total, err := h.runs.ListRecent(r.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("failed_to_list_sweep_runs", zap.Error(err))
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to list sweep runs")
		return
	}
	if runs == nil {
		runs = []*models.SweepRun{}
	}

	respondJSON(w, http.StatusOK, ListSweepsResponse{
		Runs:       runs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
	})
}

// GetSweep returns one sweep run
func (h *SweepHandler) GetSweep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "invalid sweep run ID")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if errors.Is(err, database.ErrSweepRunNotFound) {
		respondJSONError(w, r, http.StatusNotFound, "Not Found", "sweep run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_get_sweep_run", zap.String("run_id", id.String()), zap.Error(err))
		respondJSONError(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to get sweep run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}
