package handlers

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"

	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
	"github.com/tensai-22/penal-sub001/internal/validation"
)

// MaxBatchItems caps the records evaluated by one batch request
const MaxBatchItems = 1000

// EvaluationObserver receives the class of every evaluated record
type EvaluationObserver interface {
	ObserveEvaluation(class urgency.Class)
}

// UrgencyHandler evaluates deadlines supplied by the caller
type UrgencyHandler struct {
	evaluator *urgency.Evaluator
	observer  EvaluationObserver
}

// NewUrgencyHandler creates a new urgency handler. observer may be nil.
func NewUrgencyHandler(evaluator *urgency.Evaluator, observer EvaluationObserver) *UrgencyHandler {
	return &UrgencyHandler{evaluator: evaluator, observer: observer}
}

// RegisterRoutes registers urgency routes on the given router
// The router should already have the /urgency prefix
func (h *UrgencyHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/evaluate", h.Evaluate).Methods(http.MethodPost)
	r.HandleFunc("/batch", h.EvaluateBatch).Methods(http.MethodPost)
}

// EvaluateRequest is one deadline to evaluate
type EvaluateRequest struct {
	FechaAtencion models.FlexString `json:"fecha_atencion" validate:"max=64"`
	PlazoAtencion models.FlexString `json:"plazo_atencion" validate:"max=64"`
	Now           *time.Time        `json:"now,omitempty"`
	Sort          string            `json:"sort,omitempty" validate:"omitempty,sort_strategy"`
}

// EvaluateResponse is the urgency of one deadline
type EvaluateResponse struct {
	urgency.Result
	// Error explains an invalid or not applicable label
	Error       string    `json:"error,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// BatchItem is one record of a batch request
type BatchItem struct {
	ID            string            `json:"id,omitempty" validate:"max=100"`
	FechaAtencion models.FlexString `json:"fecha_atencion" validate:"max=64"`
	PlazoAtencion models.FlexString `json:"plazo_atencion" validate:"max=64"`
}

// BatchRequest is a set of records evaluated against one instant
type BatchRequest struct {
	Items []BatchItem `json:"items" validate:"required,min=1,dive"`
	Now   *time.Time  `json:"now,omitempty"`
	Sort  string      `json:"sort,omitempty" validate:"omitempty,sort_strategy"`
}

// BatchResult is the urgency of one batch item
type BatchResult struct {
	ID string `json:"id,omitempty"`
	urgency.Result
}

// BatchResponse keeps the input order in Items. Ranking lists item indexes
// from most to least urgent.
type BatchResponse struct {
	Items       []BatchResult `json:"items"`
	Ranking     []int         `json:"ranking"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

func (h *UrgencyHandler) evaluatorFor(sort string) *urgency.Evaluator {
	if sort == "" {
		return h.evaluator
	}
	s, _ := urgency.ParseSortStrategy(sort)
	return h.evaluator.WithStrategy(s)
}

func (h *UrgencyHandler) instant(now *time.Time) time.Time {
	if now != nil {
		return *now
	}
	return h.evaluator.Now()
}

func (h *UrgencyHandler) observe(class urgency.Class) {
	if h.observer != nil {
		h.observer.ObserveEvaluation(class)
	}
}

// Evaluate classifies one deadline
func (h *UrgencyHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONErrorDetails(w, r, http.StatusBadRequest, "Bad Request", "invalid request", validation.FieldErrors(err))
		return
	}

	now := h.instant(req.Now)
	res, err := h.evaluatorFor(req.Sort).Explain(now, req.FechaAtencion.String(), req.PlazoAtencion.String())
	h.observe(res.Class)

	resp := EvaluateResponse{Result: res, EvaluatedAt: now}
	if err != nil {
		resp.Error = sanitizeErrorMessage(err.Error())
	}
	respondJSON(w, http.StatusOK, resp)
}

// EvaluateBatch classifies several deadlines against one instant
func (h *UrgencyHandler) EvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	// Checked before validation so an oversized batch is never walked item by item.
	if len(req.Items) > MaxBatchItems {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", fmt.Sprintf("a batch holds at most %d items", MaxBatchItems))
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONErrorDetails(w, r, http.StatusBadRequest, "Bad Request", "invalid request", validation.FieldErrors(err))
		return
	}

	now := h.instant(req.Now)
	ev := h.evaluatorFor(req.Sort)
	results := make([]BatchResult, len(req.Items))
	ranking := make([]int, len(req.Items))
	for i, item := range req.Items {
		res := ev.EvaluateAt(now, item.FechaAtencion.String(), item.PlazoAtencion.String())
		h.observe(res.Class)
		results[i] = BatchResult{ID: item.ID, Result: res}
		ranking[i] = i
	}
	slices.SortStableFunc(ranking, func(a, b int) int {
		return cmp.Compare(results[a].SortKey, results[b].SortKey)
	})

	respondJSON(w, http.StatusOK, BatchResponse{Items: results, Ranking: ranking, EvaluatedAt: now})
}
