package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/cases"
	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
	"github.com/tensai-22/penal-sub001/internal/validation"
)

// MaxSummaryLimit caps how many records a summary lists
const MaxSummaryLimit = 50

// CaseService is the case desk the handler serves
type CaseService interface {
	List(ctx context.Context, opts cases.ListOptions) (*models.CasePage, error)
	Summary(ctx context.Context, filter models.CaseFilter, mostUrgent int) (*models.CaseSummary, error)
	Get(ctx context.Context, ppu string, strategy urgency.SortStrategy) (*models.CaseView, error)
}

// CaseHandler serves case records decorated with their urgency
type CaseHandler struct {
	service CaseService
	logger  *zap.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(service CaseService, logger *zap.Logger) *CaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseHandler{service: service, logger: logger}
}

// RegisterRoutes registers case routes on the given router
// The router should already have the /cases prefix
func (h *CaseHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListCases).Methods(http.MethodGet)
	r.HandleFunc("/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/{ppu}", h.GetCase).Methods(http.MethodGet)
}

// caseQuery holds the filter and ordering query parameters
type caseQuery struct {
	Query   string `json:"query" validate:"max=200"`
	Abogado string `json:"abogado" validate:"max=100"`
	Estado  string `json:"estado" validate:"max=100"`
	Tab     string `json:"tab" validate:"max=50"`
	Sort    string `json:"sort" validate:"omitempty,sort_strategy"`
	Class   string `json:"class" validate:"omitempty,urgency_class"`
}

func readCaseQuery(r *http.Request) (caseQuery, error) {
	q := r.URL.Query()
	cq := caseQuery{
		Query:   validation.SanitizeText(q.Get("query")),
		Abogado: validation.SanitizeText(q.Get("abogado")),
		Estado:  validation.SanitizeText(q.Get("estado")),
		Tab:     validation.SanitizeText(q.Get("tab")),
		Sort:    strings.TrimSpace(q.Get("sort")),
		Class:   strings.TrimSpace(q.Get("class")),
	}
	return cq, validation.Validate.Struct(cq)
}

func (q caseQuery) filter() models.CaseFilter {
	return models.CaseFilter{Query: q.Query, Abogado: q.Abogado, Estado: q.Estado, Tab: q.Tab}
}

func (q caseQuery) strategy() urgency.SortStrategy {
	s, _ := urgency.ParseSortStrategy(q.Sort)
	return s
}

// ListCases lists case records ordered by urgency with pagination
func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cq, err := readCaseQuery(r)
	if err != nil {
		respondJSONErrorDetails(w, r, http.StatusBadRequest, "Bad Request", "invalid query parameters", validation.FieldErrors(err))
		return
	}
	actionable, err := parseBoolParam(r, "actionable")
	if err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	refresh, err := parseBoolParam(r, "refresh")
	if err != nil {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	page, pageSize := parsePagination(r)

	opts := cases.ListOptions{
		Filter:         cq.filter(),
		Class:          urgency.Class(cq.Class),
		ActionableOnly: actionable,
		Page:           page,
		PageSize:       pageSize,
		Refresh:        refresh,
	}
	if cq.Sort != "" {
		opts.Strategy = cq.strategy()
	}

	result, err := h.service.List(r.Context(), opts)
	if err != nil {
		h.respondServiceError(w, r, "list_cases", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Summary counts case records per urgency class and lists the most urgent ones
func (h *CaseHandler) Summary(w http.ResponseWriter, r *http.Request) {
	cq, err := readCaseQuery(r)
	if err != nil {
		respondJSONErrorDetails(w, r, http.StatusBadRequest, "Bad Request", "invalid query parameters", validation.FieldErrors(err))
		return
	}

	limit := cases.DefaultMostUrgent
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "limit must be a non-negative integer")
			return
		}
		limit = min(parsed, MaxSummaryLimit)
	}

	summary, err := h.service.Summary(r.Context(), cq.filter(), limit)
	if err != nil {
		h.respondServiceError(w, r, "case_summary", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetCase returns one case record by registro_ppu
func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	ppu := strings.TrimSpace(mux.Vars(r)["ppu"])
	if ppu == "" || len(ppu) > 100 {
		respondJSONError(w, r, http.StatusBadRequest, "Bad Request", "invalid registro_ppu")
		return
	}

	var strategy urgency.SortStrategy
	if s := r.URL.Query().Get("sort"); s != "" {
		if err := validation.ValidateSortStrategy(s); err != nil {
			respondJSONError(w, r, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		strategy, _ = urgency.ParseSortStrategy(s)
	}

	view, err := h.service.Get(r.Context(), ppu, strategy)
	if err != nil {
		h.respondServiceError(w, r, "get_case", err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CaseHandler) respondServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, cases.ErrCaseNotFound):
		respondJSONError(w, r, http.StatusNotFound, "Not Found", "case not found")
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn("case_backend_timeout", zap.String("operation", operation))
		respondJSONError(w, r, http.StatusGatewayTimeout, "Gateway Timeout", "case backend did not answer in time")
	case errors.Is(err, context.Canceled):
		// client went away
		return
	default:
		h.logger.Error("case_backend_failed",
			zap.String("operation", operation),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, r, http.StatusBadGateway, "Bad Gateway", "case backend unavailable")
	}
}
