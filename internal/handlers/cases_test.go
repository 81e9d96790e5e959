package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensai-22/penal-sub001/internal/cases"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

type fakeCaseService struct {
	listOpts      cases.ListOptions
	summaryFilter models.CaseFilter
	summaryLimit  int
	getPPU        string
	getStrategy   urgency.SortStrategy
	err           error
}

func (f *fakeCaseService) List(_ context.Context, opts cases.ListOptions) (*models.CasePage, error) {
	f.listOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	view := models.NewCaseView(models.CaseRecord{RegistroPPU: "LIM-1"}, urgency.Result{Label: urgency.LabelOverdue, SortKey: urgency.SortKeyOverdue, Class: urgency.ClassOverdue})
	return &models.CasePage{Items: []models.CaseView{view}, Page: opts.Page, PageSize: opts.PageSize, Total: 1, TotalPages: 1}, nil
}

func (f *fakeCaseService) Summary(_ context.Context, filter models.CaseFilter, mostUrgent int) (*models.CaseSummary, error) {
	f.summaryFilter = filter
	f.summaryLimit = mostUrgent
	if f.err != nil {
		return nil, f.err
	}
	return &models.CaseSummary{Total: 0, Counts: map[urgency.Class]int{urgency.ClassOverdue: 0}, MostUrgent: []models.CaseView{}}, nil
}

func (f *fakeCaseService) Get(_ context.Context, ppu string, strategy urgency.SortStrategy) (*models.CaseView, error) {
	f.getPPU = ppu
	f.getStrategy = strategy
	if f.err != nil {
		return nil, f.err
	}
	view := models.NewCaseView(models.CaseRecord{RegistroPPU: ppu}, urgency.Result{Label: "N/A", SortKey: urgency.NoUrgency, Class: urgency.ClassNotApplicable})
	return &view, nil
}

func newCaseRouter(svc CaseService) *mux.Router {
	r := mux.NewRouter()
	NewCaseHandler(svc, nil).RegisterRoutes(r.PathPrefix("/api/v1/cases").Subrouter())
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestCaseHandler_ListCases(t *testing.T) {
	t.Parallel()

	svc := &fakeCaseService{}
	rr := serve(newCaseRouter(svc), http.MethodGet,
		"/api/v1/cases?page=2&page_size=20&abogado=PEREZ&estado=ingresado&tab=fiscal&query=robo&class=urgent&actionable=true&refresh=1&sort=label")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, cases.ListOptions{
		Filter:         models.CaseFilter{Query: "robo", Abogado: "PEREZ", Estado: "ingresado", Tab: "fiscal"},
		Class:          urgency.ClassUrgent,
		ActionableOnly: true,
		Strategy:       urgency.SortByLabel,
		Page:           2,
		PageSize:       20,
		Refresh:        true,
	}, svc.listOpts)

	body := decodeBody(t, rr)
	data := body["data"].(map[string]any)
	items := data["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "LIM-1", item["registro_ppu"])
	assert.Equal(t, "Vencido", item["dias_restantes"])
	assert.Equal(t, "overdue", item["urgency_class"])
}

func TestCaseHandler_ListCasesDefaults(t *testing.T) {
	t.Parallel()

	svc := &fakeCaseService{}
	rr := serve(newCaseRouter(svc), http.MethodGet, "/api/v1/cases")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.listOpts.Page)
	assert.Equal(t, DefaultPageSize, svc.listOpts.PageSize)
	assert.Empty(t, svc.listOpts.Strategy)
	assert.True(t, svc.listOpts.Filter.IsZero())
}

func TestCaseHandler_ListCasesBadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		query       string
		wantDetails map[string]any
	}{
		{name: "unknown sort", query: "sort=alpha", wantDetails: map[string]any{"sort": "sort_strategy"}},
		{name: "unknown class", query: "class=late", wantDetails: map[string]any{"class": "urgency_class"}},
		{name: "bad actionable", query: "actionable=maybe"},
		{name: "bad refresh", query: "refresh=later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := serve(newCaseRouter(&fakeCaseService{}), http.MethodGet, "/api/v1/cases?"+tt.query)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			if tt.wantDetails != nil {
				assert.Equal(t, tt.wantDetails, decodeBody(t, rr)["details"])
			}
		})
	}
}

func TestCaseHandler_ServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		target     string
		wantStatus int
	}{
		{name: "not found", err: cases.ErrCaseNotFound, target: "/api/v1/cases/LIM-404", wantStatus: http.StatusNotFound},
		{name: "backend down", err: errors.New("connection refused"), target: "/api/v1/cases", wantStatus: http.StatusBadGateway},
		{name: "backend timeout", err: fmt.Errorf("failed to fetch cases: %w", context.DeadlineExceeded), target: "/api/v1/cases/summary", wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := serve(newCaseRouter(&fakeCaseService{err: tt.err}), http.MethodGet, tt.target)
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, false, decodeBody(t, rr)["success"])
		})
	}
}

func TestCaseHandler_Summary(t *testing.T) {
	t.Parallel()

	svc := &fakeCaseService{}
	rr := serve(newCaseRouter(svc), http.MethodGet, "/api/v1/cases/summary?abogado=RUIZ&limit=500")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.CaseFilter{Abogado: "RUIZ"}, svc.summaryFilter)
	assert.Equal(t, MaxSummaryLimit, svc.summaryLimit)

	rr = serve(newCaseRouter(svc), http.MethodGet, "/api/v1/cases/summary")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, cases.DefaultMostUrgent, svc.summaryLimit)

	rr = serve(newCaseRouter(svc), http.MethodGet, "/api/v1/cases/summary?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCaseHandler_GetCase(t *testing.T) {
	t.Parallel()

	svc := &fakeCaseService{}
	rr := serve(newCaseRouter(svc), http.MethodGet, "/api/v1/cases/LIM-2024-77?sort=label")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "LIM-2024-77", svc.getPPU)
	assert.Equal(t, urgency.SortByLabel, svc.getStrategy)

	data := decodeBody(t, rr)["data"].(map[string]any)
	assert.Equal(t, "N/A", data["dias_restantes"])
	assert.Equal(t, float64(urgency.NoUrgency), data["urgency_sort_key"])

	rr = serve(newCaseRouter(svc), http.MethodGet, "/api/v1/cases/LIM-1?sort=alpha")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCaseHandler_CanceledRequestWritesNothing(t *testing.T) {
	t.Parallel()

	rr := serve(newCaseRouter(&fakeCaseService{err: context.Canceled}), http.MethodGet, "/api/v1/cases")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, rr.Body.Len())
}

