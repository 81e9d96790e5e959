// Package cases fetches case records from the backend and decorates them
// with their deadline urgency.
package cases

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tensai-22/penal-sub001/internal/backend"
	"github.com/tensai-22/penal-sub001/internal/cache"
	"github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500

	// DefaultMostUrgent is how many records a summary lists
	DefaultMostUrgent = 5
)

// ErrCaseNotFound is returned when the backend has no record for a registro_ppu
var ErrCaseNotFound = errors.New("case not found")

// Backend is the subset of the backend client the service needs
type Backend interface {
	ListCases(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error)
	SearchCases(ctx context.Context, term string) ([]models.CaseRecord, error)
	GetCase(ctx context.Context, ppu string) (*models.CaseRecord, error)
}

// Observer receives evaluation and cache events
type Observer interface {
	ObserveEvaluation(class urgency.Class)
	ObserveCacheLookup(hit bool)
}

// ListOptions selects, orders and pages case records
type ListOptions struct {
	Filter         models.CaseFilter
	Class          urgency.Class
	ActionableOnly bool
	Strategy       urgency.SortStrategy
	Page           int
	PageSize       int
	Refresh        bool
}

func (o *ListOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
}

// Service evaluates case records fetched from the backend
type Service struct {
	backend   Backend
	cache     cache.CaseCache
	evaluator *urgency.Evaluator
	observer  Observer
	log       *zap.Logger

	// concurrent fetches of the same filter share one backend request
	flight singleflight.Group
}

// NewService creates a case service. cache and observer may be nil.
func NewService(b Backend, c cache.CaseCache, e *urgency.Evaluator, observer Observer, log *zap.Logger) *Service {
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{backend: b, cache: c, evaluator: e, observer: observer, log: log}
}

// Evaluator returns the evaluator the service uses
func (s *Service) Evaluator() *urgency.Evaluator { return s.evaluator }

// List returns one page of decorated records ordered by urgency
func (s *Service) List(ctx context.Context, opts ListOptions) (*models.CasePage, error) {
	opts.normalize()

	records, err := s.fetch(ctx, opts.Filter, opts.Refresh)
	if err != nil {
		return nil, err
	}

	now := s.evaluator.Now()
	views := s.EvaluateRecords(now, records, opts.Strategy)
	views = slices.DeleteFunc(views, func(v models.CaseView) bool {
		if opts.ActionableOnly && !v.UrgencyClass.Actionable() {
			return true
		}
		return opts.Class != "" && v.UrgencyClass != opts.Class
	})
	SortByUrgency(views)

	total := len(views)
	start := min((opts.Page-1)*opts.PageSize, total)
	end := min(start+opts.PageSize, total)
	totalPages := (total + opts.PageSize - 1) / opts.PageSize

	return &models.CasePage{
		Items:       views[start:end],
		Page:        opts.Page,
		PageSize:    opts.PageSize,
		Total:       total,
		TotalPages:  totalPages,
		EvaluatedAt: now,
	}, nil
}

// Summary counts records per urgency class and lists the most urgent ones
func (s *Service) Summary(ctx context.Context, filter models.CaseFilter, mostUrgent int) (*models.CaseSummary, error) {
	if mostUrgent <= 0 {
		mostUrgent = DefaultMostUrgent
	}
	records, err := s.fetch(ctx, filter, false)
	if err != nil {
		return nil, err
	}

	now := s.evaluator.Now()
	views := s.EvaluateRecords(now, records, "")
	SortByUrgency(views)

	counts := make(map[urgency.Class]int, len(urgency.Classes))
	for _, c := range urgency.Classes {
		counts[c] = 0
	}
	var top []models.CaseView
	for _, v := range views {
		counts[v.UrgencyClass]++
		if v.UrgencyClass.Actionable() && len(top) < mostUrgent {
			top = append(top, v)
		}
	}
	if top == nil {
		top = []models.CaseView{}
	}

	return &models.CaseSummary{
		Total:       len(views),
		Counts:      counts,
		MostUrgent:  top,
		EvaluatedAt: now,
	}, nil
}

// Get returns one decorated record
func (s *Service) Get(ctx context.Context, ppu string, strategy urgency.SortStrategy) (*models.CaseView, error) {
	rec, err := s.backend.GetCase(ctx, ppu)
	if backend.IsNotFound(err) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch case %s: %w", logger.SanitizeCaseID(ppu), err)
	}
	views := s.EvaluateRecords(s.evaluator.Now(), []models.CaseRecord{*rec}, strategy)
	return &views[0], nil
}

// EvaluateRecords decorates records using a single instant so that every
// record in one response is measured against the same now. An empty strategy
// uses the evaluator's default.
func (s *Service) EvaluateRecords(now time.Time, records []models.CaseRecord, strategy urgency.SortStrategy) []models.CaseView {
	ev := s.evaluator
	if strategy != "" && strategy != ev.Strategy() {
		ev = ev.WithStrategy(strategy)
	}
	views := make([]models.CaseView, 0, len(records))
	for _, rec := range records {
		res := ev.EvaluateAt(now, rec.FechaAtencion.String(), rec.PlazoAtencion.String())
		if s.observer != nil {
			s.observer.ObserveEvaluation(res.Class)
		}
		views = append(views, models.NewCaseView(rec, res))
	}
	return views
}

// Refresh fetches the records for filter from the backend and replaces the cached copy
func (s *Service) Refresh(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error) {
	return s.fetch(ctx, filter, true)
}

func (s *Service) fetch(ctx context.Context, filter models.CaseFilter, refresh bool) ([]models.CaseRecord, error) {
	if !refresh {
		records, err := s.cache.Get(ctx, filter)
		switch {
		case err == nil:
			s.observeCache(true)
			return records, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			s.log.Warn("case_cache_read_failed", zap.Error(err))
		}
		s.observeCache(false)
	}

	v, err, shared := s.flight.Do(cache.Key(filter), func() (any, error) {
		return s.load(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("case_fetch_shared", zap.String("key", cache.Key(filter)))
	}
	// each caller owns its slice
	return slices.Clone(v.([]models.CaseRecord)), nil
}

func (s *Service) load(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error) {
	var records []models.CaseRecord
	var err error
	if onlyQuery(filter) {
		records, err = s.backend.SearchCases(ctx, filter.Query)
	} else {
		records, err = s.backend.ListCases(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cases: %w", err)
	}

	if err := s.cache.Set(ctx, filter, records); err != nil {
		s.log.Warn("case_cache_write_failed", zap.Error(err))
	}
	return records, nil
}

func (s *Service) observeCache(hit bool) {
	if s.observer != nil {
		s.observer.ObserveCacheLookup(hit)
	}
}

func onlyQuery(f models.CaseFilter) bool {
	return f.Query != "" && f.Abogado == "" && f.Estado == "" && f.Tab == ""
}

// SortByUrgency orders views by ascending sort key, ties broken by registro_ppu
func SortByUrgency(views []models.CaseView) {
	slices.SortStableFunc(views, func(a, b models.CaseView) int {
		if c := cmp.Compare(a.UrgencySortKey, b.UrgencySortKey); c != 0 {
			return c
		}
		return cmp.Compare(a.RegistroPPU, b.RegistroPPU)
	})
}
