// Package metrics exposes Prometheus metrics for the case desk API and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tensai-22/penal-sub001/internal/models"
	"github.com/tensai-22/penal-sub001/internal/urgency"
)

const namespace = "casedesk"

var (
	httpDurationBuckets    = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
)

// Metrics holds every collector the service reports
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	EvaluationsTotal    *prometheus.CounterVec
	BackendRequests     *prometheus.HistogramVec
	CacheLookups        *prometheus.CounterVec
	SweepsTotal         *prometheus.CounterVec
	SweepCases          *prometheus.GaugeVec
}

// New creates and registers the metrics on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   httpDurationBuckets,
		}, []string{"method", "route"}),
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urgency_evaluations_total",
			Help:      "Deadline evaluations by resulting class",
		}, []string{"class"}),
		BackendRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Case backend request duration",
			Buckets:   backendDurationBuckets,
		}, []string{"operation", "status_code"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_cache_lookups_total",
			Help:      "Case cache lookups by result",
		}, []string{"result"}),
		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Overdue sweeps by final status",
		}, []string{"status"}),
		SweepCases: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sweep_cases",
			Help:      "Case counts found by the last completed sweep",
		}, []string{"class"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EvaluationsTotal,
		m.BackendRequests,
		m.CacheLookups,
		m.SweepsTotal,
		m.SweepCases,
	)
	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTPRequest records one served request
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveEvaluation counts one urgency result
func (m *Metrics) ObserveEvaluation(class urgency.Class) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(string(class)).Inc()
}

// ObserveBackendRequest implements backend.RequestObserver
func (m *Metrics) ObserveBackendRequest(operation string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.BackendRequests.WithLabelValues(operation, code).Observe(d.Seconds())
}

// ObserveCacheLookup counts a cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveSweep records the outcome of a sweep run
func (m *Metrics) ObserveSweep(run *models.SweepRun) {
	if m == nil || run == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(string(run.Status)).Inc()
	if run.Status != models.SweepStatusCompleted {
		return
	}
	m.SweepCases.WithLabelValues("total").Set(float64(run.Total))
	m.SweepCases.WithLabelValues(string(urgency.ClassOverdue)).Set(float64(run.Overdue))
	m.SweepCases.WithLabelValues(string(urgency.ClassUrgent)).Set(float64(run.Urgent))
	m.SweepCases.WithLabelValues(string(urgency.ClassInvalid)).Set(float64(run.Invalid))
}
