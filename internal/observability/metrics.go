// Package observability exposes Prometheus metrics for the analysis pipeline
// and the HTTP API.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "claimlens"

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// analysesTotal counts finished analyses.
	// Labels: kind (claim, document, image), recommendation
	analysesTotal *prometheus.CounterVec

	// analysisDuration measures engine time per analysis, cache hits excluded.
	// Labels: kind
	analysisDuration *prometheus.HistogramVec

	// scores tracks the distribution of headline scores.
	// Labels: kind
	scores *prometheus.HistogramVec

	// engineErrors counts analyses whose report carries an absorbed error.
	// Labels: kind
	engineErrors *prometheus.CounterVec

	// cacheLookups counts report cache lookups.
	// Labels: kind, result (hit, miss)
	cacheLookups *prometheus.CounterVec

	// advisories counts LLM advisory attempts.
	// Labels: provider, status (ok, failed, unavailable)
	advisories *prometheus.CounterVec

	// httpRequests counts API requests.
	// Labels: route, method, status
	httpRequests *prometheus.CounterVec

	// httpDuration measures API request latency.
	// Labels: route, method
	httpDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry together with the
// Go runtime and process collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		analysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Finished analyses by kind and recommendation",
		}, []string{"kind", "recommendation"}),
		analysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Engine time per analysis in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		scores: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of headline scores",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"kind"}),
		engineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Analyses that degraded to a neutral report",
		}, []string{"kind"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Report cache lookups by result",
		}, []string{"kind", "result"}),
		advisories: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "advisories_total",
			Help:      "LLM advisory attempts by status",
		}, []string{"provider", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordAnalysis records one finished, non-cached analysis
func (m *Metrics) RecordAnalysis(kind, recommendation string, score float64, d time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(kind, recommendation).Inc()
	m.analysisDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.scores.WithLabelValues(kind).Observe(score)
	if degraded {
		m.engineErrors.WithLabelValues(kind).Inc()
	}
}

// RecordCacheLookup records a report cache hit or miss
func (m *Metrics) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordAdvisory records an LLM advisory outcome
func (m *Metrics) RecordAdvisory(provider, status string) {
	if m == nil {
		return
	}
	m.advisories.WithLabelValues(provider, status).Inc()
}

// RecordHTTP records one API request
func (m *Metrics) RecordHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
