// Package metrics defines the Prometheus metric collectors used across the
// pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	MentionsProcessedTotal prometheus.Counter
	MatchScore             *prometheus.HistogramVec
	MatchesTotal           *prometheus.CounterVec
	MatchCacheHitsTotal    prometheus.Counter
	MatchCacheMissesTotal  prometheus.Counter

	DecisionsTotal *prometheus.CounterVec
	RunsTotal      *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	ReferenceSize  *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		MentionsProcessedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ade_mentions_processed_total",
				Help: "Total drug-ADE mentions run through the pipeline.",
			},
		),
		MatchScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ade_fuzzy_match_score",
				Help:    "Fuzzy match scores by term side (drug, ade).",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100},
			},
			[]string{"side"},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ade_fuzzy_matches_total",
				Help: "Fuzzy match outcomes by term side and outcome (matched, unmatched).",
			},
			[]string{"side", "outcome"},
		),
		MatchCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ade_match_cache_hits_total",
				Help: "Total fuzzy-match cache hits.",
			},
		),
		MatchCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ade_match_cache_misses_total",
				Help: "Total fuzzy-match cache misses.",
			},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ade_filter_decisions_total",
				Help: "Filter decisions by reason code.",
			},
			[]string{"reason"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ade_pipeline_runs_total",
				Help: "Completed pipeline runs by status (ok, error).",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ade_pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"stage"},
		),
		ReferenceSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ade_reference_size",
				Help: "Size of the loaded reference by structure (drugs, side_effects, associations).",
			},
			[]string{"structure"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MentionsProcessedTotal,
		m.MatchScore,
		m.MatchesTotal,
		m.MatchCacheHitsTotal,
		m.MatchCacheMissesTotal,
		m.DecisionsTotal,
		m.RunsTotal,
		m.StageDuration,
		m.ReferenceSize,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
