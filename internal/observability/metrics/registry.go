// Package metrics holds the Prometheus collectors for the quotla API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotla_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotla_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quotla_http_rate_limited_total",
			Help: "Requests rejected by the per-tenant rate limiter",
		},
	)
)

// Currency conversion metrics
var (
	// ConversionsTotal counts Convert calls by outcome (ok, stale, identity,
	// invalid, not_found, unavailable).
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotla_fx_conversions_total",
			Help: "Currency conversions by outcome",
		},
		[]string{"outcome"},
	)

	// RateCacheLookups counts cache reads by state (fresh, stale, miss).
	RateCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotla_fx_cache_lookups_total",
			Help: "Rate cache lookups by state",
		},
		[]string{"state"},
	)

	RateFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotla_fx_fetch_duration_seconds",
			Help:    "Duration of outbound rate provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"},
	)
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotla_exports_total",
			Help: "Document exports by type, format and outcome",
		},
		[]string{"type", "format", "outcome"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotla_export_duration_seconds",
			Help:    "Time spent rendering an export",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"format"},
	)
)

// AI description metrics
var (
	AIGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotla_ai_generations_total",
			Help: "AI description attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
)
