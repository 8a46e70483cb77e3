// Package metrics provides Prometheus metrics for the train position engine.
package metrics

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Fusion metrics
	FusionCyclesTotal         *prometheus.CounterVec
	FusionConsecutiveFailures prometheus.Gauge
	FeedAgeSeconds            prometheus.Gauge
	TripsMatched              prometheus.Gauge
	TripsUnmatchedTotal       prometheus.Counter
	TripsSuspectTotal         prometheus.Counter

	// Query metrics
	ActiveTrains *prometheus.GaugeVec

	logger *slog.Logger
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nowtrain_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nowtrain_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	fusionCyclesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nowtrain_fusion_cycles_total",
			Help: "Fusion refresh cycles by result",
		},
		[]string{"result"},
	)

	fusionConsecutiveFailures := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nowtrain_fusion_consecutive_failures",
		Help: "Consecutive failed fusion cycles; five or more degrades the publisher",
	})

	feedAgeSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nowtrain_feed_age_seconds",
		Help: "Age of the last successfully fused GTFS-RT snapshot",
	})

	tripsMatched := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nowtrain_trips_matched",
		Help: "Realtime trips matched to timetable trips in the current fused set",
	})

	tripsUnmatchedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nowtrain_trips_unmatched_total",
		Help: "Realtime trips whose identifier could not be mapped to the timetable",
	})

	tripsSuspectTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nowtrain_trips_suspect_total",
		Help: "Realtime trips with delay offsets outside the accepted range",
	})

	activeTrains := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nowtrain_active_trains",
			Help: "Trains reported by the most recent position query",
		},
		[]string{"line"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		fusionCyclesTotal,
		fusionConsecutiveFailures,
		feedAgeSeconds,
		tripsMatched,
		tripsUnmatchedTotal,
		tripsSuspectTotal,
		activeTrains,
	)

	return &Metrics{
		Registry:                  registry,
		HTTPRequestsTotal:         httpRequestsTotal,
		HTTPRequestDuration:       httpRequestDuration,
		FusionCyclesTotal:         fusionCyclesTotal,
		FusionConsecutiveFailures: fusionConsecutiveFailures,
		FeedAgeSeconds:            feedAgeSeconds,
		TripsMatched:              tripsMatched,
		TripsUnmatchedTotal:       tripsUnmatchedTotal,
		TripsSuspectTotal:         tripsSuspectTotal,
		ActiveTrains:              activeTrains,
		logger:                    logger,
	}
}
