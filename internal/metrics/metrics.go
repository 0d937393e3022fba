// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline and the async processor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tokentra"

var (
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total number of SDK ingest requests",
		},
		[]string{"status"},
	)

	IngestRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "request_duration_seconds",
			Help:      "SDK ingest request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of telemetry events by outcome",
		},
		[]string{"outcome"}, // processed/failed
	)

	RateLimitDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rate_limit_denied_total",
			Help:      "Total number of requests denied by rate limiting",
		},
		[]string{"scope"}, // minute/day
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "queue_depth",
			Help:      "Current number of records waiting in the usage queue",
		},
	)

	ProcessorBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "batches_total",
			Help:      "Total number of usage batches processed",
		},
		[]string{"status"}, // ok/retried/dead_lettered
	)

	AlertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total number of alerts triggered",
		},
		[]string{"type"},
	)
)
