package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acknowledgement flips
	FlippedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_flipped_total",
			Help: "Total number of events whose acknowledgement state changed",
		},
		[]string{"operation", "backend"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "events_operation_duration_seconds",
			Help:    "Duration of acknowledgement operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_operation_errors_total",
			Help: "Total number of failed primary mutations",
		},
		[]string{"operation"},
	)

	// Cascading steps
	SoftFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_soft_failures_total",
			Help: "Total number of best-effort steps that failed without failing the request",
		},
		[]string{"step"},
	)

	ScoresDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_scores_deleted_total",
			Help: "Total number of event score rows deleted after flips",
		},
	)

	WindowsRecalculatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_windows_recalculated_total",
			Help: "Total number of windows whose effective scores were updated",
		},
	)

	FindingsTransitionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_findings_transitioned_total",
			Help: "Total number of findings moved to acknowledged",
		},
	)
)
