package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Processing outcomes: skipped, inserted, conflicted, malformed, failed, cancelled
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_processor_events_total",
			Help: "Total number of game events processed, by outcome",
		},
		[]string{"outcome"},
	)

	InFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sportsagg_processor_in_flight",
			Help: "Number of game events currently being processed",
		},
	)

	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sportsagg_processor_duration_seconds",
			Help:    "Duration of a single processing attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Duplicate oracle metrics
	OracleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_processor_oracle_checks_total",
			Help: "Total number of duplicate oracle checks, by result",
		},
		[]string{"result"},
	)

	OracleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_processor_oracle_errors_total",
			Help: "Total number of cache errors swallowed by the oracle, by operation",
		},
		[]string{"op"},
	)

	// Storage metrics
	StoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sportsagg_processor_store_duration_seconds",
			Help:    "Duration of game inserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportsagg_processor_store_errors_total",
			Help: "Total number of failed game inserts",
		},
	)

	// Dead letter queue metrics
	DLQTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_processor_dlq_total",
			Help: "Total number of events written to the dead letter queue, by reason",
		},
		[]string{"reason"},
	)
)
