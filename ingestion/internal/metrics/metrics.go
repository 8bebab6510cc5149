package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_ingestion_fetches_total",
			Help: "Total number of source fetches, by source and status",
		},
		[]string{"source", "status"},
	)

	EventsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_ingestion_events_fetched_total",
			Help: "Total number of game reports returned by sources",
		},
		[]string{"source"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_ingestion_events_published_total",
			Help: "Total number of game reports published to the bus",
		},
		[]string{"source"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsagg_ingestion_publish_errors_total",
			Help: "Total number of failed publish batches",
		},
		[]string{"source"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sportsagg_ingestion_cycle_duration_seconds",
			Help:    "Duration of one fetch and publish cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
