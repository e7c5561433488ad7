// Prometheus instrumentation for the search pipeline.
//
// Label cardinality is bounded by the number of configured indexers, which a
// Jackett deployment keeps in the tens at most.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// searchesTotal counts fan-out searches by terminal disposition.
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of fan-out searches started, by result.",
		},
		[]string{"result"}, // started|registry_unavailable|invalid_query
	)

	// indexerOutcomes counts per-indexer outcomes by disposition.
	indexerOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_indexer_outcomes_total",
			Help: "Per-indexer query outcomes.",
		},
		[]string{"indexer", "outcome"}, // outcome: success|timeout|error
	)

	// indexerQueryDuration records per-indexer query latency in seconds.
	indexerQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_indexer_query_duration_seconds",
			Help:    "Duration of upstream per-indexer queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"indexer"},
	)
)

func init() {
	prometheus.MustRegister(searchesTotal, indexerOutcomes, indexerQueryDuration)
}
