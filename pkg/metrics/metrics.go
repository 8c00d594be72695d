// Package metrics provides Prometheus metrics for the collection pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesFetched counts upstream pages fetched per run.
	// Labels: query_type (rest/graphql), status (success/failure)
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_pages_fetched_total",
			Help: "Total number of upstream API pages fetched",
		},
		[]string{"query_type", "status"},
	)

	// RecordsFetched counts records extracted from upstream responses.
	RecordsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_records_fetched_total",
			Help: "Total number of records extracted from API responses",
		},
	)

	// RecordsStored counts upsert outcomes.
	// Labels: outcome (new/updated/failed)
	RecordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_records_stored_total",
			Help: "Total number of records written to the entity store",
		},
		[]string{"outcome"},
	)

	// PageFetchLatency tracks upstream page latency.
	PageFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_page_fetch_latency_seconds",
			Help:    "Upstream page fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type"},
	)

	// RunDuration tracks end-to-end sync run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_run_duration_seconds",
			Help:    "End-to-end collection run duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// Timer measures an operation duration.
type Timer struct {
	start time.Time
}

// NewTimer starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
