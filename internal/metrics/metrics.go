// Package metrics provides Prometheus metrics for the news aggregator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"NewsAggregator/internal/scanner"
)

var (
	// PagesFetched counts page outcomes per source.
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsagg",
			Name:      "pages_fetched_total",
			Help:      "Total number of provider pages requested, by outcome",
		},
		[]string{"source", "outcome"},
	)

	// ArticlesSaved counts newly persisted articles.
	ArticlesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsagg",
			Name:      "articles_saved_total",
			Help:      "Total number of new articles persisted",
		},
		[]string{"source"},
	)

	// AggregationRuns counts finished aggregation runs.
	AggregationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsagg",
			Name:      "aggregation_runs_total",
			Help:      "Total number of aggregation runs",
		},
		[]string{"status"},
	)

	// AggregationDuration measures run duration.
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "newsagg",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of aggregation runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// HubEventsDropped counts events evicted from full subscriber buffers.
	HubEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsagg",
			Name:      "hub_events_dropped_total",
			Help:      "Total number of notification events dropped for slow subscribers",
		},
	)

	// HubSubscribers tracks connected live-update subscribers.
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "newsagg",
			Name:      "hub_subscribers",
			Help:      "Number of connected live-update subscribers",
		},
	)

	// ClustersIngested counts clusters written from analysis results.
	ClustersIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "newsagg",
			Name:      "clusters_ingested_total",
			Help:      "Total number of story clusters ingested",
		},
	)
)

// PageObserver returns a pagination observer that counts pages for source.
func PageObserver(source string) scanner.PageObserver {
	return func(_ int, outcome scanner.StopReason, _ int) {
		PagesFetched.WithLabelValues(source, string(outcome)).Inc()
	}
}

// RecordRun records a finished aggregation run.
func RecordRun(status string, duration time.Duration) {
	AggregationRuns.WithLabelValues(status).Inc()
	AggregationDuration.Observe(duration.Seconds())
}

// RecordSaved adds n persisted articles for source.
func RecordSaved(source string, n int) {
	if n > 0 {
		ArticlesSaved.WithLabelValues(source).Add(float64(n))
	}
}
