package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techfeed_fetch_attempts_total",
		Help: "The total number of feed fetch attempts",
	}, []string{"source"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techfeed_fetch_errors_total",
		Help: "The total number of failed feed fetches",
	}, []string{"source"})

	sourceItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "techfeed_source_items",
		Help: "Number of items returned by each source in the last run",
	}, []string{"source"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "techfeed_build_duration_seconds",
		Help:    "Duration of complete aggregation runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // Start at 500ms, double each bucket
	})

	buildErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techfeed_build_errors_total",
		Help: "The total number of aggregation runs that failed to write the artifact",
	})

	lastBuild = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "techfeed_last_build_timestamp_seconds",
		Help: "Unix time of the last successful aggregation run",
	})
)
