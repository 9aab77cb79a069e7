// Package metrics provides Prometheus metrics for newsdigest.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsdigest"

var (
	// RunsTotal counts ingestion runs by outcome ("ok" or a pipeline error kind).
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Total number of ingestion runs",
		},
		[]string{"status"},
	)

	// RunDuration measures full ingestion run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// SiteFetchTotal counts per-site fetches.
	SiteFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "site_fetch_total",
			Help:      "Total number of site fetches",
		},
		[]string{"site", "status"},
	)

	// SiteFetchDuration measures per-site fetch duration, retries included.
	SiteFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "site_fetch_duration_seconds",
			Help:      "Duration of site fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"site"},
	)

	// UpsertsTotal counts candidates by store outcome.
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Total number of candidates handled by the store writer",
		},
		[]string{"outcome"},
	)

	// CacheRequestsTotal counts read cache lookups.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of read cache lookups",
		},
		[]string{"result"},
	)
)

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordRun records a finished ingestion run. status is "ok" or an error kind.
func RecordRun(status string, seconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(seconds)
}

// RecordSite records one site fetch.
func RecordSite(site string, ok bool, seconds float64) {
	SiteFetchTotal.WithLabelValues(site, status(ok)).Inc()
	SiteFetchDuration.WithLabelValues(site).Observe(seconds)
}

// RecordUpsert records one store writer outcome.
func RecordUpsert(outcome string) {
	UpsertsTotal.WithLabelValues(outcome).Inc()
}

// RecordCache records a cache lookup: "hit", "miss" or "error".
func RecordCache(result string) {
	CacheRequestsTotal.WithLabelValues(result).Inc()
}
