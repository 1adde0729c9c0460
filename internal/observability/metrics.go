// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Provider fetch metrics
	SourceFetchesTotal *prometheus.CounterVec
	SourceFetchErrors  *prometheus.CounterVec
	SourceFetchLatency *prometheus.HistogramVec
	TokensFetchedTotal *prometheus.CounterVec

	// Cache metrics
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheWriteErrors prometheus.Counter

	// Merge metrics
	TokensMerged   prometheus.Counter
	MergeConflicts prometheus.Counter

	// Scheduler metrics
	RefreshRunsTotal *prometheus.CounterVec
	RefreshDuration  *prometheus.HistogramVec
	SnapshotSize     prometheus.Gauge

	// Broadcast metrics
	LiveConnections prometheus.Gauge
	BroadcastsSent  *prometheus.CounterVec
	BroadcastErrors prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "meme_aggregator"
	}

	return &Metrics{
		SourceFetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetches_total",
			Help:      "Total provider fetches by source and operation",
		}, []string{"source", "operation"}),
		SourceFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_errors_total",
			Help:      "Provider fetches that failed after exhausting retries",
		}, []string{"source", "operation"}),
		SourceFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Provider fetch latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "operation"}),
		TokensFetchedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "tokens_fetched_total",
			Help:      "Normalized token records produced per source",
		}, []string{"source"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by read path",
		}, []string{"path"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses by read path",
		}, []string{"path"}),
		CacheWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "write_errors_total",
			Help:      "Best-effort cache writes that failed",
		}),
		TokensMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "tokens_total",
			Help:      "Canonical records produced by the merge engine",
		}),
		MergeConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "merge",
			Name:      "conflicts_total",
			Help:      "Addresses reported by more than one source",
		}),
		RefreshRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled task runs by task and status",
		}, []string{"task", "status"}),
		RefreshDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Scheduled task run duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		SnapshotSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "snapshot_size",
			Help:      "Addresses currently held in the previous-snapshot map",
		}),
		LiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "live_connections",
			Help:      "Currently connected websocket clients",
		}),
		BroadcastsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Broadcast events delivered by type",
		}, []string{"type"}),
		BroadcastErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcast_errors_total",
			Help:      "Per-connection send failures during broadcast",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSourceFetch records one provider fetch with its outcome.
func RecordSourceFetch(source, operation string, seconds float64, err error) {
	DefaultMetrics.SourceFetchesTotal.WithLabelValues(source, operation).Inc()
	DefaultMetrics.SourceFetchLatency.WithLabelValues(source, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.SourceFetchErrors.WithLabelValues(source, operation).Inc()
	}
}

// RecordTokensFetched counts normalized records produced by a source.
func RecordTokensFetched(source string, n int) {
	DefaultMetrics.TokensFetchedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordCacheHit increments the hit counter for a read path.
func RecordCacheHit(path string) {
	DefaultMetrics.CacheHits.WithLabelValues(path).Inc()
}

// RecordCacheMiss increments the miss counter for a read path.
func RecordCacheMiss(path string) {
	DefaultMetrics.CacheMisses.WithLabelValues(path).Inc()
}

// RecordCacheWriteError counts a swallowed cache write failure.
func RecordCacheWriteError() {
	DefaultMetrics.CacheWriteErrors.Inc()
}

// RecordMerge records the outcome of one merge pass.
func RecordMerge(produced, conflicts int) {
	DefaultMetrics.TokensMerged.Add(float64(produced))
	DefaultMetrics.MergeConflicts.Add(float64(conflicts))
}

// RecordRefreshRun records a scheduled task run.
func RecordRefreshRun(task, status string, seconds float64) {
	DefaultMetrics.RefreshRunsTotal.WithLabelValues(task, status).Inc()
	DefaultMetrics.RefreshDuration.WithLabelValues(task).Observe(seconds)
}

// UpdateSnapshotSize updates the previous-snapshot map size gauge.
func UpdateSnapshotSize(n int) {
	DefaultMetrics.SnapshotSize.Set(float64(n))
}

// UpdateLiveConnections updates the live websocket connection gauge.
func UpdateLiveConnections(n int) {
	DefaultMetrics.LiveConnections.Set(float64(n))
}

// RecordBroadcast counts delivered broadcast events of a type.
func RecordBroadcast(messageType string, delivered int) {
	DefaultMetrics.BroadcastsSent.WithLabelValues(messageType).Add(float64(delivered))
}

// RecordBroadcastError counts a per-connection send failure.
func RecordBroadcastError() {
	DefaultMetrics.BroadcastErrors.Inc()
}
