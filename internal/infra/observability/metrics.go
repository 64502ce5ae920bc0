package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/marloweapps/flexspend-api/internal/domain"
)

// Metrics holds all Prometheus metrics for the budget backend.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration        *prometheus.HistogramVec
	externalErrors         *prometheus.CounterVec
	cacheHits              *prometheus.CounterVec
	cacheMisses            *prometheus.CounterVec
	syncRuns               *prometheus.CounterVec
	transactionsSynced     *prometheus.CounterVec
	transactionsClassified *prometheus.CounterVec
	recordsSkipped         *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flexspend_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		syncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_sync_runs_total",
				Help: "Total sync coordinator runs by kind and result.",
			},
			[]string{"kind", "result"},
		),
		transactionsSynced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_transactions_synced_total",
				Help: "Total transactions reconciled by delta operation.",
			},
			[]string{"operation"},
		),
		transactionsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_transactions_classified_total",
				Help: "Total transactions classified by budget category.",
			},
			[]string{"category"},
		),
		recordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexspend_records_skipped_total",
				Help: "Total records skipped during reconciliation.",
			},
			[]string{"reason"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrSyncRun increments the sync run counter.
// kind is "delta" or "backfill"; result is "success" or "error".
func (m *Metrics) IncrSyncRun(kind, result string) {
	m.syncRuns.WithLabelValues(kind, result).Inc()
}

// AddTransactionsSynced records reconciled transactions per delta operation.
func (m *Metrics) AddTransactionsSynced(operation string, n int) {
	m.transactionsSynced.WithLabelValues(operation).Add(float64(n))
}

// IncrTransactionClassified counts a classified transaction by budget
// category ("income", "fixed", "flex").
func (m *Metrics) IncrTransactionClassified(category string) {
	m.transactionsClassified.WithLabelValues(category).Inc()
}

// IncrRecordSkipped counts a record dropped from a batch
// ("malformed_date", "store_error").
func (m *Metrics) IncrRecordSkipped(reason string) {
	m.recordsSkipped.WithLabelValues(reason).Inc()
}

// SyncSnapshot returns current counter values for the
// GET /v1/metrics/sync endpoint.
func (m *Metrics) SyncSnapshot() *domain.SyncMetrics {
	deltaRuns := getCounterValue(m.syncRuns, "delta", "success") +
		getCounterValue(m.syncRuns, "delta", "error")
	backfillRuns := getCounterValue(m.syncRuns, "backfill", "success") +
		getCounterValue(m.syncRuns, "backfill", "error")
	failures := getCounterValue(m.syncRuns, "delta", "error") +
		getCounterValue(m.syncRuns, "backfill", "error")

	added := getCounterValue(m.transactionsSynced, "added")
	modified := getCounterValue(m.transactionsSynced, "modified")
	removed := getCounterValue(m.transactionsSynced, "removed")
	skipped := getCounterValue(m.recordsSkipped, "malformed_date") +
		getCounterValue(m.recordsSkipped, "store_error")

	cacheHits := getCounterValue(m.cacheHits, "metrics")
	cacheMisses := getCounterValue(m.cacheMisses, "metrics")
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.SyncMetrics{
		DeltaRuns:            int64(deltaRuns),
		BackfillRuns:         int64(backfillRuns),
		FailedRuns:           int64(failures),
		TransactionsAdded:    int64(added),
		TransactionsModified: int64(modified),
		TransactionsRemoved:  int64(removed),
		RecordsSkipped:       int64(skipped),
		CacheHitRate:         cacheHitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec
// for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
