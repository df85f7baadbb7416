// Package metrics provides Prometheus metrics for the settlement engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// EngineMetrics collects and exposes settlement-engine Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheErrors *prometheus.CounterVec
	CacheSweeps prometheus.Counter

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamTimeouts *prometheus.CounterVec

	// Settlement metrics
	SettlementRuns     *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	WinnersResolved    prometheus.Histogram
	PayoutAmounts      prometheus.Histogram
	EntriesSkipped     *prometheus.CounterVec

	// Polling metrics
	PollRefreshes *prometheus.CounterVec
	ActivePolls   *prometheus.GaugeVec

	// Boundary metrics
	RefreshesTotal prometheus.Counter
	StreamClients  prometheus.Gauge
}

// NewEngineMetrics creates a metrics collector with its own registry.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_cache_hits_total",
				Help: "Layer-1 cache hits",
			},
			[]string{"resource"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_cache_misses_total",
				Help: "Layer-1 cache misses (including fall-through on store errors)",
			},
			[]string{"resource"},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_cache_errors_total",
				Help: "Layer-1 store operation failures, degraded to no-ops",
			},
			[]string{"op"},
		),
		CacheSweeps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "squares_cache_sweeps_total",
				Help: "Janitor sweeps of expired cache entries",
			},
		),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_upstream_requests_total",
				Help: "Requests to upstream sources",
			},
			[]string{"source", "status"},
		),
		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "squares_upstream_latency_seconds",
				Help:    "Upstream request latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"source"},
		),
		UpstreamTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_upstream_timeouts_total",
				Help: "Upstream requests that timed out and degraded to the last good snapshot",
			},
			[]string{"source"},
		),

		SettlementRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_settlement_runs_total",
				Help: "Settlement view computations",
			},
			[]string{"status"},
		),
		SettlementDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squares_settlement_duration_seconds",
				Help:    "Time to compute one contest's settlement view",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
			},
		),
		WinnersResolved: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squares_winners_resolved",
				Help:    "Winning box entries per settlement computation",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		PayoutAmounts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squares_payout_amount",
				Help:    "Per-entry payout amounts in contest currency units",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
			},
		),
		EntriesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_entries_skipped_total",
				Help: "Settlement entries skipped due to data errors",
			},
			[]string{"reason"},
		),

		PollRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squares_poll_refreshes_total",
				Help: "Layer-2 adaptive poll refreshes",
			},
			[]string{"resource"},
		),
		ActivePolls: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "squares_active_polls",
				Help: "Layer-2 poll loops currently running",
			},
			[]string{"resource"},
		),

		RefreshesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "squares_force_refreshes_total",
				Help: "Force-refresh operations via the boundary",
			},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "squares_stream_clients",
				Help: "Connected WebSocket stream clients",
			},
		),
	}

	em.registerAll()
	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.CacheHits,
		em.CacheMisses,
		em.CacheErrors,
		em.CacheSweeps,
		em.UpstreamRequests,
		em.UpstreamLatency,
		em.UpstreamTimeouts,
		em.SettlementRuns,
		em.SettlementDuration,
		em.WinnersResolved,
		em.PayoutAmounts,
		em.EntriesSkipped,
		em.PollRefreshes,
		em.ActivePolls,
		em.RefreshesTotal,
		em.StreamClients,
	)
}

// Registry returns the prometheus registry.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// --- Helper methods for recording metrics ---

// CacheHit implements the cache recorder contract.
func (em *EngineMetrics) CacheHit(resource string) {
	em.CacheHits.WithLabelValues(resource).Inc()
}

// CacheMiss implements the cache recorder contract.
func (em *EngineMetrics) CacheMiss(resource string) {
	em.CacheMisses.WithLabelValues(resource).Inc()
}

// CacheError implements the cache recorder contract.
func (em *EngineMetrics) CacheError(op string) {
	em.CacheErrors.WithLabelValues(op).Inc()
}

// RecordUpstream records one upstream request.
func (em *EngineMetrics) RecordUpstream(source, status string, latencySec float64) {
	em.UpstreamRequests.WithLabelValues(source, status).Inc()
	if latencySec > 0 {
		em.UpstreamLatency.WithLabelValues(source).Observe(latencySec)
	}
}

// RecordUpstreamTimeout records a timed-out upstream request.
func (em *EngineMetrics) RecordUpstreamTimeout(source string) {
	em.UpstreamTimeouts.WithLabelValues(source).Inc()
}

// RecordSettlement records one settlement view computation.
func (em *EngineMetrics) RecordSettlement(status string, durationSec float64, winners int) {
	em.SettlementRuns.WithLabelValues(status).Inc()
	if durationSec > 0 {
		em.SettlementDuration.Observe(durationSec)
	}
	if winners >= 0 {
		em.WinnersResolved.Observe(float64(winners))
	}
}

// RecordSkippedEntry records a settlement entry dropped for a data error.
func (em *EngineMetrics) RecordSkippedEntry(reason string) {
	em.EntriesSkipped.WithLabelValues(reason).Inc()
}

// RecordPollRefresh records one Layer-2 poll refresh.
func (em *EngineMetrics) RecordPollRefresh(resource string) {
	em.PollRefreshes.WithLabelValues(resource).Inc()
}

// PollStarted / PollStopped track running poll loops.
func (em *EngineMetrics) PollStarted(resource string) {
	em.ActivePolls.WithLabelValues(resource).Inc()
}

func (em *EngineMetrics) PollStopped(resource string) {
	em.ActivePolls.WithLabelValues(resource).Dec()
}

// RecordRefresh records a boundary force-refresh.
func (em *EngineMetrics) RecordRefresh() {
	em.RefreshesTotal.Inc()
}

// RecordPayout records one winning entry's computed amount.
func (em *EngineMetrics) RecordPayout(amount decimal.Decimal) {
	em.PayoutAmounts.Observe(DecimalToFloat64(amount))
}

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *EngineMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *EngineMetrics {
	once.Do(func() {
		defaultMetrics = NewEngineMetrics()
	})
	return defaultMetrics
}
