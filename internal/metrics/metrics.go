// Package metrics holds the Prometheus collectors for adapters, caches and enrichment.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for the service
type Metrics struct {
	adapterRequests *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
	cacheLookups    *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
	historyFetches  *prometheus.CounterVec
	enrichments     *prometheus.CounterVec
	opportunities   prometheus.Gauge
	totalTVL        prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		adapterRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_adapter_requests_total",
				Help: "Adapter list calls by protocol and outcome",
			},
			[]string{"protocol", "status"},
		),
		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yield_adapter_request_duration_seconds",
				Help:    "Adapter list call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"protocol"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yield_adapter_breaker_state",
				Help: "Per-adapter circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"protocol"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_cache_lookups_total",
				Help: "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),
		cacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_cache_evictions_total",
				Help: "Expired entries removed by the sweep",
			},
			[]string{"cache"},
		),
		historyFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_history_fetches_total",
				Help: "Historical chart fetches by outcome",
			},
			[]string{"status"},
		),
		enrichments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_enrichments_total",
				Help: "Enriched opportunities by scoring path",
			},
			[]string{"path"},
		),
		opportunities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yield_opportunities",
				Help: "Opportunities in the current aggregated list",
			},
		),
		totalTVL: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yield_total_tvl_usd",
				Help: "Summed TVL of the current aggregated list",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.adapterRequests,
			m.adapterDuration,
			m.breakerState,
			m.cacheLookups,
			m.cacheEvictions,
			m.historyFetches,
			m.enrichments,
			m.opportunities,
			m.totalTVL,
		)
	}
	return m
}

// ObserveAdapter records one adapter list call
func (m *Metrics) ObserveAdapter(protocol, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.adapterRequests.WithLabelValues(protocol, status).Inc()
	m.adapterDuration.WithLabelValues(protocol).Observe(d.Seconds())
}

// SetBreakerState exports a breaker state as its numeric value
func (m *Metrics) SetBreakerState(protocol string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(protocol).Set(float64(state))
}

// CacheLookup counts a hit or miss on the named cache
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// CacheEvicted counts entries removed from the named cache
func (m *Metrics) CacheEvicted(cache string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.WithLabelValues(cache).Add(float64(n))
}

// HistoryFetch counts a chart fetch outcome
func (m *Metrics) HistoryFetch(status string) {
	if m == nil {
		return
	}
	m.historyFetches.WithLabelValues(status).Inc()
}

// Enrichment counts an enriched opportunity by path
func (m *Metrics) Enrichment(path string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(path).Inc()
}

// SetOpportunities publishes the size and TVL of the aggregated list
func (m *Metrics) SetOpportunities(count int, tvl float64) {
	if m == nil {
		return
	}
	m.opportunities.Set(float64(count))
	m.totalTVL.Set(tvl)
}
