package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAdapter("alex", "success", 120*time.Millisecond)
	m.ObserveAdapter("alex", "success", 80*time.Millisecond)
	m.ObserveAdapter("arkadiko", "error", time.Second)
	m.CacheLookup("all_opportunities", true)
	m.CacheLookup("all_opportunities", false)
	m.CacheEvicted("adapter_stats", 2)
	m.CacheEvicted("adapter_stats", 0)
	m.Enrichment("synthetic")
	m.SetOpportunities(12, 3_500_000)
	m.SetBreakerState("alex", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.adapterRequests.WithLabelValues("alex", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterRequests.WithLabelValues("arkadiko", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("all_opportunities", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("all_opportunities", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheEvictions.WithLabelValues("adapter_stats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrichments.WithLabelValues("synthetic")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.opportunities))
	assert.Equal(t, 3_500_000.0, testutil.ToFloat64(m.totalTVL))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("alex")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.adapterDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAdapter("alex", "success", time.Second)
		m.CacheLookup("x", true)
		m.CacheEvicted("x", 3)
		m.HistoryFetch("error")
		m.Enrichment("fallback")
		m.SetOpportunities(1, 1)
		m.SetBreakerState("alex", 0)
	})
}
