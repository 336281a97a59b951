// Package manager is the single entry point the read surface talks to. It fans out to
// every protocol adapter, merges and caches the results and hands them to enrichment.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-risk-core/internal/aggregate"
	"github.com/yourorg/yield-risk-core/internal/cache"
	"github.com/yourorg/yield-risk-core/internal/circuitbreaker"
	"github.com/yourorg/yield-risk-core/internal/fetch"
	"github.com/yourorg/yield-risk-core/internal/metrics"
	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/validation"
)

// Cache keys
const (
	keyAllOpportunities      = "all_opportunities"
	keyEnrichedOpportunities = "enriched_opportunities"
	keyFullyEnhanced         = "fully_enhanced_opportunities"
	keyAdapterStats          = "adapter_stats"
)

var errNoData = errors.New("no opportunities available")

// Enricher scores a list of opportunities. Implementations never drop records.
type Enricher interface {
	EnrichOpportunities(ctx context.Context, list []model.Opportunity) []model.EnrichedOpportunity
}

// Enhancer adds data beyond the risk score, e.g. on-chain reads. Errors leave the enriched list as is.
type Enhancer interface {
	Enhance(ctx context.Context, list []model.EnrichedOpportunity) ([]model.EnrichedOpportunity, error)
}

// HistoryCache is the historical series cache maintained alongside the manager caches
type HistoryCache interface {
	Invalidate()
	Sweep() int
}

// Manager aggregates every registered adapter behind a cached facade
type Manager struct {
	adapters []fetch.Adapter
	enricher Enricher
	enhancer Enhancer
	history  HistoryCache

	breakers map[string]*circuitbreaker.CircuitBreaker

	opportunities *cache.Cache[[]model.Opportunity]
	enriched      *cache.Cache[[]model.EnrichedOpportunity]
	stats         *cache.Cache[model.AdapterStats]

	adapterTimeout   time.Duration
	loadTimeout      time.Duration
	sweepInterval    time.Duration
	breakerThreshold int
	breakerSuccesses int
	breakerReset     time.Duration
	validationOpts   validation.ValidationOptions
	opportunityTTL   time.Duration
	enrichedTTL      time.Duration
	statsTTL         time.Duration

	now     func() time.Time
	metrics *metrics.Metrics
	log     *logrus.Entry

	mu         sync.RWMutex
	lastCounts map[string]int
	routes     map[string]fetch.Adapter

	cron *cron.Cron
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the time source for caches and stats
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the component logger
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics attaches prometheus collectors
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTTLs overrides the opportunity, enriched and stats cache lifetimes
func WithTTLs(opportunities, enriched, stats time.Duration) Option {
	return func(m *Manager) {
		if opportunities > 0 {
			m.opportunityTTL = opportunities
		}
		if enriched > 0 {
			m.enrichedTTL = enriched
		}
		if stats > 0 {
			m.statsTTL = stats
		}
	}
}

// WithAdapterTimeout bounds each adapter call
func WithAdapterTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.adapterTimeout = d
		}
	}
}

// WithLoadTimeout bounds a single enrichment or stats load. Loads that overrun it are
// served to their callers but not cached.
func WithLoadTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.loadTimeout = d
		}
	}
}

// WithSweepInterval sets how often expired cache entries are deleted
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithBreaker configures the per-adapter circuit breakers
func WithBreaker(failureThreshold int, resetDelay time.Duration) Option {
	return func(m *Manager) {
		m.breakerThreshold = failureThreshold
		m.breakerReset = resetDelay
	}
}

// WithBreakerSuccessThreshold sets how many half-open trial calls must succeed before a breaker closes
func WithBreakerSuccessThreshold(n int) Option {
	return func(m *Manager) { m.breakerSuccesses = n }
}

// WithValidation sets the sanity filter applied before dedup
func WithValidation(opts validation.ValidationOptions) Option {
	return func(m *Manager) { m.validationOpts = opts }
}

// WithEnhancer installs the fully-enhanced hook
func WithEnhancer(e Enhancer) Option {
	return func(m *Manager) { m.enhancer = e }
}

// WithHistoryCache lets refresh and sweep reach the historical series cache
func WithHistoryCache(h HistoryCache) Option {
	return func(m *Manager) { m.history = h }
}

// New creates a manager over adapters. The enricher is required.
func New(adapters []fetch.Adapter, enricher Enricher, opts ...Option) (*Manager, error) {
	if len(adapters) == 0 {
		return nil, errors.New("manager: no adapters registered")
	}
	if enricher == nil {
		return nil, errors.New("manager: enricher is required")
	}

	m := &Manager{
		adapters:         adapters,
		enricher:         enricher,
		adapterTimeout:   10 * time.Second,
		loadTimeout:      2 * time.Minute,
		sweepInterval:    10 * time.Minute,
		breakerThreshold: 3,
		breakerSuccesses: 1,
		breakerReset:     5 * time.Minute,
		validationOpts:   validation.DefaultValidationOptions(),
		opportunityTTL:   5 * time.Minute,
		enrichedTTL:      10 * time.Minute,
		statsTTL:         10 * time.Minute,
		now:              time.Now,
		log:              logrus.WithField("component", "manager"),
		lastCounts:       make(map[string]int),
		routes:           make(map[string]fetch.Adapter),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.validationOpts.Now = m.now

	// adapters are called concurrently, each bounded by adapterTimeout
	m.opportunities = cache.New[[]model.Opportunity]("opportunities", m.opportunityTTL, m.now).
		WithLoadTimeout(2 * m.adapterTimeout)
	m.enriched = cache.New[[]model.EnrichedOpportunity]("enriched", m.enrichedTTL, m.now).
		WithLoadTimeout(m.loadTimeout)
	m.stats = cache.New[model.AdapterStats]("stats", m.statsTTL, m.now).
		WithLoadTimeout(m.loadTimeout)

	m.breakers = make(map[string]*circuitbreaker.CircuitBreaker, len(adapters))
	for _, a := range adapters {
		name := a.ProtocolInfo().Name
		m.breakers[name] = circuitbreaker.New(name, m.breakerThreshold, m.breakerReset).
			WithClock(m.now).
			WithSuccessThreshold(m.breakerSuccesses).
			WithStateChange(func(name string, _, to circuitbreaker.State) {
				m.metrics.SetBreakerState(name, int(to))
			}).
			WithTripCallback(m.onBreakerTrip)
		m.metrics.SetBreakerState(name, int(circuitbreaker.StateClosed))
	}
	return m, nil
}

// ProtocolInfos lists the registered adapters
func (m *Manager) ProtocolInfos() []model.ProtocolInfo {
	infos := make([]model.ProtocolInfo, 0, len(m.adapters))
	for _, a := range m.adapters {
		infos = append(infos, a.ProtocolInfo())
	}
	return infos
}

// GetAllOpportunities returns the deduplicated, sorted list across all adapters
func (m *Manager) GetAllOpportunities(ctx context.Context) (out []model.Opportunity) {
	defer m.recoverEmpty("GetAllOpportunities", func() { out = []model.Opportunity{} })

	list, hit, err := m.opportunities.GetOrLoad(ctx, keyAllOpportunities, m.loadAll)
	m.metrics.CacheLookup(m.opportunities.Name(), hit)
	if err != nil {
		m.log.WithError(err).Warn("No opportunities from any adapter")
		return []model.Opportunity{}
	}
	return list
}

func (m *Manager) loadAll(ctx context.Context) ([]model.Opportunity, error) {
	results, succeeded := m.collect(ctx)
	if succeeded == 0 {
		return nil, errNoData
	}
	return m.merge(results), nil
}

// merge concatenates per-adapter results in registration order, then filters,
// deduplicates and sorts
func (m *Manager) merge(results map[string][]model.Opportunity) []model.Opportunity {
	var merged []model.Opportunity
	for _, a := range m.adapters {
		merged = append(merged, results[a.ProtocolInfo().Name]...)
	}

	valid := validation.FilterInvalidWithOptions(merged, m.validationOpts)
	list := aggregate.Process(valid)

	stats := aggregate.ComputeStats(list, m.now())
	m.metrics.SetOpportunities(stats.TotalOpportunities, stats.TotalTVL)
	m.log.WithFields(logrus.Fields{
		"count":        len(list),
		"dropped":      len(merged) - len(list),
		"total_tvl":    stats.TotalTVL,
		"weighted_apy": aggregate.WeightedAPY(list),
	}).Info("Aggregated opportunities")
	return list
}

// GetEnrichedOpportunities returns the base list with risk scores attached
func (m *Manager) GetEnrichedOpportunities(ctx context.Context) (out []model.EnrichedOpportunity) {
	defer m.recoverEmpty("GetEnrichedOpportunities", func() { out = []model.EnrichedOpportunity{} })

	list, hit, err := m.enriched.GetOrLoad(ctx, keyEnrichedOpportunities, func(ctx context.Context) ([]model.EnrichedOpportunity, error) {
		base := m.GetAllOpportunities(ctx)
		if len(base) == 0 {
			return nil, errNoData
		}
		return m.enricher.EnrichOpportunities(ctx, base), nil
	})
	m.metrics.CacheLookup(m.enriched.Name(), hit)
	if err != nil {
		return []model.EnrichedOpportunity{}
	}
	return list
}

// GetFullyEnhancedOpportunities runs the enhancer over the enriched list when one is installed
func (m *Manager) GetFullyEnhancedOpportunities(ctx context.Context) (out []model.EnrichedOpportunity) {
	if m.enhancer == nil {
		return m.GetEnrichedOpportunities(ctx)
	}
	defer m.recoverEmpty("GetFullyEnhancedOpportunities", func() { out = []model.EnrichedOpportunity{} })

	list, hit, err := m.enriched.GetOrLoad(ctx, keyFullyEnhanced, func(ctx context.Context) ([]model.EnrichedOpportunity, error) {
		base := m.GetEnrichedOpportunities(ctx)
		if len(base) == 0 {
			return nil, errNoData
		}
		input := make([]model.EnrichedOpportunity, len(base))
		copy(input, base)
		enhanced, err := m.enhancer.Enhance(ctx, input)
		if err != nil {
			m.log.WithError(err).Warn("Enhancement failed, serving enriched list")
			return base, nil
		}
		return enhanced, nil
	})
	m.metrics.CacheLookup(m.enriched.Name(), hit)
	if err != nil {
		return []model.EnrichedOpportunity{}
	}
	return list
}

// GetOpportunityByID routes the lookup to the adapter named by the id's protocol segment.
// Only a malformed id is an error; an unknown protocol or failed lookup returns nil.
func (m *Manager) GetOpportunityByID(ctx context.Context, id string) (out *model.Opportunity, err error) {
	slug, _, _, err := fetch.ParseID(id)
	if err != nil {
		return nil, err
	}
	defer m.recoverEmpty("GetOpportunityByID", func() { out, err = nil, nil })

	adapter := m.route(slug)
	if adapter == nil {
		// DefiLlama serves several protocols; its routes are learned from list results
		m.GetAllOpportunities(ctx)
		adapter = m.route(slug)
	}
	if adapter == nil {
		m.log.WithField("id", id).Debug("No adapter for protocol")
		return nil, nil
	}

	name := adapter.ProtocolInfo().Name
	if err := m.breakers[name].Allow(); err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.adapterTimeout)
	defer cancel()

	o, err := adapter.Detail(ctx, id)
	if err != nil {
		m.log.WithFields(logrus.Fields{"id": id, "protocol": name}).WithError(err).Debug("Detail lookup failed")
		return nil, nil
	}
	return o, nil
}

func (m *Manager) route(slug string) fetch.Adapter {
	for _, a := range m.adapters {
		if a.ProtocolInfo().Slug == slug {
			return a
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes[slug]
}

// GetAdapterStats summarizes the current opportunity list
func (m *Manager) GetAdapterStats(ctx context.Context) (out model.AdapterStats) {
	defer m.recoverEmpty("GetAdapterStats", func() { out = aggregate.ComputeStats(nil, m.now()) })

	stats, hit, err := m.stats.GetOrLoad(ctx, keyAdapterStats, func(ctx context.Context) (model.AdapterStats, error) {
		return aggregate.ComputeStats(m.GetAllOpportunities(ctx), m.now()), nil
	})
	m.metrics.CacheLookup(m.stats.Name(), hit)
	if err != nil {
		return aggregate.ComputeStats(nil, m.now())
	}
	return stats
}

// GetCacheStats reports entry count, approximate JSON size and age range across the manager caches
func (m *Manager) GetCacheStats() model.CacheStats {
	var metas []cache.Meta
	metas = append(metas, m.opportunities.Snapshot()...)
	metas = append(metas, m.enriched.Snapshot()...)
	metas = append(metas, m.stats.Snapshot()...)

	stats := model.CacheStats{EntriesCount: len(metas)}
	for _, meta := range metas {
		if b, err := json.Marshal(meta.Data); err == nil {
			stats.TotalSize += len(b)
		}
		if stats.OldestEntry.IsZero() || meta.LastFetch.Before(stats.OldestEntry) {
			stats.OldestEntry = meta.LastFetch
		}
		if meta.LastFetch.After(stats.NewestEntry) {
			stats.NewestEntry = meta.LastFetch
		}
	}
	return stats
}

// RefreshAllData clears every cache, closes open breakers and refetches all adapters.
// Every adapter has an entry in the result, empty when it failed.
func (m *Manager) RefreshAllData(ctx context.Context) (out map[string][]model.Opportunity) {
	defer m.recoverEmpty("RefreshAllData", func() { out = map[string][]model.Opportunity{} })

	// the caches are cleared below, so the refetch must finish even if the caller leaves
	ctx = context.WithoutCancel(ctx)

	m.opportunities.Clear()
	m.enriched.Clear()
	m.stats.Clear()
	if m.history != nil {
		m.history.Invalidate()
	}
	// a manual refresh gives every adapter a fresh trial
	for _, b := range m.breakers {
		if b.GetState() != circuitbreaker.StateClosed {
			b.Reset()
		}
	}

	results, succeeded := m.collect(ctx)
	for _, a := range m.adapters {
		name := a.ProtocolInfo().Name
		if results[name] == nil {
			results[name] = []model.Opportunity{}
		}
	}
	if succeeded > 0 {
		m.opportunities.Set(keyAllOpportunities, m.merge(results))
	}

	m.log.WithField("adapters", succeeded).Info("Refreshed all data")
	return results
}

// HealthCheck probes every adapter with a fresh list call. An adapter is healthy
// when that call returned at least one opportunity.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	m.collect(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()
	health := make(map[string]bool, len(m.adapters))
	for _, a := range m.adapters {
		name := a.ProtocolInfo().Name
		health[name] = m.lastCounts[name] > 0
	}
	return health
}

// BreakerStates reports each adapter's circuit state
func (m *Manager) BreakerStates() map[string]string {
	states := make(map[string]string, len(m.breakers))
	for name, b := range m.breakers {
		states[name] = b.GetState().String()
	}
	return states
}

func (m *Manager) onBreakerTrip(name string, err error) {
	m.log.WithFields(logrus.Fields{
		"protocol":    name,
		"retry_after": m.breakerReset,
	}).WithError(err).Error("Adapter circuit opened, serving without it")
}

// recoverEmpty turns a panic in orchestration into an empty result and a warning
func (m *Manager) recoverEmpty(op string, empty func()) {
	if r := recover(); r != nil {
		m.log.WithFields(logrus.Fields{"op": op, "panic": r}).Warn("Recovered from orchestration failure")
		empty()
	}
}
