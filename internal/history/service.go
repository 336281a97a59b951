// Package history fetches raw pool charts and reshapes them into the fixed-horizon
// windows used by the risk engine.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/yield-risk-core/internal/cache"
	"github.com/yourorg/yield-risk-core/internal/metrics"
	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/otel"
)

const (
	// fetchDays is the longest window; shorter windows are cut from it
	fetchDays = 90

	defaultTimeout = 15 * time.Second
	defaultTTL     = 30 * time.Minute
)

// ChartSource returns the raw history for a provider pool
type ChartSource interface {
	FetchChart(ctx context.Context, poolID string) ([]model.ChartPoint, error)
}

// Service fetches, filters and caches pool time series
type Service struct {
	source  ChartSource
	series  *cache.Cache[[]model.ChartPoint]
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// Option configures a Service
type Option func(*Service)

// WithTimeout bounds a single chart fetch
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock injects the time source used for windows and cache expiry
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics records fetch outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces the default component logger
func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a history service over source with a cache of the given TTL
func NewService(source ChartSource, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &Service{
		source:  source,
		timeout: defaultTimeout,
		now:     time.Now,
		log:     logrus.WithField("component", "history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.series = cache.New[[]model.ChartPoint]("historical_series", ttl, s.now)
	return s
}

// GetTimeSeriesData returns the points of the last days for poolID, oldest first.
// Fetch or format failures yield an empty series and are not cached.
func (s *Service) GetTimeSeriesData(ctx context.Context, poolID string, days int) []model.ChartPoint {
	if poolID == "" || days <= 0 {
		return []model.ChartPoint{}
	}

	key := fmt.Sprintf("%s:%d", poolID, days)
	points, hit, err := s.series.GetOrLoad(ctx, key, func(ctx context.Context) ([]model.ChartPoint, error) {
		return s.load(ctx, poolID, days)
	})
	s.metrics.CacheLookup(s.series.Name(), hit)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"pool_id": poolID,
			"days":    days,
		}).WithError(err).Warn("Historical data unavailable")
		return []model.ChartPoint{}
	}
	return points
}

func (s *Service) load(ctx context.Context, poolID string, days int) ([]model.ChartPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := otel.StartSpan(ctx, "history.fetch_chart",
		attribute.String("pool_id", poolID),
		attribute.Int("days", days),
	)
	defer span.End()

	raw, err := s.source.FetchChart(ctx, poolID)
	if err != nil {
		otel.RecordError(ctx, err)
		s.metrics.HistoryFetch("error")
		return nil, err
	}
	s.metrics.HistoryFetch("success")

	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	points := make([]model.ChartPoint, 0, len(raw))
	for _, p := range raw {
		if p.Timestamp.After(cutoff) {
			points = append(points, p)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	if result := ValidateTimeSeriesData(points); !result.IsValid {
		s.log.WithFields(logrus.Fields{
			"pool_id": poolID,
			"issues":  result.Issues,
		}).Debug("Time series failed validation")
	}

	span.SetAttributes(attribute.Int("points", len(points)))
	return points, nil
}

// EnrichOpportunityWithHistoricalData builds the fixed windows for an opportunity that
// carries a chart pool ID. It returns nil without error when no history is available and
// an error only when ctx is done.
func (s *Service) EnrichOpportunityWithHistoricalData(ctx context.Context, o model.Opportunity) (*model.HistoricalData, error) {
	if o.PoolID == "" {
		return nil, nil
	}

	points := s.GetTimeSeriesData(ctx, o.PoolID, fetchDays)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	return BuildWindows(points, s.now()), nil
}

// Invalidate drops every cached series
func (s *Service) Invalidate() {
	s.series.Clear()
}

// Sweep removes expired series and returns how many were dropped
func (s *Service) Sweep() int {
	removed := s.series.Sweep()
	s.metrics.CacheEvicted(s.series.Name(), removed)
	return removed
}
