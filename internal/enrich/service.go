// Package enrich attaches historical data and a computed risk score to opportunities.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/yield-risk-core/internal/metrics"
	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/risk"
)

// Enrichment paths, recorded on every EnrichedOpportunity
const (
	PathHistorical = "historical"
	PathNoHistory  = "no_history"
	PathSynthetic  = "synthetic"
	PathFallback   = "fallback"
)

// syntheticQuality scales confidence for scores computed on generated history
const syntheticQuality = 0.4

// HistoryProvider returns chart-backed windows for an opportunity. It returns nil
// without error when no history exists.
type HistoryProvider interface {
	EnrichOpportunityWithHistoricalData(ctx context.Context, o model.Opportunity) (*model.HistoricalData, error)
}

// Service enriches opportunities one at a time or in paced batches
type Service struct {
	history    HistoryProvider
	seed       int64
	batchSize  int
	batchDelay time.Duration
	metrics    *metrics.Metrics
	log        *logrus.Entry
}

// Option configures a Service
type Option func(*Service)

// WithBatchSize sets how many opportunities are enriched concurrently
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay sets the minimum spacing between batch starts
func WithBatchDelay(d time.Duration) Option {
	return func(s *Service) { s.batchDelay = d }
}

// WithSeed sets the base seed for synthetic history
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithMetrics records enrichment outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces the default component logger
func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates an enrichment service. A nil history provider sends every
// opportunity down the synthetic path.
func NewService(history HistoryProvider, opts ...Option) *Service {
	s := &Service{
		history:    history,
		seed:       42,
		batchSize:  3,
		batchDelay: 500 * time.Millisecond,
		log:        logrus.WithField("component", "enrich"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enrich routes o to the chart-backed path when it has a pool ID and to the synthetic path otherwise
func (s *Service) Enrich(ctx context.Context, o model.Opportunity) (model.EnrichedOpportunity, error) {
	if o.PoolID != "" && s.history != nil {
		return s.EnrichWithDefiLlamaData(ctx, o)
	}
	return s.EnrichWithArkadikoData(ctx, o)
}

// EnrichWithDefiLlamaData scores o on its real chart history when available
func (s *Service) EnrichWithDefiLlamaData(ctx context.Context, o model.Opportunity) (model.EnrichedOpportunity, error) {
	if s.history == nil {
		return model.EnrichedOpportunity{}, fmt.Errorf("%w: no history provider", model.ErrEnrichmentFailure)
	}

	data, err := s.history.EnrichOpportunityWithHistoricalData(ctx, o)
	if err != nil {
		return model.EnrichedOpportunity{}, fmt.Errorf("%w: %s: %v", model.ErrEnrichmentFailure, o.ID, err)
	}

	path := PathHistorical
	if data.Empty() {
		data = nil
		path = PathNoHistory
	}

	score, factors := risk.Assess(risk.FromOpportunity(o, data))
	return model.EnrichedOpportunity{
		Opportunity:    o,
		RiskScore:      score,
		HistoricalData: data,
		RiskFactors:    factors,
		Enrichment:     path,
	}, nil
}

// EnrichWithArkadikoData scores o on a synthesized history and discounts the confidence
func (s *Service) EnrichWithArkadikoData(ctx context.Context, o model.Opportunity) (model.EnrichedOpportunity, error) {
	if err := ctx.Err(); err != nil {
		return model.EnrichedOpportunity{}, fmt.Errorf("%w: %v", model.ErrEnrichmentFailure, err)
	}

	data := GenerateSyntheticHistory(o, s.seed)
	score, factors := risk.Assess(risk.FromOpportunity(o, data))
	score.ConfidenceScore *= syntheticQuality
	score.Confidence = risk.ConfidenceLevel(score.ConfidenceScore)

	return model.EnrichedOpportunity{
		Opportunity:    o,
		RiskScore:      score,
		HistoricalData: data,
		RiskFactors:    factors,
		Enrichment:     PathSynthetic,
	}, nil
}

// EnrichOpportunities enriches list in batches, preserving order. Items that fail, panic or
// are cut off by ctx get a fallback score; none are dropped.
func (s *Service) EnrichOpportunities(ctx context.Context, list []model.Opportunity) []model.EnrichedOpportunity {
	out := make([]model.EnrichedOpportunity, len(list))
	if len(list) == 0 {
		return out
	}

	runID := uuid.New().String()
	log := s.log.WithField("run_id", runID)
	start := time.Now()

	limit := rate.Inf
	if s.batchDelay > 0 {
		limit = rate.Every(s.batchDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	fallbacks := 0
	var mu sync.Mutex

	for begin := 0; begin < len(list); begin += s.batchSize {
		end := begin + s.batchSize
		if end > len(list) {
			end = len(list)
		}

		if err := limiter.Wait(ctx); err != nil {
			log.WithError(err).Warn("Enrichment cut short, scoring remaining opportunities heuristically")
			for i := begin; i < len(list); i++ {
				out[i] = FallbackScore(list[i])
				s.metrics.Enrichment(PathFallback)
			}
			fallbacks += len(list) - begin
			break
		}

		var wg sync.WaitGroup
		for i := begin; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				enriched, err := s.safeEnrich(ctx, list[i])
				if err != nil {
					log.WithFields(logrus.Fields{
						"id":       list[i].ID,
						"protocol": list[i].Protocol,
					}).WithError(err).Warn("Enrichment failed, using fallback score")
					enriched = FallbackScore(list[i])
					mu.Lock()
					fallbacks++
					mu.Unlock()
				}
				s.metrics.Enrichment(enriched.Enrichment)
				out[i] = enriched
			}(i)
		}
		wg.Wait()
	}

	log.WithFields(logrus.Fields{
		"count":     len(list),
		"fallbacks": fallbacks,
		"duration":  time.Since(start),
	}).Info("Enrichment run complete")
	return out
}

func (s *Service) safeEnrich(ctx context.Context, o model.Opportunity) (enriched model.EnrichedOpportunity, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", model.ErrEnrichmentFailure, r)
		}
	}()
	return s.Enrich(ctx, o)
}
