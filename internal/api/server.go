// Package api exposes the manager's read operations over HTTP
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/security"
)

// Service is the subset of the manager served over HTTP
type Service interface {
	GetAllOpportunities(ctx context.Context) []model.Opportunity
	GetEnrichedOpportunities(ctx context.Context) []model.EnrichedOpportunity
	GetFullyEnhancedOpportunities(ctx context.Context) []model.EnrichedOpportunity
	GetOpportunityByID(ctx context.Context, id string) (*model.Opportunity, error)
	GetAdapterStats(ctx context.Context) model.AdapterStats
	GetCacheStats() model.CacheStats
	HealthCheck(ctx context.Context) map[string]bool
	BreakerStates() map[string]string
	RefreshAllData(ctx context.Context) map[string][]model.Opportunity
}

// Config holds server configuration
type Config struct {
	Port string

	// Requests per second across all clients. Zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// MetricsHandler is mounted on /metrics when set
	MetricsHandler http.Handler

	// Signer produces envelopes for ?signed=true. Nil or disabled rejects such requests.
	Signer *security.DataIntegrityService
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	svc     Service
	limiter *rate.Limiter
	signer  *security.DataIntegrityService
	started time.Time
	log     *logrus.Entry
}

// New creates a new HTTP server
func New(svc Service, cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		svc:     svc,
		signer:  cfg.Signer,
		started: time.Now(),
		log:     logrus.WithField("component", "api"),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.MetricsHandler)

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}

func (s *Server) setupRoutes(metricsHandler http.Handler) {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Get("/cache", s.handleCacheStats)
	s.router.Post("/refresh", s.handleRefresh)

	s.router.Route("/opportunities", func(r chi.Router) {
		r.Get("/", s.handleOpportunities)
		r.Get("/enriched", s.handleEnriched)
		r.Get("/{id}", s.handleOpportunity)
	})

	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler)
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
