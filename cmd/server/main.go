// Package main runs the yield risk service: protocol adapters, risk enrichment and
// the HTTP read surface behind one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-risk-core/internal/api"
	"github.com/yourorg/yield-risk-core/internal/config"
	"github.com/yourorg/yield-risk-core/internal/enrich"
	"github.com/yourorg/yield-risk-core/internal/history"
	"github.com/yourorg/yield-risk-core/internal/manager"
	"github.com/yourorg/yield-risk-core/internal/metrics"
	"github.com/yourorg/yield-risk-core/internal/otel"
	"github.com/yourorg/yield-risk-core/internal/validation"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file loaded")
	}

	cfg := config.Load()
	setupLogging(cfg)

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	var (
		m              *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.EnableMetrics {
		m = metrics.New(prometheus.DefaultRegisterer)
		metricsHandler = promhttp.Handler()
	}

	llama, adapters := createAdapters(cfg)

	historySvc := history.NewService(llama, cfg.HistoryTTL,
		history.WithTimeout(cfg.HistoryTimeout),
		history.WithMetrics(m),
	)

	enricher := enrich.NewService(historySvc,
		enrich.WithBatchSize(cfg.EnrichBatchSize),
		enrich.WithBatchDelay(cfg.EnrichBatchDelay),
		enrich.WithSeed(cfg.SyntheticSeed),
		enrich.WithMetrics(m),
	)

	validationOpts := validation.DefaultValidationOptions()
	validationOpts.MinTVL = cfg.MinTVLUSD

	mgr, err := manager.New(adapters, enricher,
		manager.WithMetrics(m),
		manager.WithTTLs(cfg.OpportunityTTL, cfg.EnrichedTTL, cfg.StatsTTL),
		manager.WithAdapterTimeout(cfg.AdapterTimeout),
		manager.WithLoadTimeout(cfg.EnrichLoadTimeout),
		manager.WithSweepInterval(cfg.SweepInterval),
		manager.WithBreaker(cfg.BreakerFailureThreshold, cfg.BreakerResetDelay),
		manager.WithBreakerSuccessThreshold(cfg.BreakerSuccessThreshold),
		manager.WithValidation(validationOpts),
		manager.WithHistoryCache(historySvc),
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create adapter manager")
	}
	if err := mgr.Start(); err != nil {
		logrus.WithError(err).Fatal("Failed to start cache sweep")
	}
	defer mgr.Stop()

	signer := createSigner(cfg)

	server := api.New(mgr, api.Config{
		Port:           cfg.Port,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MetricsHandler: metricsHandler,
		Signer:         signer,
	})

	// Warm the opportunity cache so the first request is served from memory
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.AdapterTimeout)
		defer cancel()
		list := mgr.GetAllOpportunities(ctx)
		logrus.WithField("count", len(list)).Info("Initial opportunity load finished")
	}()

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
	logrus.Info("Server stopped")
}
