package main

import (
	"github.com/sirupsen/logrus"

	"github.com/yourorg/yield-risk-core/internal/config"
	"github.com/yourorg/yield-risk-core/internal/fetch"
	"github.com/yourorg/yield-risk-core/internal/security"
)

// setupLogging configures the logging for the application
func setupLogging(cfg config.Config) {
	// Set log formatter based on environment
	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log level based on environment
	switch cfg.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// retryPolicy maps the retry settings from the environment
func retryPolicy(cfg config.Config) fetch.RetryPolicy {
	return fetch.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		WaitMin:     cfg.RetryWaitMin,
		WaitMax:     cfg.RetryWaitMax,
		Exponential: cfg.RetryExponential,
	}
}

// createAdapters builds every protocol adapter. The DefiLlama adapter is returned
// separately because it also serves chart history.
func createAdapters(cfg config.Config) (*fetch.DefiLlamaAdapter, []fetch.Adapter) {
	base := fetch.Options{
		MinTVLUSD: cfg.MinTVLUSD,
		Timeout:   cfg.AdapterTimeout,
		Retry:     retryPolicy(cfg),
	}

	llamaOpts := base
	llamaOpts.BaseURL = cfg.DefiLlamaURL
	llama := fetch.NewDefiLlamaAdapter(llamaOpts, cfg.DefiLlamaChartURL, cfg.DefiLlamaChain)

	arkadikoOpts := base
	arkadikoOpts.BaseURL = cfg.ArkadikoURL

	alexOpts := base
	alexOpts.BaseURL = cfg.AlexURL

	return llama, []fetch.Adapter{
		llama,
		fetch.NewArkadikoAdapter(arkadikoOpts),
		fetch.NewAlexAdapter(alexOpts),
	}
}

// createSigner returns the payload signer, or nil when signing is disabled
func createSigner(cfg config.Config) *security.DataIntegrityService {
	if !cfg.EnableSigning {
		return nil
	}

	opts := security.VerificationOptions{SignatureEnabled: true}
	var (
		signer *security.DataIntegrityService
		err    error
	)
	if cfg.SigningKey != "" {
		signer, err = security.NewDataIntegrityServiceFromKey(cfg.SigningKey, opts)
	} else {
		logrus.Warn("SIGNING_KEY not set, signing with an ephemeral key")
		signer, err = security.NewDataIntegrityService(opts)
	}
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize payload signer")
	}
	return signer
}
