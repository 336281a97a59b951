// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Provider endpoints
	DefiLlamaURL      string
	DefiLlamaChartURL string
	DefiLlamaChain    string
	ArkadikoURL       string
	AlexURL           string

	// Pools below this TVL are dropped by adapters
	MinTVLUSD float64

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Timeouts
	AdapterTimeout time.Duration
	HistoryTimeout time.Duration

	// Cache TTLs and sweep cadence
	OpportunityTTL time.Duration
	EnrichedTTL    time.Duration
	StatsTTL       time.Duration
	HistoryTTL     time.Duration
	SweepInterval  time.Duration

	// Retry policy applied to every adapter unless overridden
	RetryMaxAttempts int
	RetryWaitMin     time.Duration
	RetryWaitMax     time.Duration
	RetryExponential bool

	// Enrichment batching
	EnrichBatchSize   int
	EnrichBatchDelay  time.Duration
	EnrichLoadTimeout time.Duration
	SyntheticSeed     int64

	// Per-adapter circuit breaker
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerResetDelay       time.Duration

	// HTTP surface
	RateLimitRPS   float64
	RateLimitBurst int
	EnableMetrics  bool
	EnableSigning  bool

	// Hex secp256k1 key for signed envelopes. Empty generates an ephemeral key.
	SigningKey string
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:                    GetEnvOrDefault("PORT", "8080"),
		LogLevel:                strings.ToLower(GetEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(GetEnvOrDefault("LOG_FORMAT", "text")),
		DefiLlamaURL:            GetEnvOrDefault("DEFILLAMA_URL", "https://yields.llama.fi"),
		DefiLlamaChartURL:       GetEnvOrDefault("DEFILLAMA_CHART_URL", "https://yields.llama.fi"),
		DefiLlamaChain:          GetEnvOrDefault("DEFILLAMA_CHAIN", "Stacks"),
		ArkadikoURL:             GetEnvOrDefault("ARKADIKO_URL", "https://api.arkadiko.finance"),
		AlexURL:                 GetEnvOrDefault("ALEX_URL", "https://api.alexlab.co"),
		MinTVLUSD:               GetEnvAsFloat("MIN_TVL_USD", 10000),
		OtelEndpoint:            GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		AdapterTimeout:          GetEnvAsDuration("ADAPTER_TIMEOUT", 10*time.Second),
		HistoryTimeout:          GetEnvAsDuration("HISTORY_TIMEOUT", 15*time.Second),
		OpportunityTTL:          GetEnvAsDuration("OPPORTUNITY_TTL", 5*time.Minute),
		EnrichedTTL:             GetEnvAsDuration("ENRICHED_TTL", 10*time.Minute),
		StatsTTL:                GetEnvAsDuration("STATS_TTL", 10*time.Minute),
		HistoryTTL:              GetEnvAsDuration("HISTORY_TTL", 30*time.Minute),
		SweepInterval:           GetEnvAsDuration("SWEEP_INTERVAL", 10*time.Minute),
		RetryMaxAttempts:        GetEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryWaitMin:            GetEnvAsDuration("RETRY_WAIT_MIN", 500*time.Millisecond),
		RetryWaitMax:            GetEnvAsDuration("RETRY_WAIT_MAX", 3*time.Second),
		RetryExponential:        GetEnvAsBool("RETRY_EXPONENTIAL", true),
		EnrichBatchSize:         GetEnvAsInt("ENRICH_BATCH_SIZE", 3),
		EnrichBatchDelay:        GetEnvAsDuration("ENRICH_BATCH_DELAY", 500*time.Millisecond),
		EnrichLoadTimeout:       GetEnvAsDuration("ENRICH_LOAD_TIMEOUT", 2*time.Minute),
		SyntheticSeed:           int64(GetEnvAsInt("SYNTHETIC_SEED", 42)),
		BreakerFailureThreshold: GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
		BreakerSuccessThreshold: GetEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 1),
		BreakerResetDelay:       GetEnvAsDuration("BREAKER_RESET_DELAY", 5*time.Minute),
		RateLimitRPS:            GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:          GetEnvAsInt("RATE_LIMIT_BURST", 20),
		EnableMetrics:           GetEnvAsBool("ENABLE_METRICS", true),
		EnableSigning:           GetEnvAsBool("ENABLE_SIGNING", false),
		SigningKey:              GetEnvOrDefault("SIGNING_KEY", ""),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
