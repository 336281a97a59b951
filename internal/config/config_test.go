package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 10*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 15*time.Second, cfg.HistoryTimeout)
	assert.Equal(t, 5*time.Minute, cfg.OpportunityTTL)
	assert.Equal(t, 10*time.Minute, cfg.EnrichedTTL)
	assert.Equal(t, 10*time.Minute, cfg.StatsTTL)
	assert.Equal(t, 30*time.Minute, cfg.HistoryTTL)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 3, cfg.EnrichBatchSize)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.EnrichLoadTimeout)
	assert.Equal(t, 1, cfg.BreakerSuccessThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPPORTUNITY_TTL", "90s")
	t.Setenv("MIN_TVL_USD", "2500")
	t.Setenv("RETRY_EXPONENTIAL", "false")
	t.Setenv("ENRICH_BATCH_SIZE", "not-a-number")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.OpportunityTTL)
	assert.Equal(t, 2500.0, cfg.MinTVLUSD)
	assert.False(t, cfg.RetryExponential)
	assert.Equal(t, 3, cfg.EnrichBatchSize, "invalid values fall back to defaults")
}
