// Package model defines the core data structures shared by adapters, the risk engine and the manager.
package model

import (
	"strings"
	"time"
)

// Source describes where an opportunity's numbers came from
type Source string

// Opportunity sources
const (
	SourceLive      Source = "live"
	SourceSynthetic Source = "synthetic"
)

// RiskTier is the cheap adapter-level risk classification shown before enrichment completes
type RiskTier string

// Risk tiers and score labels share the same vocabulary
const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Opportunity is one normalized, protocol-agnostic yield-pool record.
// This is the core data structure that flows through the entire application.
type Opportunity struct {
	// ID is derived from protocol and pool tokens: {protocolSlug}-{token-a}-{token-b}
	ID string `json:"id"`

	// Chain the pool lives on
	Chain string `json:"chain"`

	// Protocol display name (e.g. "ALEX", "Arkadiko")
	Protocol string `json:"protocol"`

	// Pool display name (e.g. "STX/USDA")
	Pool string `json:"pool"`

	// Tokens in the pool, in provider order
	Tokens []string `json:"tokens"`

	// APR and APY in percent, e.g. 12.5 for 12.5%
	APR float64 `json:"apr"`
	APY float64 `json:"apy"`

	// RewardToken lists the token(s) yield is paid in
	RewardToken []string `json:"rewardToken"`

	// TVLUSD is the total value locked in USD
	TVLUSD float64 `json:"tvlUsd"`

	// Risk is the adapter heuristic tier
	Risk RiskTier `json:"risk"`

	// Source marks live provider data vs. a synthetic fallback dataset
	Source Source `json:"source"`

	// LastUpdated is when the adapter normalized this record
	LastUpdated time.Time `json:"lastUpdated"`

	// PoolID is the provider identifier usable for chart lookups, when known
	PoolID string `json:"poolId,omitempty"`

	Volume24h  float64 `json:"volume24h,omitempty"`
	Exposure   string  `json:"exposure,omitempty"`
	ILRisk     string  `json:"ilRisk,omitempty"`
	Stablecoin bool    `json:"stablecoin,omitempty"`
}

// DedupKey returns the (protocol, pool) identity used to collapse duplicates across adapters
func (o Opportunity) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(o.Protocol)) + "|" + strings.ToLower(strings.TrimSpace(o.Pool))
}

// ProtocolInfo describes an adapter's upstream
type ProtocolInfo struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Chain       string `json:"chain"`
	BaseURL     string `json:"baseUrl"`
	Description string `json:"description,omitempty"`
	HasHistory  bool   `json:"hasHistory"`
}

// ChartPoint is a single raw historical observation for a pool
type ChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	TVLUSD    float64   `json:"tvlUsd"`
	APY       float64   `json:"apy"`
	APYBase   float64   `json:"apyBase,omitempty"`
	APYReward float64   `json:"apyReward,omitempty"`
	Volume1d  float64   `json:"volumeUsd1d,omitempty"`
}

// HistoricalData holds fixed-horizon arrays, oldest value first
type HistoricalData struct {
	TVL7  []float64 `json:"tvl_7"`
	TVL30 []float64 `json:"tvl_30"`
	TVL90 []float64 `json:"tvl_90"`
	APR30 []float64 `json:"apr_30"`
	APR90 []float64 `json:"apr_90"`
	Vol30 []float64 `json:"vol_30,omitempty"`

	// Synthetic is set when the series were generated rather than fetched
	Synthetic bool `json:"synthetic,omitempty"`
}

// Empty reports whether no window carries data
func (h *HistoricalData) Empty() bool {
	return h == nil || (len(h.TVL7) == 0 && len(h.TVL30) == 0 && len(h.TVL90) == 0 &&
		len(h.APR30) == 0 && len(h.APR90) == 0)
}

// EnrichedOpportunity is an Opportunity with a computed risk score attached
type EnrichedOpportunity struct {
	Opportunity

	RiskScore      RiskScore       `json:"riskScore"`
	HistoricalData *HistoricalData `json:"historicalData,omitempty"`
	RiskFactors    []RiskFactor    `json:"riskFactors"`

	// Enrichment records which path produced the score (historical, synthetic, fallback)
	Enrichment string `json:"enrichment"`
}

// AdapterStats aggregates the current opportunity list
type AdapterStats struct {
	TotalOpportunities int            `json:"totalOpportunities"`
	BySource           map[string]int `json:"bySource"`
	ByProtocol         map[string]int `json:"byProtocol"`
	TotalTVL           float64        `json:"totalTvl"`
	AvgAPY             float64        `json:"avgApy"`
	LastUpdate         time.Time      `json:"lastUpdate"`
}

// CacheStats summarizes the manager's caches
type CacheStats struct {
	EntriesCount int       `json:"entriesCount"`
	TotalSize    int       `json:"totalSize"`
	OldestEntry  time.Time `json:"oldestEntry,omitempty"`
	NewestEntry  time.Time `json:"newestEntry,omitempty"`
}
