package fetch

import (
	"math"
	"strings"

	"github.com/yourorg/yield-risk-core/internal/model"
)

var stablecoins = map[string]bool{
	"USDA": true, "USDC": true, "USDT": true, "DAI": true, "SUSDT": true,
	"AEUSDC": true, "XUSD": true, "USDH": true, "BUSD": true, "FRAX": true,
}

// IsStablecoin reports whether symbol is a known USD stablecoin
func IsStablecoin(symbol string) bool {
	return stablecoins[strings.ToUpper(Slugify(symbol))]
}

// IsStablePair reports whether every token in the pool is a stablecoin
func IsStablePair(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if !IsStablecoin(t) {
			return false
		}
	}
	return true
}

// ClassifyRisk assigns the cheap tier shown before full enrichment
func ClassifyRisk(apr, tvlUSD float64, stable bool) model.RiskTier {
	points := 0

	switch {
	case apr > 100:
		points += 3
	case apr > 30:
		points += 2
	case apr > 10:
		points++
	}

	switch {
	case tvlUSD < 100_000:
		points += 2
	case tvlUSD < 1_000_000:
		points++
	}

	if stable {
		points--
	}

	switch {
	case points <= 1:
		return model.RiskLow
	case points <= 3:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// CompoundAPY converts a percent APR to APY with daily compounding
func CompoundAPY(apr float64) float64 {
	if apr <= 0 {
		return apr
	}
	return (math.Pow(1+apr/100/365, 365) - 1) * 100
}

// SimpleAPR is the inverse of CompoundAPY
func SimpleAPR(apy float64) float64 {
	if apy <= 0 {
		return apy
	}
	return (math.Pow(1+apy/100, 1.0/365) - 1) * 365 * 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
