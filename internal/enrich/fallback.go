package enrich

import (
	"fmt"
	"strings"

	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/risk"
)

// fallbackConfidence is reported for heuristic scores so they never look fully computed
const fallbackConfidence = 0.25

var knownProtocols = map[string]bool{
	"alex":        true,
	"arkadiko":    true,
	"velar":       true,
	"bitflow":     true,
	"stackingdao": true,
	"zest":        true,
}

// FallbackScore scores an opportunity from its current fields alone. It is used when
// enrichment fails and never touches historical data.
func FallbackScore(o model.Opportunity) model.EnrichedOpportunity {
	tvl := tvlRisk(o.TVLUSD)
	apr := aprRisk(o.APR)

	protocol := 60.0
	if knownProtocols[strings.ToLower(o.Protocol)] {
		protocol = 30
	}

	stable := 50.0
	if o.Stablecoin {
		stable = 20
	}

	il := 40.0
	switch strings.ToLower(o.ILRisk) {
	case "yes":
		il = 60
	case "no":
		il = 20
	}

	components := model.RiskComponents{
		Liquidity:     tvl,
		Stability:     stable,
		Yield:         apr,
		Concentration: protocol,
		Momentum:      il,
	}
	total := risk.WeightedTotal(components)

	factors := []model.RiskFactor{
		heuristicFactor("TVL Size", risk.Liquidity, o.TVLUSD, tvl,
			fmt.Sprintf("$%.0f locked", o.TVLUSD)),
		heuristicFactor("APR Level", risk.Yield, o.APR, apr,
			fmt.Sprintf("%.2f%% APR", o.APR)),
		heuristicFactor("Protocol Familiarity", risk.Concentration, protocol, protocol,
			fmt.Sprintf("%s protocol track record", o.Protocol)),
		heuristicFactor("Stablecoin Exposure", risk.Stability, stable, stable,
			stableDescription(o.Stablecoin)),
		heuristicFactor("Impermanent Loss", risk.Momentum, il, il,
			fmt.Sprintf("Impermanent loss risk %q", o.ILRisk)),
	}

	return model.EnrichedOpportunity{
		Opportunity: o,
		RiskScore: model.RiskScore{
			Total:           total,
			Label:           risk.Label(total),
			Components:      components,
			Drivers:         risk.SelectDrivers(factors),
			Confidence:      model.ConfidenceLow,
			ConfidenceScore: fallbackConfidence,
		},
		RiskFactors: factors,
		Enrichment:  PathFallback,
	}
}

func tvlRisk(tvl float64) float64 {
	switch {
	case tvl < 100_000:
		return 80
	case tvl < 1_000_000:
		return 60
	case tvl < 10_000_000:
		return 40
	default:
		return 20
	}
}

func aprRisk(apr float64) float64 {
	switch {
	case apr > 100:
		return 90
	case apr > 50:
		return 70
	case apr > 20:
		return 50
	case apr > 10:
		return 35
	default:
		return 20
	}
}

// heuristicFactor reports one component sub-score at its full component weight
func heuristicFactor(name, component string, value, sub float64, description string) model.RiskFactor {
	return model.RiskFactor{
		Name:         name,
		Component:    component,
		Value:        value,
		Impact:       risk.ImpactOf(sub),
		Description:  description,
		Severity:     risk.SeverityOf(sub),
		Contribution: sub * float64(risk.Weights[component]) / 100,
	}
}

func stableDescription(stable bool) string {
	if stable {
		return "Stablecoin pool"
	}
	return "Volatile asset exposure"
}
