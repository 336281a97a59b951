// Package risk computes the weighted five-component risk score for a yield opportunity.
// Everything here is pure: no I/O and no shared state.
package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yourorg/yield-risk-core/internal/model"
)

// Component names
const (
	Liquidity     = "liquidity"
	Stability     = "stability"
	Yield         = "yield"
	Concentration = "concentration"
	Momentum      = "momentum"
)

// Component weights in percent. They sum to exactly 100.
var Weights = map[string]int{
	Liquidity:     30,
	Stability:     25,
	Yield:         20,
	Concentration: 15,
	Momentum:      10,
}

const maxDrivers = 2

// Input is the data a score is computed from. Volume24h <= 0 means unknown.
type Input struct {
	TVLUSD    float64
	APR       float64
	APY       float64
	Volume24h float64
	Protocol  string
	Tokens    []string
	History   *model.HistoricalData
}

// FromOpportunity builds an Input from an opportunity and optional history
func FromOpportunity(o model.Opportunity, h *model.HistoricalData) Input {
	return Input{
		TVLUSD:    o.TVLUSD,
		APR:       o.APR,
		APY:       o.APY,
		Volume24h: o.Volume24h,
		Protocol:  o.Protocol,
		Tokens:    o.Tokens,
		History:   h,
	}
}

func (in Input) hasVolume() bool {
	return in.Volume24h > 0 && finite(in.Volume24h)
}

type component struct {
	name       string
	score      float64
	confidence float64
	factors    []model.RiskFactor
}

// CalculateRiskScore scores in. The result is always bounded and never fails.
func CalculateRiskScore(in Input) model.RiskScore {
	score, _ := Assess(in)
	return score
}

// Factors returns every explanatory factor for in, in component order
func Factors(in Input) []model.RiskFactor {
	_, factors := Assess(in)
	return factors
}

// Assess returns the score together with every factor behind it
func Assess(in Input) (model.RiskScore, []model.RiskFactor) {
	in = sanitize(in)

	components := []component{
		liquidityComponent(in),
		stabilityComponent(in),
		yieldComponent(in),
		concentrationComponent(in),
		momentumComponent(in),
	}

	values := model.RiskComponents{}
	confidences := make([]float64, 0, len(components))
	factors := make([]model.RiskFactor, 0)
	for _, c := range components {
		score := clamp(c.score, 0, 100)
		switch c.name {
		case Liquidity:
			values.Liquidity = score
		case Stability:
			values.Stability = score
		case Yield:
			values.Yield = score
		case Concentration:
			values.Concentration = score
		case Momentum:
			values.Momentum = score
		}
		confidences = append(confidences, clamp(c.confidence, 0, 1))
		factors = append(factors, c.factors...)
	}

	total := WeightedTotal(values)
	confidence := stat.Mean(confidences, nil)

	return model.RiskScore{
		Total:           total,
		Label:           Label(total),
		Components:      values,
		Drivers:         SelectDrivers(factors),
		Confidence:      ConfidenceLevel(confidence),
		ConfidenceScore: confidence,
	}, factors
}

// WeightedTotal rounds the weighted sum of the components and clamps it to [0,100]
func WeightedTotal(c model.RiskComponents) int {
	sum := c.Liquidity*float64(Weights[Liquidity]) +
		c.Stability*float64(Weights[Stability]) +
		c.Yield*float64(Weights[Yield]) +
		c.Concentration*float64(Weights[Concentration]) +
		c.Momentum*float64(Weights[Momentum])
	total := int(math.Round(sum / 100))
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

// Label maps a total onto the risk vocabulary
func Label(total int) model.RiskTier {
	switch {
	case total <= 30:
		return model.RiskLow
	case total <= 60:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// ConfidenceLevel buckets a [0,1] confidence
func ConfidenceLevel(score float64) model.Confidence {
	switch {
	case score >= 0.8:
		return model.ConfidenceHigh
	case score >= 0.6:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// SelectDrivers keeps up to two negative, non-low factors ranked by severity then contribution
func SelectDrivers(factors []model.RiskFactor) []model.RiskFactor {
	candidates := make([]model.RiskFactor, 0, len(factors))
	for _, f := range factors {
		if f.Impact == model.ImpactNegative && f.Severity != model.SeverityLow {
			candidates = append(candidates, f)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Severity.Rank() != candidates[j].Severity.Rank() {
			return candidates[i].Severity.Rank() > candidates[j].Severity.Rank()
		}
		return candidates[i].Contribution > candidates[j].Contribution
	})
	if len(candidates) > maxDrivers {
		candidates = candidates[:maxDrivers]
	}
	return candidates
}

// sanitize zeroes non-finite or negative inputs and derives APY when it is missing
func sanitize(in Input) Input {
	if !finite(in.TVLUSD) || in.TVLUSD < 0 {
		in.TVLUSD = 0
	}
	if !finite(in.APR) || in.APR < 0 {
		in.APR = 0
	}
	if !finite(in.APY) || in.APY <= 0 {
		in.APY = compoundAPY(in.APR)
	}
	if !finite(in.Volume24h) || in.Volume24h < 0 {
		in.Volume24h = 0
	}
	return in
}

func compoundAPY(apr float64) float64 {
	if apr <= 0 {
		return 0
	}
	return (math.Pow(1+apr/100/365, 365) - 1) * 100
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
