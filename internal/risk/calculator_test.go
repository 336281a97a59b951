package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/yield-risk-core/internal/model"
)

func stableHistory(tvl float64, n int) *model.HistoricalData {
	series := func(count int) []float64 {
		out := make([]float64, count)
		for i := range out {
			if i%2 == 0 {
				out[i] = tvl * 1.003
			} else {
				out[i] = tvl * 0.997
			}
		}
		return out
	}
	apr := make([]float64, n)
	for i := range apr {
		apr[i] = 3
	}
	return &model.HistoricalData{
		TVL7:  series(7),
		TVL30: series(n),
		TVL90: series(90),
		APR30: apr,
		APR90: apr,
	}
}

func TestWeightsSumToHundred(t *testing.T) {
	sum := 0
	for _, w := range Weights {
		sum += w
	}
	assert.Equal(t, 100, sum)
	assert.Len(t, Weights, 5)
}

func TestWeightedTotal(t *testing.T) {
	tests := []struct {
		name       string
		components model.RiskComponents
		expected   int
	}{
		{"uniform", model.RiskComponents{Liquidity: 50, Stability: 50, Yield: 50, Concentration: 50, Momentum: 50}, 50},
		{"liquidity only", model.RiskComponents{Liquidity: 100}, 30},
		{"momentum only", model.RiskComponents{Momentum: 100}, 10},
		{"rounds half up", model.RiskComponents{Stability: 2}, 1},
		{"all max", model.RiskComponents{Liquidity: 100, Stability: 100, Yield: 100, Concentration: 100, Momentum: 100}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WeightedTotal(tt.components))
		})
	}
}

func TestLabelAndConfidenceBuckets(t *testing.T) {
	assert.Equal(t, model.RiskLow, Label(0))
	assert.Equal(t, model.RiskLow, Label(30))
	assert.Equal(t, model.RiskMedium, Label(31))
	assert.Equal(t, model.RiskMedium, Label(60))
	assert.Equal(t, model.RiskHigh, Label(61))

	assert.Equal(t, model.ConfidenceHigh, ConfidenceLevel(0.8))
	assert.Equal(t, model.ConfidenceMedium, ConfidenceLevel(0.6))
	assert.Equal(t, model.ConfidenceLow, ConfidenceLevel(0.59))
}

func TestCalculateRiskScore_DeepStablePool(t *testing.T) {
	score := CalculateRiskScore(Input{
		TVLUSD:    50_000_000,
		APR:       3,
		Volume24h: 10_000_000,
		Protocol:  "ALEX",
		Tokens:    []string{"USDA", "USDC"},
		History:   stableHistory(50_000_000, 30),
	})

	assert.Equal(t, model.RiskLow, score.Label)
	assert.LessOrEqual(t, score.Total, 30)
	assert.Equal(t, model.ConfidenceHigh, score.Confidence)
	assert.Equal(t, 0.0, score.Components.Liquidity)
}

func TestCalculateRiskScore_ThinHighYieldPool(t *testing.T) {
	score := CalculateRiskScore(Input{
		TVLUSD: 20_000,
		APR:    180,
	})

	assert.Equal(t, model.RiskHigh, score.Label)
	assert.Equal(t, 65, score.Total)
	assert.Contains(t, []model.Confidence{model.ConfidenceLow, model.ConfidenceMedium}, score.Confidence)
	assert.InDelta(t, 0.476, score.ConfidenceScore, 1e-9)

	require.Len(t, score.Drivers, 2)
	assert.Equal(t, "Holder Concentration", score.Drivers[0].Name)
	assert.Equal(t, "APR Level", score.Drivers[1].Name)
	assert.Equal(t, Yield, score.Drivers[1].Component)
}

func TestCalculateRiskScore_Bounds(t *testing.T) {
	inputs := []Input{
		{},
		{TVLUSD: -5, APR: -10, APY: -1, Volume24h: -3},
		{TVLUSD: math.NaN(), APR: math.Inf(1), APY: math.NaN()},
		{TVLUSD: 1e15, APR: 1e6, APY: 1e9, Volume24h: 1e14},
		{TVLUSD: 1, APR: 0.0001, Volume24h: 1e9, Protocol: "velar"},
		{TVLUSD: 1e6, APR: 20, History: &model.HistoricalData{TVL30: []float64{1, 1e9, 0, 5}, TVL7: []float64{1e9, 1}, APR30: []float64{0, 0}}},
	}

	for i, in := range inputs {
		score := CalculateRiskScore(in)
		assert.GreaterOrEqual(t, score.Total, 0, "input %d", i)
		assert.LessOrEqual(t, score.Total, 100, "input %d", i)
		for _, c := range []float64{
			score.Components.Liquidity, score.Components.Stability, score.Components.Yield,
			score.Components.Concentration, score.Components.Momentum,
		} {
			assert.GreaterOrEqual(t, c, 0.0, "input %d", i)
			assert.LessOrEqual(t, c, 100.0, "input %d", i)
		}
		assert.GreaterOrEqual(t, score.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, score.ConfidenceScore, 1.0)
		assert.LessOrEqual(t, len(score.Drivers), 2)
		assert.Equal(t, WeightedTotal(score.Components), score.Total)
	}
}

func TestCalculateRiskScore_ConfidenceNeverRisesWithLessHistory(t *testing.T) {
	full := stableHistory(2_000_000, 30)
	previous := math.Inf(1)

	for n := 30; n >= 0; n-- {
		h := *full
		h.TVL30 = full.TVL30[:n]
		score := CalculateRiskScore(Input{TVLUSD: 2_000_000, APR: 12, History: &h})
		assert.LessOrEqual(t, score.ConfidenceScore, previous, "confidence rose when tvl_30 shrank to %d points", n)
		previous = score.ConfidenceScore
	}
}

func TestCalculateRiskScore_DriversAreNegativeAndRanked(t *testing.T) {
	score := CalculateRiskScore(Input{TVLUSD: 40_000, APR: 90, Volume24h: 400_000})
	for i, d := range score.Drivers {
		assert.Equal(t, model.ImpactNegative, d.Impact)
		assert.NotEqual(t, model.SeverityLow, d.Severity)
		if i > 0 {
			prev := score.Drivers[i-1]
			assert.True(t, prev.Severity.Rank() > d.Severity.Rank() ||
				(prev.Severity == d.Severity && prev.Contribution >= d.Contribution))
		}
	}
}

func TestFactorsCoverEveryComponent(t *testing.T) {
	seen := map[string]bool{}
	for _, f := range Factors(Input{TVLUSD: 1_000_000, APR: 15}) {
		seen[f.Component] = true
		assert.NotEmpty(t, f.Description)
	}
	for name := range Weights {
		assert.True(t, seen[name], "missing factors for %s", name)
	}
}

func TestEstimateParticipants(t *testing.T) {
	assert.InDelta(t, math.Sqrt(1000)*5*1.2, EstimateParticipants(1_000_000, 0, "ALEX"), 1e-9)
	assert.InDelta(t, (math.Sqrt(1000)*5+200)/2*0.7, EstimateParticipants(1_000_000, 1_000_000, "unknown-dex"), 1e-9)
	assert.Equal(t, 1.0, EstimateParticipants(0, 0, "alex"))
}

func TestStatsHelpers(t *testing.T) {
	assert.InDelta(t, 0.5, MaxDrawdown([]float64{100, 120, 60, 90}), 1e-9)
	assert.InDelta(t, 0.2, Outflow([]float64{100, 100}, 80), 1e-9)
	assert.Equal(t, 0.0, Outflow([]float64{100, 100}, 150), "inflows floor at zero")
	assert.InDelta(t, 0.5, RelativeSlope([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, Volatility([]float64{5, 5, 5, 5}))
	assert.Equal(t, 0.0, RelativeSlope([]float64{1, 2}))
}
