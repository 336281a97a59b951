package risk

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/yourorg/yield-risk-core/internal/model"
)

// Reference points for the component scales
const (
	deepLiquidityTVL      = 10_000_000.0
	healthyTurnover       = 0.20
	wellDistributedCount  = 1000.0
	dailyVolatilityCap    = 0.10
	drawdownCap           = 0.50
	dailyDeclineCap       = 0.03
	unsustainableAPR      = 50.0
	rewardGapCap          = 0.50
	concentrationCount    = 50.0
	whaleVolumePerHolder  = 10_000.0
	weeklyOutflowCap      = 0.20
	monthlyOutflowCap     = 0.30
	missingHistoryRisk    = 60.0
	missingMomentumRisk   = 50.0
	missingDataConfidence = 0.3
)

func liquidityComponent(in Input) component {
	depth := 100.0
	if in.TVLUSD > 1 {
		depth = 100 * (1 - clamp01(math.Log10(in.TVLUSD)/math.Log10(deepLiquidityTVL)))
	}

	turnover, turnoverConf := 50.0, 0.5
	ratio := 0.0
	if in.hasVolume() && in.TVLUSD > 0 {
		ratio = in.Volume24h / in.TVLUSD
		turnover = clamp(math.Abs(ratio-healthyTurnover)/healthyTurnover*50, 0, 100)
		turnoverConf = 1
	}

	participants := EstimateParticipants(in.TVLUSD, in.Volume24h, in.Protocol)
	distribution := 100 * (1 - clamp01(participants/wellDistributedCount))

	turnoverDesc := "No volume data, assuming average turnover"
	if in.hasVolume() {
		turnoverDesc = fmt.Sprintf("Daily volume is %.1f%% of TVL", ratio*100)
	}

	return component{
		name:       Liquidity,
		score:      0.40*depth + 0.35*turnover + 0.25*distribution,
		confidence: 0.40*1 + 0.35*turnoverConf + 0.25*0.7,
		factors: []model.RiskFactor{
			newFactor("TVL Depth", Liquidity, in.TVLUSD, depth, 0.40,
				fmt.Sprintf("$%.0f locked against a $%.0f reference", in.TVLUSD, deepLiquidityTVL)),
			newFactor("Volume Turnover", Liquidity, ratio, turnover, 0.35, turnoverDesc),
			newFactor("Participant Count", Liquidity, participants, distribution, 0.25,
				fmt.Sprintf("About %.0f estimated participants in %s", participants, poolName(in))),
		},
	}
}

func stabilityComponent(in Input) component {
	var tvl30, tvl7 []float64
	if in.History != nil {
		tvl30 = in.History.TVL30
		tvl7 = in.History.TVL7
	}

	if len(tvl30) < 2 {
		return component{
			name:       Stability,
			score:      missingHistoryRisk,
			confidence: missingDataConfidence,
			factors: []model.RiskFactor{
				newFactor("TVL History", Stability, float64(len(tvl30)), missingHistoryRisk, 1,
					"Not enough TVL history to measure stability"),
			},
		}
	}

	volatility := Volatility(tvl30)
	volatilityRisk := clamp(volatility/dailyVolatilityCap*100, 0, 100)

	drawdown := MaxDrawdown(tvl30)
	drawdownRisk := clamp(drawdown/drawdownCap*100, 0, 100)

	trendSeries := tvl7
	if len(trendSeries) < 3 {
		trendSeries = tail(tvl30, 7)
	}
	slope := RelativeSlope(trendSeries)
	trendRisk := 0.0
	if slope < 0 {
		trendRisk = clamp(-slope/dailyDeclineCap*100, 0, 100)
	}

	coverage := 0.5*math.Min(1, float64(len(tvl30))/30) + 0.5*math.Min(1, float64(len(tvl7))/7)

	return component{
		name:       Stability,
		score:      0.40*volatilityRisk + 0.35*drawdownRisk + 0.25*trendRisk,
		confidence: missingDataConfidence + 0.7*coverage,
		factors: []model.RiskFactor{
			newFactor("TVL Volatility", Stability, volatility, volatilityRisk, 0.40,
				fmt.Sprintf("Daily TVL changes deviate by %.2f%%", volatility*100)),
			newFactor("Max Drawdown", Stability, drawdown, drawdownRisk, 0.35,
				fmt.Sprintf("TVL fell up to %.1f%% from its 30-day peak", drawdown*100)),
			newFactor("TVL Trend", Stability, slope, trendRisk, 0.25,
				fmt.Sprintf("Short-term TVL trend %+.2f%% per day", slope*100)),
		},
	}
}

func yieldComponent(in Input) component {
	level := clamp(in.APR/unsustainableAPR*100, 0, 100)

	var apr30 []float64
	if in.History != nil {
		apr30 = in.History.APR30
	}
	aprVolatility, volConf := 50.0, missingDataConfidence
	cv := 0.0
	if len(apr30) >= 2 {
		if mean := stat.Mean(apr30, nil); mean > 0 {
			cv = stat.StdDev(apr30, nil) / mean
		}
		aprVolatility = clamp(cv*100, 0, 100)
		volConf = missingDataConfidence + 0.7*math.Min(1, float64(len(apr30))/30)
	}

	gap := (in.APY - in.APR) / math.Max(in.APR, 1)
	gapRisk := clamp(gap/rewardGapCap*100, 0, 100)

	volDesc := "No APR history, assuming moderate volatility"
	if len(apr30) >= 2 {
		volDesc = fmt.Sprintf("APR varies by %.1f%% of its mean", cv*100)
	}

	return component{
		name:       Yield,
		score:      0.40*level + 0.30*aprVolatility + 0.30*gapRisk,
		confidence: 0.40 + 0.30*volConf + 0.30*0.8,
		factors: []model.RiskFactor{
			newFactor("APR Level", Yield, in.APR, level, 0.40,
				fmt.Sprintf("%.2f%% APR against a %.0f%% sustainability reference", in.APR, unsustainableAPR)),
			newFactor("APR Volatility", Yield, cv, aprVolatility, 0.30, volDesc),
			newFactor("Reward Dependency", Yield, in.APY-in.APR, gapRisk, 0.30,
				fmt.Sprintf("APY exceeds APR by %.2f points", in.APY-in.APR)),
		},
	}
}

func concentrationComponent(in Input) component {
	participants := EstimateParticipants(in.TVLUSD, in.Volume24h, in.Protocol)
	holderRisk := clamp(concentrationCount/participants*100, 0, 100)

	whaleRisk, whaleConf := 30.0, 0.5
	perHolder := 0.0
	whaleDesc := "No volume data, assuming moderate whale activity"
	if in.hasVolume() {
		perHolder = in.Volume24h / participants
		whaleRisk = clamp(perHolder/whaleVolumePerHolder*100, 0, 100)
		whaleConf = 1
		whaleDesc = fmt.Sprintf("$%.0f daily volume per estimated participant", perHolder)
	}

	return component{
		name:       Concentration,
		score:      0.60*holderRisk + 0.40*whaleRisk,
		confidence: 0.6 * whaleConf,
		factors: []model.RiskFactor{
			newFactor("Holder Concentration", Concentration, participants, holderRisk, 0.60,
				fmt.Sprintf("About %.0f participants against a threshold of %.0f", participants, concentrationCount)),
			newFactor("Whale Activity", Concentration, perHolder, whaleRisk, 0.40, whaleDesc),
		},
	}
}

func momentumComponent(in Input) component {
	var tvl7, tvl30 []float64
	if in.History != nil {
		tvl7 = in.History.TVL7
		tvl30 = in.History.TVL30
	}

	if len(tvl7) == 0 && len(tvl30) == 0 {
		return component{
			name:       Momentum,
			score:      missingMomentumRisk,
			confidence: missingDataConfidence,
			factors: []model.RiskFactor{
				newFactor("TVL History", Momentum, 0, missingMomentumRisk, 1,
					"No TVL history to measure capital flows"),
			},
		}
	}

	weekly, weeklyRisk := 0.0, missingMomentumRisk
	if len(tvl7) > 0 {
		weekly = Outflow(tvl7, in.TVLUSD)
		weeklyRisk = clamp(weekly/weeklyOutflowCap*100, 0, 100)
	}
	monthly, monthlyRisk := 0.0, missingMomentumRisk
	if len(tvl30) > 0 {
		monthly = Outflow(tvl30, in.TVLUSD)
		monthlyRisk = clamp(monthly/monthlyOutflowCap*100, 0, 100)
	}

	coverage := 0.6*math.Min(1, float64(len(tvl7))/7) + 0.4*math.Min(1, float64(len(tvl30))/30)

	return component{
		name:       Momentum,
		score:      0.60*weeklyRisk + 0.40*monthlyRisk,
		confidence: missingDataConfidence + 0.7*coverage,
		factors: []model.RiskFactor{
			newFactor("7d Outflow", Momentum, weekly, weeklyRisk, 0.60,
				fmt.Sprintf("TVL is %.1f%% below its 7-day mean", weekly*100)),
			newFactor("30d Outflow", Momentum, monthly, monthlyRisk, 0.40,
				fmt.Sprintf("TVL is %.1f%% below its 30-day mean", monthly*100)),
		},
	}
}

func newFactor(name, comp string, value, sub, subWeight float64, description string) model.RiskFactor {
	sub = clamp(sub, 0, 100)
	return model.RiskFactor{
		Name:         name,
		Component:    comp,
		Value:        value,
		Impact:       ImpactOf(sub),
		Description:  description,
		Severity:     SeverityOf(sub),
		Contribution: sub * subWeight * float64(Weights[comp]) / 100,
	}
}

// SeverityOf buckets a 0-100 sub-score
func SeverityOf(sub float64) model.Severity {
	switch {
	case sub >= 70:
		return model.SeverityHigh
	case sub >= 40:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// ImpactOf maps a 0-100 sub-score to the direction it pushes risk
func ImpactOf(sub float64) model.Impact {
	switch {
	case sub >= 40:
		return model.ImpactNegative
	case sub <= 15:
		return model.ImpactPositive
	default:
		return model.ImpactNeutral
	}
}

func poolName(in Input) string {
	if len(in.Tokens) == 0 {
		return "the pool"
	}
	return strings.Join(in.Tokens, "/")
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
