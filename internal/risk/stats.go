package risk

import (
	"math"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// assumedAvgTxSize converts daily volume into a participant estimate
const assumedAvgTxSize = 5000.0

// Per-protocol participant multipliers keyed by slug. Unknown protocols get unknownMultiplier.
var participantMultipliers = map[string]float64{
	"alex":     1.2,
	"arkadiko": 1.0,
	"velar":    0.9,
	"bitflow":  0.9,
}

const unknownMultiplier = 0.7

// EstimateParticipants guesses the number of liquidity providers from TVL and, when
// known, daily volume. The result is never below 1.
func EstimateParticipants(tvl, volume24h float64, protocol string) float64 {
	if tvl < 0 || !finite(tvl) {
		tvl = 0
	}
	estimate := math.Sqrt(tvl/1000) * 5
	if volume24h > 0 && finite(volume24h) {
		estimate = (estimate + volume24h/assumedAvgTxSize) / 2
	}

	multiplier, ok := participantMultipliers[slug(protocol)]
	if !ok {
		multiplier = unknownMultiplier
	}
	return math.Max(1, estimate*multiplier)
}

// Volatility is the standard deviation of day-over-day returns
func Volatility(values []float64) float64 {
	returns := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			returns = append(returns, (values[i]-values[i-1])/values[i-1])
		}
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the peak
func MaxDrawdown(values []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			worst = math.Max(worst, (peak-v)/peak)
		}
	}
	return worst
}

// RelativeSlope fits a least-squares line over the series and returns the daily slope
// relative to the series mean. Fewer than three points give 0.
func RelativeSlope(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean <= 0 {
		return 0
	}
	xs := make([]float64, len(values))
	floats.Span(xs, 0, float64(len(values)-1))
	_, beta := stat.LinearRegression(xs, values, nil, false)
	return beta / mean
}

// Outflow is how far current sits below the mean of window, as a fraction, floored at 0
func Outflow(window []float64, current float64) float64 {
	if len(window) == 0 {
		return 0
	}
	mean := floats.Sum(window) / float64(len(window))
	if mean <= 0 {
		return 0
	}
	return math.Max(0, (mean-current)/mean)
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
