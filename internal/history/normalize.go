package history

import (
	"math"
	"time"

	"github.com/yourorg/yield-risk-core/internal/model"
)

// Minimum sample counts per window after forward fill
const (
	minShortWindow  = 3
	minMediumWindow = 7
	minLongWindow   = 15
)

const day = 24 * time.Hour

// BuildWindows cuts an ascending 90-day series into the 7/30/90-day windows relative to now
// and forward-fills each window to its minimum length.
func BuildWindows(points []model.ChartPoint, now time.Time) *model.HistoricalData {
	cut7 := now.Add(-7 * day)
	cut30 := now.Add(-30 * day)

	var tvl7, tvl30, tvl90, apr30, apr90, vol30 []float64
	hasVolume := false

	for _, p := range points {
		apr := p.APYBase
		if apr <= 0 {
			apr = p.APY
		}

		tvl90 = append(tvl90, p.TVLUSD)
		apr90 = append(apr90, apr)

		if p.Timestamp.After(cut30) {
			tvl30 = append(tvl30, p.TVLUSD)
			apr30 = append(apr30, apr)
			vol30 = append(vol30, math.Max(p.Volume1d, 0))
			if p.Volume1d > 0 {
				hasVolume = true
			}
		}
		if p.Timestamp.After(cut7) {
			tvl7 = append(tvl7, p.TVLUSD)
		}
	}

	lastTVL := lastPositive(tvl90)
	lastAPR := lastPositive(apr90)

	data := &model.HistoricalData{
		TVL7:  ForwardFill(tvl7, minShortWindow, lastTVL),
		TVL30: ForwardFill(tvl30, minMediumWindow, lastTVL),
		TVL90: ForwardFill(tvl90, minLongWindow, lastTVL),
		APR30: ForwardFill(apr30, minMediumWindow, lastAPR),
		APR90: ForwardFill(apr90, minLongWindow, lastAPR),
	}
	if hasVolume {
		data.Vol30 = vol30
	}
	return data
}

// ForwardFill replaces non-positive or non-finite values with the prior value and pads
// with the last value up to minLen. Leading gaps take the first valid value. An empty
// window is padded from fallback; with no usable fallback the window stays empty.
func ForwardFill(values []float64, minLen int, fallback float64) []float64 {
	out := make([]float64, 0, maxInt(len(values), minLen))

	firstValid := 0.0
	for _, v := range values {
		if valid(v) {
			firstValid = v
			break
		}
	}
	if firstValid == 0 {
		firstValid = fallback
	}
	if !valid(firstValid) {
		return []float64{}
	}

	prev := firstValid
	for _, v := range values {
		if valid(v) {
			prev = v
		}
		out = append(out, prev)
	}
	for len(out) < minLen {
		out = append(out, prev)
	}
	return out
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func lastPositive(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if valid(values[i]) {
			return values[i]
		}
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
