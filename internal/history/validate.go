package history

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yourorg/yield-risk-core/internal/model"
)

// Plausibility bounds for ValidateTimeSeriesData
const (
	minAverageTVL      = 1_000.0
	maxPlausibleAPY    = 1_000.0
	maxInvalidTVLShare = 0.30
)

// ValidationResult is an advisory verdict on a series
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Issues  []string `json:"issues"`
}

// ValidateTimeSeriesData flags ordering and plausibility problems in a series.
// It is diagnostic only and never gates use of the data.
func ValidateTimeSeriesData(points []model.ChartPoint) ValidationResult {
	issues := make([]string, 0)
	if len(points) == 0 {
		return ValidationResult{IsValid: false, Issues: append(issues, "series is empty")}
	}

	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(points[i-1].Timestamp) {
			issues = append(issues, fmt.Sprintf("non-chronological point at index %d", i))
			break
		}
	}

	tvls := make([]float64, 0, len(points))
	apys := make([]float64, 0, len(points))
	invalid := 0
	for _, p := range points {
		if valid(p.TVLUSD) {
			tvls = append(tvls, p.TVLUSD)
		} else {
			invalid++
		}
		apys = append(apys, p.APY)
	}

	if len(tvls) > 0 {
		if avg := stat.Mean(tvls, nil); avg < minAverageTVL {
			issues = append(issues, fmt.Sprintf("average TVL %.2f is implausibly low", avg))
		}
	}

	if peak := floats.Max(apys); peak > maxPlausibleAPY {
		issues = append(issues, fmt.Sprintf("APY %.2f%% is implausibly high", peak))
	}

	if share := float64(invalid) / float64(len(points)); share > maxInvalidTVLShare {
		issues = append(issues, fmt.Sprintf("%.0f%% of TVL points are missing or invalid", share*100))
	}

	return ValidationResult{IsValid: len(issues) == 0, Issues: issues}
}
