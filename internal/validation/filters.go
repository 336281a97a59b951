// Package validation drops malformed or implausible opportunities before aggregation.
package validation

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/yourorg/yield-risk-core/internal/model"
)

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MaxAge drops records whose LastUpdated is older than this. Zero timestamps pass.
	MaxAge time.Duration

	// MinTVL defines the minimum TVL required for a record to be valid
	MinTVL float64

	// MaxAPY is the sanity ceiling in percent
	MaxAPY float64

	// EnableOutlierDetection drops APY outliers using the IQR rule
	EnableOutlierDetection bool

	// OutlierIQRMultiplier defines sensitivity for outlier detection (1.5 is standard)
	OutlierIQRMultiplier float64

	Now func() time.Time
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxAge:               24 * time.Hour,
		MinTVL:               0,
		MaxAPY:               10_000,
		OutlierIQRMultiplier: 1.5,
		Now:                  time.Now,
	}
}

// FilterInvalid removes opportunities that fail basic validation criteria
func FilterInvalid(opportunities []model.Opportunity) []model.Opportunity {
	return FilterInvalidWithOptions(opportunities, DefaultValidationOptions())
}

// FilterInvalidWithOptions removes opportunities with custom validation options
func FilterInvalidWithOptions(opportunities []model.Opportunity, opts ValidationOptions) []model.Opportunity {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	valid := filterBasicCriteria(opportunities, opts)

	if opts.EnableOutlierDetection && len(valid) > 3 {
		return filterOutliers(valid, opts.OutlierIQRMultiplier)
	}
	return valid
}

func filterBasicCriteria(opportunities []model.Opportunity, opts ValidationOptions) []model.Opportunity {
	now := opts.Now()
	valid := make([]model.Opportunity, 0, len(opportunities))
	for _, o := range opportunities {
		if reason := invalidReason(o, opts, now); reason != "" {
			logrus.WithFields(logrus.Fields{
				"id":       o.ID,
				"protocol": o.Protocol,
				"reason":   reason,
			}).Debug("Filtered invalid opportunity")
			continue
		}
		valid = append(valid, o)
	}
	return valid
}

// invalidReason returns why o fails validation, or "" when it passes
func invalidReason(o model.Opportunity, opts ValidationOptions, now time.Time) string {
	switch {
	case o.Protocol == "" || o.Pool == "":
		return "missing protocol or pool"
	case !finite(o.TVLUSD) || o.TVLUSD < 0:
		return "invalid tvl"
	case o.TVLUSD < opts.MinTVL:
		return "tvl below minimum"
	case !finite(o.APR) || o.APR < 0 || !finite(o.APY) || o.APY < 0:
		return "invalid yield"
	case opts.MaxAPY > 0 && o.APY > opts.MaxAPY:
		return "apy above ceiling"
	case opts.MaxAge > 0 && !o.LastUpdated.IsZero() && now.Sub(o.LastUpdated) > opts.MaxAge:
		return "stale"
	}
	return ""
}

// filterOutliers removes APY outliers using the IQR method
func filterOutliers(opportunities []model.Opportunity, iqrMultiplier float64) []model.Opportunity {
	if len(opportunities) <= 3 {
		return opportunities
	}

	apys := make([]float64, len(opportunities))
	for i, o := range opportunities {
		apys[i] = o.APY
	}
	sort.Float64s(apys)

	q1 := stat.Quantile(0.25, stat.Empirical, apys, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, apys, nil)
	iqr := q3 - q1
	lowerBound := q1 - iqrMultiplier*iqr
	upperBound := q3 + iqrMultiplier*iqr

	// very tight clusters would otherwise reject ordinary values
	if upperBound-lowerBound < 0.5 {
		mean := stat.Mean(apys, nil)
		lowerBound = mean * 0.5
		upperBound = mean * 2.0
	}

	valid := make([]model.Opportunity, 0, len(opportunities))
	for _, o := range opportunities {
		if o.APY >= lowerBound && o.APY <= upperBound {
			valid = append(valid, o)
		} else {
			logrus.WithFields(logrus.Fields{
				"id":     o.ID,
				"apy":    o.APY,
				"bounds": []float64{lowerBound, upperBound},
			}).Info("Filtered outlier opportunity")
		}
	}
	return valid
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
