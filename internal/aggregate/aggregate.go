// Package aggregate provides the list operations applied to opportunities merged from all adapters.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/yourorg/yield-risk-core/internal/model"
)

// Dedupe keeps the first opportunity seen for each case-insensitive (protocol, pool) pair.
// Input order of the survivors is preserved.
func Dedupe(opportunities []model.Opportunity) []model.Opportunity {
	seen := make(map[string]struct{}, len(opportunities))
	out := make([]model.Opportunity, 0, len(opportunities))
	for _, o := range opportunities {
		key := o.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out
}

// SortOpportunities orders by TVL descending, then APY descending. The sort is stable so
// the result depends only on the data, not on which adapter answered first.
func SortOpportunities(opportunities []model.Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		if opportunities[i].TVLUSD != opportunities[j].TVLUSD {
			return opportunities[i].TVLUSD > opportunities[j].TVLUSD
		}
		return opportunities[i].APY > opportunities[j].APY
	})
}

// Process deduplicates and sorts a merged list into a new slice
func Process(opportunities []model.Opportunity) []model.Opportunity {
	out := Dedupe(opportunities)
	SortOpportunities(out)
	return out
}

// ComputeStats summarizes an aggregated list
func ComputeStats(opportunities []model.Opportunity, now time.Time) model.AdapterStats {
	stats := model.AdapterStats{
		TotalOpportunities: len(opportunities),
		BySource:           make(map[string]int),
		ByProtocol:         make(map[string]int),
		LastUpdate:         now,
	}

	apySum := 0.0
	for _, o := range opportunities {
		stats.BySource[string(o.Source)]++
		stats.ByProtocol[o.Protocol]++
		stats.TotalTVL += o.TVLUSD
		apySum += o.APY
	}

	if len(opportunities) > 0 {
		stats.AvgAPY = apySum / float64(len(opportunities))
	}
	if math.IsNaN(stats.AvgAPY) || math.IsInf(stats.AvgAPY, 0) {
		stats.AvgAPY = 0
	}
	return stats
}

// WeightedAPY returns the TVL-weighted average APY of the list
func WeightedAPY(opportunities []model.Opportunity) float64 {
	var totalTVL, weighted float64
	for _, o := range opportunities {
		if o.TVLUSD > 0 && o.APY >= 0 {
			totalTVL += o.TVLUSD
			weighted += o.APY * o.TVLUSD
		}
	}
	if totalTVL <= 0 || math.IsNaN(weighted) {
		return 0
	}
	return weighted / totalTVL
}
