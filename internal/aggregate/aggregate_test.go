package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/yourorg/yield-risk-core/internal/model"
)

func TestDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    []model.Opportunity
		expected []float64
	}{
		{
			name: "case-insensitive duplicate keeps first seen",
			input: []model.Opportunity{
				{Protocol: "ALEX", Pool: "STX/USDA", TVLUSD: 100},
				{Protocol: "alex", Pool: "stx/usda", TVLUSD: 200},
			},
			expected: []float64{100},
		},
		{
			name: "same pool on different protocols is kept",
			input: []model.Opportunity{
				{Protocol: "ALEX", Pool: "STX/USDA", TVLUSD: 1},
				{Protocol: "Arkadiko", Pool: "STX/USDA", TVLUSD: 2},
			},
			expected: []float64{1, 2},
		},
		{
			name:     "empty input",
			input:    []model.Opportunity{},
			expected: []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Dedupe(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Dedupe() returned %d items, want %d", len(result), len(tt.expected))
			}
			for i, o := range result {
				if o.TVLUSD != tt.expected[i] {
					t.Errorf("Dedupe()[%d].TVLUSD = %v, want %v", i, o.TVLUSD, tt.expected[i])
				}
			}
		})
	}
}

func TestSortOpportunities(t *testing.T) {
	list := []model.Opportunity{
		{ID: "c", TVLUSD: 500, APY: 3},
		{ID: "a", TVLUSD: 900, APY: 1},
		{ID: "b", TVLUSD: 500, APY: 9},
		{ID: "d", TVLUSD: 50, APY: 40},
		{ID: "e", TVLUSD: 500, APY: 3},
	}

	SortOpportunities(list)

	want := []string{"a", "b", "c", "e", "d"}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, list[i].ID, id)
		}
	}

	for i := 0; i+1 < len(list); i++ {
		if list[i].TVLUSD < list[i+1].TVLUSD {
			t.Errorf("tvl not descending at %d", i)
		}
		if list[i].TVLUSD == list[i+1].TVLUSD && list[i].APY < list[i+1].APY {
			t.Errorf("apy tie-break not descending at %d", i)
		}
	}
}

func TestProcess_OrderIndependentOfAdapterCompletion(t *testing.T) {
	a := []model.Opportunity{
		{Protocol: "ALEX", Pool: "STX/ALEX", TVLUSD: 300, APY: 5},
		{Protocol: "Arkadiko", Pool: "STX/USDA", TVLUSD: 700, APY: 4},
	}
	b := []model.Opportunity{
		{Protocol: "Velar", Pool: "STX/AEUSDC", TVLUSD: 300, APY: 8},
	}

	first := Process(append(append([]model.Opportunity{}, a...), b...))
	second := Process(append(append([]model.Opportunity{}, b...), a...))

	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].DedupKey() != second[i].DedupKey() {
			t.Errorf("position %d differs: %s vs %s", i, first[i].DedupKey(), second[i].DedupKey())
		}
	}
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	list := []model.Opportunity{
		{Protocol: "ALEX", Source: model.SourceLive, TVLUSD: 1000, APY: 10},
		{Protocol: "ALEX", Source: model.SourceLive, TVLUSD: 3000, APY: 20},
		{Protocol: "Arkadiko", Source: model.SourceSynthetic, TVLUSD: 1000, APY: 30},
	}

	stats := ComputeStats(list, now)

	if stats.TotalOpportunities != 3 {
		t.Errorf("TotalOpportunities = %d, want 3", stats.TotalOpportunities)
	}
	if stats.ByProtocol["ALEX"] != 2 || stats.ByProtocol["Arkadiko"] != 1 {
		t.Errorf("ByProtocol = %v", stats.ByProtocol)
	}
	if stats.BySource["live"] != 2 || stats.BySource["synthetic"] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
	if stats.TotalTVL != 5000 {
		t.Errorf("TotalTVL = %v, want 5000", stats.TotalTVL)
	}
	if math.Abs(stats.AvgAPY-20) > 1e-9 {
		t.Errorf("AvgAPY = %v, want 20", stats.AvgAPY)
	}
	if !stats.LastUpdate.Equal(now) {
		t.Errorf("LastUpdate = %v, want %v", stats.LastUpdate, now)
	}

	empty := ComputeStats(nil, now)
	if empty.TotalOpportunities != 0 || empty.AvgAPY != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestWeightedAPY(t *testing.T) {
	list := []model.Opportunity{
		{TVLUSD: 1000, APY: 5},
		{TVLUSD: 2000, APY: 10},
		{TVLUSD: 0, APY: 500},
	}
	if got := WeightedAPY(list); math.Abs(got-8.333333333333334) > 1e-9 {
		t.Errorf("WeightedAPY() = %v, want 8.333", got)
	}
	if got := WeightedAPY(nil); got != 0 {
		t.Errorf("WeightedAPY(nil) = %v, want 0", got)
	}
}
