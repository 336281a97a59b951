package validation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/yield-risk-core/internal/model"
)

func TestFilterInvalid_BasicCriteria(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := DefaultValidationOptions()
	opts.Now = func() time.Time { return now }

	tests := []struct {
		name          string
		opportunities []model.Opportunity
		want          int
	}{
		{
			name: "all valid",
			opportunities: []model.Opportunity{
				{Protocol: "ALEX", Pool: "STX/ALEX", TVLUSD: 1000, APR: 5, APY: 5.1, LastUpdated: now},
				{Protocol: "Arkadiko", Pool: "STX/USDA", TVLUSD: 2000, APR: 8, APY: 8.3, LastUpdated: now.Add(-23 * time.Hour)},
				{Protocol: "Velar", Pool: "STX/AEUSDC", TVLUSD: 3000, APR: 3, APY: 3},
			},
			want: 3,
		},
		{
			name: "some invalid",
			opportunities: []model.Opportunity{
				{Protocol: "ALEX", Pool: "STX/ALEX", TVLUSD: 1000, APR: 5, APY: 5, LastUpdated: now},
				{Protocol: "ALEX", Pool: "STX/USDA", TVLUSD: 1000, APR: -1, APY: 5, LastUpdated: now},            // negative APR
				{Protocol: "ALEX", Pool: "STX/XBTC", TVLUSD: math.NaN(), APR: 5, APY: 5, LastUpdated: now},      // NaN TVL
				{Protocol: "ALEX", Pool: "ALEX/USDA", TVLUSD: 1000, APR: 5, APY: 50_000, LastUpdated: now},      // APY ceiling
				{Protocol: "ALEX", Pool: "ALEX/DIKO", TVLUSD: 1000, APR: 5, APY: 5, LastUpdated: now.Add(-48 * time.Hour)}, // stale
				{Protocol: "", Pool: "STX/USDA", TVLUSD: 1000, APR: 5, APY: 5, LastUpdated: now},                // no protocol
			},
			want: 1,
		},
		{
			name:          "empty input",
			opportunities: []model.Opportunity{},
			want:          0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := FilterInvalidWithOptions(tt.opportunities, opts)
			assert.Len(t, valid, tt.want)
		})
	}
}

func TestFilterInvalid_MinTVL(t *testing.T) {
	opts := DefaultValidationOptions()
	opts.MinTVL = 10_000

	valid := FilterInvalidWithOptions([]model.Opportunity{
		{Protocol: "ALEX", Pool: "A/B", TVLUSD: 9_999},
		{Protocol: "ALEX", Pool: "C/D", TVLUSD: 10_000},
	}, opts)

	require.Len(t, valid, 1)
	assert.Equal(t, "C/D", valid[0].Pool)
}

func TestFilterInvalid_OutlierDetection(t *testing.T) {
	opts := DefaultValidationOptions()
	opts.EnableOutlierDetection = true

	list := []model.Opportunity{
		{Protocol: "p", Pool: "1", TVLUSD: 1, APY: 10},
		{Protocol: "p", Pool: "2", TVLUSD: 1, APY: 12},
		{Protocol: "p", Pool: "3", TVLUSD: 1, APY: 11},
		{Protocol: "p", Pool: "4", TVLUSD: 1, APY: 13},
		{Protocol: "p", Pool: "5", TVLUSD: 1, APY: 900},
	}

	valid := FilterInvalidWithOptions(list, opts)
	assert.Len(t, valid, 4, "900%% APY should be dropped as an outlier")
	for _, o := range valid {
		assert.NotEqual(t, "5", o.Pool)
	}

	opts.EnableOutlierDetection = false
	assert.Len(t, FilterInvalidWithOptions(list, opts), 5)
}

func TestFilterInvalid_DefaultsKeepOrder(t *testing.T) {
	list := []model.Opportunity{
		{Protocol: "b", Pool: "x", TVLUSD: 5},
		{Protocol: "a", Pool: "y", TVLUSD: 9},
	}
	valid := FilterInvalid(list)
	require.Len(t, valid, 2)
	assert.Equal(t, "b", valid[0].Protocol)
}
