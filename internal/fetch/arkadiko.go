package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/yield-risk-core/internal/model"
)

// ArkadikoAdapter lists swap pools from the Arkadiko API
type ArkadikoAdapter struct {
	baseURL    string
	minTVL     float64
	now        func() time.Time
	httpClient *http.Client
	log        *logrus.Entry
}

// NewArkadikoAdapter creates a new Arkadiko adapter
func NewArkadikoAdapter(opts Options) *ArkadikoAdapter {
	opts = opts.withDefaults("arkadiko")
	return &ArkadikoAdapter{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		minTVL:     opts.MinTVLUSD,
		now:        opts.Now,
		httpClient: newRetryClient(opts.Retry, opts.Timeout),
		log:        opts.Logger,
	}
}

// ProtocolInfo implements Adapter
func (a *ArkadikoAdapter) ProtocolInfo() model.ProtocolInfo {
	return model.ProtocolInfo{
		Name:        "Arkadiko",
		Slug:        "arkadiko",
		Chain:       "stacks",
		BaseURL:     a.baseURL,
		Description: "Arkadiko swap liquidity pools",
	}
}

// List implements Adapter
func (a *ArkadikoAdapter) List(ctx context.Context) ([]model.Opportunity, error) {
	var response struct {
		Pools []struct {
			ID          string   `json:"id"`
			TokenX      string   `json:"token_x_name"`
			TokenY      string   `json:"token_y_name"`
			TVL         float64  `json:"tvl"`
			APR         float64  `json:"apr"`
			APY         *float64 `json:"apy"`
			Volume24h   float64  `json:"volume_24h"`
			RewardToken string   `json:"reward_token"`
		} `json:"pools"`
	}

	a.log.Debugf("Fetching pools from Arkadiko: %s", a.baseURL)
	if err := getJSON(ctx, a.httpClient, a.baseURL+"/api/v1/pools", &response); err != nil {
		return nil, fmt.Errorf("arkadiko pools: %w", err)
	}

	now := a.now()
	opportunities := make([]model.Opportunity, 0, len(response.Pools))
	for _, p := range response.Pools {
		if !isFinite(p.TVL) || p.TVL < a.minTVL {
			continue
		}

		tokens := []string{strings.ToUpper(p.TokenX), strings.ToUpper(p.TokenY)}
		apy := CompoundAPY(p.APR)
		if p.APY != nil && isFinite(*p.APY) {
			apy = *p.APY
		}
		reward := p.RewardToken
		if reward == "" {
			reward = "DIKO"
		}
		stable := IsStablePair(tokens)

		opportunities = append(opportunities, model.Opportunity{
			ID:          FormatID("arkadiko", tokens),
			Chain:       "stacks",
			Protocol:    "Arkadiko",
			Pool:        strings.Join(tokens, "/"),
			Tokens:      tokens,
			APR:         p.APR,
			APY:         apy,
			RewardToken: []string{reward},
			TVLUSD:      p.TVL,
			Risk:        ClassifyRisk(p.APR, p.TVL, stable),
			Source:      model.SourceLive,
			LastUpdated: now,
			Volume24h:   p.Volume24h,
			Stablecoin:  stable,
		})
	}

	return opportunities, nil
}

// Detail implements Adapter
func (a *ArkadikoAdapter) Detail(ctx context.Context, id string) (*model.Opportunity, error) {
	return detailFromList(ctx, a, id)
}
