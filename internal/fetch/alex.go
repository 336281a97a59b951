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

// AlexAdapter lists AMM pools from the ALEX public API
type AlexAdapter struct {
	baseURL    string
	minTVL     float64
	now        func() time.Time
	httpClient *http.Client
	log        *logrus.Entry
}

// NewAlexAdapter creates a new ALEX adapter
func NewAlexAdapter(opts Options) *AlexAdapter {
	opts = opts.withDefaults("alex")
	return &AlexAdapter{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		minTVL:     opts.MinTVLUSD,
		now:        opts.Now,
		httpClient: newRetryClient(opts.Retry, opts.Timeout),
		log:        opts.Logger,
	}
}

// ProtocolInfo implements Adapter
func (a *AlexAdapter) ProtocolInfo() model.ProtocolInfo {
	return model.ProtocolInfo{
		Name:        "ALEX",
		Slug:        "alex",
		Chain:       "stacks",
		BaseURL:     a.baseURL,
		Description: "ALEX AMM pools",
	}
}

// List implements Adapter
func (a *AlexAdapter) List(ctx context.Context) ([]model.Opportunity, error) {
	var response struct {
		Data []struct {
			PoolID    string  `json:"pool_id"`
			TokenX    string  `json:"token_x"`
			TokenY    string  `json:"token_y"`
			TVL       float64 `json:"tvl"`
			APR       float64 `json:"apr"`
			Volume24h float64 `json:"volume_24h"`
		} `json:"data"`
	}

	a.log.Debugf("Fetching pools from ALEX: %s", a.baseURL)
	if err := getJSON(ctx, a.httpClient, a.baseURL+"/v1/pool_stats", &response); err != nil {
		return nil, fmt.Errorf("alex pool stats: %w", err)
	}

	now := a.now()
	opportunities := make([]model.Opportunity, 0, len(response.Data))
	for _, p := range response.Data {
		if !isFinite(p.TVL) || p.TVL < a.minTVL {
			continue
		}

		tokens := make([]string, 0, 2)
		for _, t := range []string{p.TokenX, p.TokenY} {
			if t = strings.TrimSpace(t); t != "" {
				tokens = append(tokens, strings.ToUpper(t))
			}
		}
		stable := IsStablePair(tokens)

		opportunities = append(opportunities, model.Opportunity{
			ID:          FormatID("alex", tokens),
			Chain:       "stacks",
			Protocol:    "ALEX",
			Pool:        strings.Join(tokens, "/"),
			Tokens:      tokens,
			APR:         p.APR,
			APY:         CompoundAPY(p.APR),
			RewardToken: []string{"ALEX"},
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
func (a *AlexAdapter) Detail(ctx context.Context, id string) (*model.Opportunity, error) {
	return detailFromList(ctx, a, id)
}
