package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/yield-risk-core/internal/model"
)

// Display names for DefiLlama project slugs seen on Stacks
var llamaProjectNames = map[string]string{
	"alex":        "ALEX",
	"arkadiko":    "Arkadiko",
	"velar":       "Velar",
	"bitflow":     "Bitflow",
	"stackingdao": "StackingDAO",
	"zest":        "Zest",
}

// DefiLlamaAdapter lists pools from the DefiLlama yields API for a single chain
type DefiLlamaAdapter struct {
	baseURL    string
	chartURL   string
	chain      string
	minTVL     float64
	now        func() time.Time
	httpClient *http.Client
	log        *logrus.Entry
}

// NewDefiLlamaAdapter creates a DefiLlama adapter. chartURL defaults to opts.BaseURL.
func NewDefiLlamaAdapter(opts Options, chartURL, chain string) *DefiLlamaAdapter {
	opts = opts.withDefaults("defillama")
	if chartURL == "" {
		chartURL = opts.BaseURL
	}
	if chain == "" {
		chain = "Stacks"
	}
	return &DefiLlamaAdapter{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		chartURL:   strings.TrimRight(chartURL, "/"),
		chain:      chain,
		minTVL:     opts.MinTVLUSD,
		now:        opts.Now,
		httpClient: newRetryClient(opts.Retry, opts.Timeout),
		log:        opts.Logger,
	}
}

// ProtocolInfo implements Adapter
func (d *DefiLlamaAdapter) ProtocolInfo() model.ProtocolInfo {
	return model.ProtocolInfo{
		Name:        "DefiLlama",
		Slug:        "defillama",
		Chain:       strings.ToLower(d.chain),
		BaseURL:     d.baseURL,
		Description: "Multi-protocol yield pools aggregated by DefiLlama",
		HasHistory:  true,
	}
}

type llamaPool struct {
	Chain        string   `json:"chain"`
	Project      string   `json:"project"`
	Symbol       string   `json:"symbol"`
	TVLUSD       float64  `json:"tvlUsd"`
	APYBase      *float64 `json:"apyBase"`
	APYReward    *float64 `json:"apyReward"`
	APY          *float64 `json:"apy"`
	RewardTokens []string `json:"rewardTokens"`
	Pool         string   `json:"pool"`
	Stablecoin   bool     `json:"stablecoin"`
	ILRisk       string   `json:"ilRisk"`
	Exposure     string   `json:"exposure"`
	VolumeUSD1d  *float64 `json:"volumeUsd1d"`
}

// List implements Adapter
func (d *DefiLlamaAdapter) List(ctx context.Context) ([]model.Opportunity, error) {
	var response struct {
		Status string      `json:"status"`
		Data   []llamaPool `json:"data"`
	}

	d.log.Debugf("Fetching pools from DefiLlama: %s", d.baseURL)
	if err := getJSON(ctx, d.httpClient, d.baseURL+"/pools", &response); err != nil {
		return nil, fmt.Errorf("defillama pools: %w", err)
	}
	if response.Status != "" && response.Status != "success" {
		return nil, fmt.Errorf("defillama pools: %w: status %q", model.ErrInvalidResponseFormat, response.Status)
	}

	now := d.now()
	opportunities := make([]model.Opportunity, 0)
	for _, p := range response.Data {
		if !strings.EqualFold(p.Chain, d.chain) {
			continue
		}
		if !isFinite(p.TVLUSD) || p.TVLUSD < d.minTVL {
			continue
		}
		opportunities = append(opportunities, d.normalize(p, now))
	}

	d.log.WithField("count", len(opportunities)).Debug("Normalized DefiLlama pools")
	return opportunities, nil
}

func (d *DefiLlamaAdapter) normalize(p llamaPool, now time.Time) model.Opportunity {
	apy := 0.0
	switch {
	case p.APY != nil:
		apy = *p.APY
	case p.APYBase != nil || p.APYReward != nil:
		apy = deref(p.APYBase) + deref(p.APYReward)
	}

	protocol := llamaProjectNames[strings.ToLower(p.Project)]
	if protocol == "" {
		protocol = p.Project
	}

	tokens := SplitPool(p.Symbol)
	stable := p.Stablecoin || IsStablePair(tokens)
	apr := SimpleAPR(apy)

	return model.Opportunity{
		ID:          FormatID(p.Project, tokens),
		Chain:       strings.ToLower(p.Chain),
		Protocol:    protocol,
		Pool:        strings.Join(tokens, "/"),
		Tokens:      tokens,
		APR:         apr,
		APY:         apy,
		RewardToken: p.RewardTokens,
		TVLUSD:      p.TVLUSD,
		Risk:        ClassifyRisk(apr, p.TVLUSD, stable),
		Source:      model.SourceLive,
		LastUpdated: now,
		PoolID:      p.Pool,
		Volume24h:   deref(p.VolumeUSD1d),
		Exposure:    p.Exposure,
		ILRisk:      p.ILRisk,
		Stablecoin:  stable,
	}
}

// Detail implements Adapter
func (d *DefiLlamaAdapter) Detail(ctx context.Context, id string) (*model.Opportunity, error) {
	return detailFromList(ctx, d, id)
}

// FetchChart returns the raw daily history for a DefiLlama pool, oldest first
func (d *DefiLlamaAdapter) FetchChart(ctx context.Context, poolID string) ([]model.ChartPoint, error) {
	if poolID == "" {
		return nil, fmt.Errorf("defillama chart: %w: empty pool id", model.ErrPoolNotFound)
	}

	var response struct {
		Status string `json:"status"`
		Data   []struct {
			Timestamp   time.Time `json:"timestamp"`
			TVLUSD      float64   `json:"tvlUsd"`
			APY         *float64  `json:"apy"`
			APYBase     *float64  `json:"apyBase"`
			APYReward   *float64  `json:"apyReward"`
			VolumeUSD1d *float64  `json:"volumeUsd1d"`
		} `json:"data"`
	}

	endpoint := d.chartURL + "/chart/" + url.PathEscape(poolID)
	if err := getJSON(ctx, d.httpClient, endpoint, &response); err != nil {
		return nil, fmt.Errorf("defillama chart %s: %w", poolID, err)
	}
	if response.Status != "" && response.Status != "success" {
		return nil, fmt.Errorf("defillama chart %s: %w: status %q", poolID, model.ErrInvalidResponseFormat, response.Status)
	}

	points := make([]model.ChartPoint, 0, len(response.Data))
	for _, row := range response.Data {
		if row.Timestamp.IsZero() {
			continue
		}
		points = append(points, model.ChartPoint{
			Timestamp: row.Timestamp,
			TVLUSD:    row.TVLUSD,
			APY:       deref(row.APY),
			APYBase:   deref(row.APYBase),
			APYReward: deref(row.APYReward),
			Volume1d:  deref(row.VolumeUSD1d),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func deref(v *float64) float64 {
	if v == nil || !isFinite(*v) {
		return 0
	}
	return *v
}
