// Package fetch provides provider-specific adapters that retrieve yield pools and
// normalize them into model.Opportunity records.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/yield-risk-core/internal/model"
)

// Adapter defines the interface that all provider adapters must implement
type Adapter interface {
	// List retrieves every pool above the adapter's liquidity floor. Upstream failures come
	// back as classified errors; callers outside the manager must treat an error as an
	// empty result, never as a reason to fail their own operation.
	List(ctx context.Context) ([]model.Opportunity, error)

	// Detail resolves a single opportunity by its ID
	Detail(ctx context.Context, id string) (*model.Opportunity, error)

	// ProtocolInfo describes the upstream
	ProtocolInfo() model.ProtocolInfo
}

// RetryPolicy configures how an adapter retries failed upstream calls
type RetryPolicy struct {
	// MaxAttempts counts the first try, so 3 means two retries
	MaxAttempts int
	WaitMin     time.Duration
	WaitMax     time.Duration

	// Exponential selects exponential backoff; otherwise WaitMin is used between attempts
	Exponential bool
}

// DefaultRetryPolicy returns three attempts with exponential backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		WaitMin:     500 * time.Millisecond,
		WaitMax:     3 * time.Second,
		Exponential: true,
	}
}

// Options holds the settings shared by every adapter
type Options struct {
	BaseURL string

	// MinTVLUSD drops dust pools before normalization
	MinTVLUSD float64

	// Timeout bounds a single HTTP round trip including retries
	Timeout time.Duration

	Retry  RetryPolicy
	Now    func() time.Time
	Logger *logrus.Entry
}

func (o Options) withDefaults(component string) Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = DefaultRetryPolicy()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("component", component)
	}
	return o
}

// newRetryClient creates an HTTP client with the given retry policy
func newRetryClient(policy RetryPolicy, timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = policy.MaxAttempts - 1
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	c.RetryWaitMin = policy.WaitMin
	c.RetryWaitMax = policy.WaitMax
	if policy.Exponential {
		c.Backoff = retryablehttp.DefaultBackoff
	} else {
		c.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
			return min
		}
	}
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return c.StandardClient()
}

// getJSON issues a GET and decodes the body into out, classifying failures
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d, body: %s", model.ErrUpstreamUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidResponseFormat, err)
	}
	return nil
}

// detailFromList resolves id against a fresh list from the adapter. IDs carry only the
// first two tokens, so a pool made of exactly those tokens wins over a wider pool
// such as STX/USDA/XBTC that shares the same ID.
func detailFromList(ctx context.Context, a Adapter, id string) (*model.Opportunity, error) {
	slug, tokenA, tokenB, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	canonical := slug + "-" + tokenA + "-" + tokenB

	opportunities, err := a.List(ctx)
	if err != nil {
		return nil, err
	}

	var found *model.Opportunity
	for i := range opportunities {
		if opportunities[i].ID != canonical {
			continue
		}
		if exactPool(opportunities[i], tokenA, tokenB) {
			o := opportunities[i]
			return &o, nil
		}
		if found == nil {
			o := opportunities[i]
			found = &o
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", model.ErrPoolNotFound, id)
	}
	return found, nil
}

func exactPool(o model.Opportunity, tokenA, tokenB string) bool {
	tokens := SplitPool(o.Pool)
	switch len(tokens) {
	case 1:
		return tokenA == tokenB && Slugify(tokens[0]) == tokenA
	case 2:
		return Slugify(tokens[0]) == tokenA && Slugify(tokens[1]) == tokenB
	default:
		return false
	}
}
