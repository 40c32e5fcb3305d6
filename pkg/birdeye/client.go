package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

const defaultBaseURL = "https://public-api.birdeye.so"

// Client fetches price history and token security data from the Birdeye
// API.
type Client interface {
	OHLCV(ctx context.Context, req OHLCVRequest) ([]Candle, error)
	TokenSecurity(ctx context.Context, address, chain string) (*TokenSecurity, error)
}

// OHLCVRequest parameterizes GET /defi/ohlcv.
type OHLCVRequest struct {
	Address  string
	Interval string // e.g. "15m", "1H", "1D"
	TimeFrom int64  // unix seconds
	TimeTo   int64
	// Chain overrides the client's default x-chain header for this call.
	Chain string
}

// Candle is a single OHLCV bar.
type Candle struct {
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
	UnixTime int64   `json:"unixTime"`
}

type ohlcvResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []Candle `json:"items"`
	} `json:"data"`
}

// TokenSecurity is the contract-safety profile for a token. Authority
// fields are nil when the chain does not expose them; percentage fields are
// fractions of total supply.
type TokenSecurity struct {
	CreatorAddress  string  `json:"creatorAddress"`
	CreatorPct      float64 `json:"creatorPercentage"`
	Top10HolderPct  float64 `json:"top10HolderPercent"`
	MintAuthority   *string `json:"ownerAddress"`
	FreezeAuthority *string `json:"freezeAuthority"`
	Mintable        *bool   `json:"mintable"`
	Freezeable      *bool   `json:"freezeable"`
	MutableMetadata *bool   `json:"mutableMetadata"`
	NonTransferable *bool   `json:"nonTransferable"`
}

type securityResponse struct {
	Success bool           `json:"success"`
	Data    *TokenSecurity `json:"data"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles requests to the given requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithChain sets the x-chain header; defaults to solana.
func WithChain(chain string) Option {
	return func(c *httpClient) {
		c.chain = chain
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	chain   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Birdeye API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		chain:   "solana",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) OHLCV(ctx context.Context, req OHLCVRequest) ([]Candle, error) {
	if req.Address == "" {
		return nil, eris.New("birdeye: address is required")
	}
	if req.Interval == "" {
		req.Interval = "15m"
	}

	q := url.Values{}
	q.Set("address", req.Address)
	q.Set("type", req.Interval)
	if req.TimeFrom > 0 {
		q.Set("time_from", fmt.Sprintf("%d", req.TimeFrom))
	}
	if req.TimeTo > 0 {
		q.Set("time_to", fmt.Sprintf("%d", req.TimeTo))
	}

	body, err := c.get(ctx, "/defi/ohlcv?"+q.Encode(), req.Chain)
	if err != nil {
		return nil, err
	}

	var result ohlcvResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "birdeye: unmarshal response")
	}
	if !result.Success {
		return nil, eris.New("birdeye: request was not successful")
	}

	return result.Data.Items, nil
}

// TokenSecurity fetches the safety profile. A missing profile (the provider
// has not indexed the token) maps to a DataUnavailableError so callers can
// degrade instead of retrying.
func (c *httpClient) TokenSecurity(ctx context.Context, address, chain string) (*TokenSecurity, error) {
	if address == "" {
		return nil, eris.New("birdeye: address is required")
	}

	q := url.Values{}
	q.Set("address", address)

	body, err := c.get(ctx, "/defi/token_security?"+q.Encode(), chain)
	if err != nil {
		return nil, err
	}

	var result securityResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "birdeye: unmarshal response")
	}
	if !result.Success || result.Data == nil {
		return nil, resilience.NewDataUnavailable("token security",
			eris.Errorf("birdeye: no security profile for %s", address))
	}

	return result.Data, nil
}

func (c *httpClient) get(ctx context.Context, path, chain string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "birdeye: rate limit wait")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "birdeye: create request")
	}
	if chain == "" {
		chain = c.chain
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)
	httpReq.Header.Set("x-chain", chain)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "birdeye: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "birdeye: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("birdeye: unexpected status %d: %s", resp.StatusCode, string(body))
		switch {
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return nil, resilience.NewDataUnavailable("birdeye", err)
		}
		return nil, err
	}

	return body, nil
}
