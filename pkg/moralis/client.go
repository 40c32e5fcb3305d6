package moralis

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

const defaultBaseURL = "https://solana-gateway.moralis.io"

// Client fetches on-chain token data from the Moralis Solana gateway.
type Client interface {
	TokenMetadata(ctx context.Context, address string) (*TokenMetadata, error)
	TokenPairs(ctx context.Context, address string) ([]TokenPair, error)
	TokenSwaps(ctx context.Context, req SwapsRequest) ([]Swap, error)
	TopHolders(ctx context.Context, address string, limit int) ([]Holder, error)
}

// TokenMetadata describes a mint: supply and authority state.
type TokenMetadata struct {
	Mint            string `json:"mint"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Decimals        string `json:"decimals"`
	TotalSupply     string `json:"totalSupplyFormatted"`
	MintAuthority   string `json:"mintAuthority"`
	FreezeAuthority string `json:"freezeAuthority"`
}

// TokenPair is one DEX pair the token trades on.
type TokenPair struct {
	PairAddress  string  `json:"pairAddress"`
	ExchangeName string  `json:"exchangeName"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	Volume24hUSD float64 `json:"volume24hrUsd"`
	BaseToken    string  `json:"baseToken"`
	QuoteToken   string  `json:"quoteToken"`
}

type pairsResponse struct {
	Pairs []TokenPair `json:"pairs"`
}

// SwapsRequest parameterizes the swaps-by-token endpoint.
type SwapsRequest struct {
	Address  string
	FromDate time.Time
	ToDate   time.Time
	Limit    int
	Cursor   string
}

// Swap is one buy or sell against a pair.
type Swap struct {
	TransactionHash string    `json:"transactionHash"`
	TransactionType string    `json:"transactionType"` // "buy" or "sell"
	WalletAddress   string    `json:"walletAddress"`
	BlockTimestamp  time.Time `json:"blockTimestamp"`
	TokenAmount     float64   `json:"tokenAmount,string"`
	TotalValueUSD   float64   `json:"totalValueUsd"`
	Slot            int64     `json:"slot"`
}

type swapsResponse struct {
	Cursor string `json:"cursor"`
	Result []Swap `json:"result"`
}

// Holder is one entry from the top-holders endpoint.
type Holder struct {
	OwnerAddress string  `json:"ownerAddress"`
	Amount       float64 `json:"balanceFormatted,string"`
	SupplyPct    float64 `json:"percentageRelativeToTotalSupply"`
	IsContract   bool    `json:"isContract"`
}

type holdersResponse struct {
	Result []Holder `json:"result"`
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

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Moralis API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
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

func (c *httpClient) TokenMetadata(ctx context.Context, address string) (*TokenMetadata, error) {
	if address == "" {
		return nil, eris.New("moralis: address is required")
	}

	body, err := c.get(ctx, "/token/mainnet/"+address+"/metadata")
	if err != nil {
		return nil, err
	}

	var meta TokenMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, eris.Wrap(err, "moralis: unmarshal metadata")
	}

	return &meta, nil
}

func (c *httpClient) TokenPairs(ctx context.Context, address string) ([]TokenPair, error) {
	if address == "" {
		return nil, eris.New("moralis: address is required")
	}

	body, err := c.get(ctx, "/token/mainnet/"+address+"/pairs")
	if err != nil {
		return nil, err
	}

	var result pairsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "moralis: unmarshal pairs")
	}

	return result.Pairs, nil
}

// TokenSwaps pages through the swaps endpoint until the requested window is
// exhausted or Limit swaps have been collected.
func (c *httpClient) TokenSwaps(ctx context.Context, req SwapsRequest) ([]Swap, error) {
	if req.Address == "" {
		return nil, eris.New("moralis: address is required")
	}
	if req.Limit <= 0 {
		req.Limit = 100
	}

	var swaps []Swap
	cursor := req.Cursor
	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprintf("%d", req.Limit))
		q.Set("order", "ASC")
		if !req.FromDate.IsZero() {
			q.Set("fromDate", req.FromDate.UTC().Format(time.RFC3339))
		}
		if !req.ToDate.IsZero() {
			q.Set("toDate", req.ToDate.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		body, err := c.get(ctx, "/token/mainnet/"+req.Address+"/swaps?"+q.Encode())
		if err != nil {
			return nil, err
		}

		var page swapsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "moralis: unmarshal swaps")
		}

		swaps = append(swaps, page.Result...)
		if page.Cursor == "" || len(page.Result) == 0 || len(swaps) >= req.Limit {
			break
		}
		cursor = page.Cursor
	}

	if len(swaps) > req.Limit {
		swaps = swaps[:req.Limit]
	}
	return swaps, nil
}

func (c *httpClient) TopHolders(ctx context.Context, address string, limit int) ([]Holder, error) {
	if address == "" {
		return nil, eris.New("moralis: address is required")
	}
	if limit <= 0 {
		limit = 20
	}

	body, err := c.get(ctx, fmt.Sprintf("/token/mainnet/%s/top-holders?limit=%d", address, limit))
	if err != nil {
		return nil, err
	}

	var result holdersResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "moralis: unmarshal holders")
	}

	return result.Result, nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "moralis: rate limit wait")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "moralis: create request")
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "moralis: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "moralis: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("moralis: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}
