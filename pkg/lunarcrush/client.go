package lunarcrush

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

const defaultBaseURL = "https://lunarcrush.com/api4"

// Client fetches social metrics from the LunarCrush API.
type Client interface {
	Coin(ctx context.Context, symbol string) (*CoinMetrics, error)
	Topic(ctx context.Context, topic string) (*TopicMetrics, error)
}

// CoinMetrics is the coin-level social composite.
type CoinMetrics struct {
	Symbol          string  `json:"symbol"`
	GalaxyScore     float64 `json:"galaxy_score"`
	AltRank         int     `json:"alt_rank"`
	Sentiment       float64 `json:"sentiment"` // 0-100, share of bullish posts
	SocialVolume    float64 `json:"social_volume_24h"`
	Interactions    float64 `json:"interactions_24h"`
	PercentChange   float64 `json:"percent_change_24h"`
	SocialDominance float64 `json:"social_dominance"`
}

type coinResponse struct {
	Data CoinMetrics `json:"data"`
}

// TopicMetrics is the conversation-level breakdown for a topic.
type TopicMetrics struct {
	Topic             string   `json:"topic"`
	Title             string   `json:"title"`
	NumContributors   int      `json:"num_contributors"`
	NumPosts          int      `json:"num_posts"`
	InteractionsDelta float64  `json:"interactions_24h_percent_change"`
	RelatedTopics     []string `json:"related_topics"`
}

type topicResponse struct {
	Data TopicMetrics `json:"data"`
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

// NewClient creates a LunarCrush API client.
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

func (c *httpClient) Coin(ctx context.Context, symbol string) (*CoinMetrics, error) {
	if symbol == "" {
		return nil, eris.New("lunarcrush: symbol is required")
	}

	body, err := c.get(ctx, "/public/coins/"+symbol+"/v1")
	if err != nil {
		return nil, err
	}

	var result coinResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "lunarcrush: unmarshal coin")
	}

	return &result.Data, nil
}

func (c *httpClient) Topic(ctx context.Context, topic string) (*TopicMetrics, error) {
	if topic == "" {
		return nil, eris.New("lunarcrush: topic is required")
	}

	body, err := c.get(ctx, "/public/topic/"+topic+"/v1")
	if err != nil {
		return nil, err
	}

	var result topicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "lunarcrush: unmarshal topic")
	}

	return &result.Data, nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "lunarcrush: rate limit wait")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "lunarcrush: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "lunarcrush: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "lunarcrush: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("lunarcrush: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	return body, nil
}
