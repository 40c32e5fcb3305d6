package fetch

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
	"github.com/go-arlo/go-arlo-swarm/internal/scorer"
	"github.com/go-arlo/go-arlo-swarm/pkg/lunarcrush"
)

// SentimentFetcher maps LunarCrush social metrics into the sentiment
// snapshot.
type SentimentFetcher struct {
	lunar lunarcrush.Client
	retry resilience.RetryConfig
}

// NewSentimentFetcher creates a SentimentFetcher over the given client.
func NewSentimentFetcher(lc lunarcrush.Client) *SentimentFetcher {
	return &SentimentFetcher{
		lunar: lc,
		retry: resilience.DefaultRetryConfig(),
	}
}

// FetchSentiment pulls the coin composite and the topic breakdown. The coin
// lookup is required; the topic lookup only enriches creator counts and
// conversation topics, so its failure degrades rather than aborts.
func (f *SentimentFetcher) FetchSentiment(ctx context.Context, req model.AnalysisRequest) (scorer.SocialSnapshot, error) {
	coin, err := resilience.Retry(ctx, f.retry, "coin social", func(ctx context.Context) (*lunarcrush.CoinMetrics, error) {
		return f.lunar.Coin(ctx, req.Ticker)
	})
	if err != nil {
		return scorer.SocialSnapshot{}, eris.Wrap(err, "fetch: coin social metrics")
	}

	snap := scorer.SocialSnapshot{
		BullishRatio:    coin.Sentiment / 100,
		EngagementScore: coin.GalaxyScore,
		VolumeChangePct: coin.PercentChange,
	}

	topic, err := resilience.Retry(ctx, f.retry, "topic social", func(ctx context.Context) (*lunarcrush.TopicMetrics, error) {
		return f.lunar.Topic(ctx, strings.ToLower(req.Ticker))
	})
	if err != nil {
		zap.L().Warn("topic lookup failed, creator data unavailable",
			zap.String("ticker", req.Ticker),
			zap.Error(err))
		return snap, nil
	}

	snap.CreatorCount = topic.NumContributors
	snap.Topics = topic.RelatedTopics
	return snap, nil
}
