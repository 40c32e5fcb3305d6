package scorer

import (
	"math"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

// Domain names one weighted component of the final score.
type Domain string

const (
	DomainMarket       Domain = "market"
	DomainSentiment    Domain = "sentiment"
	DomainSecurity     Domain = "security"
	DomainDistribution Domain = "distribution"
)

// weightTolerance is how far the weight sum may drift from 1.0.
const weightTolerance = 1e-6

// Weights maps each required domain to its share of the final score.
type Weights map[Domain]float64

// DefaultWeights returns the production weight split: security carries the
// most weight, market and sentiment follow, distribution rounds it out.
func DefaultWeights() Weights {
	return Weights{
		DomainSecurity:     0.26,
		DomainMarket:       0.25,
		DomainSentiment:    0.25,
		DomainDistribution: 0.24,
	}
}

// Validate checks the weights sum to 1.0 within tolerance and are all
// non-negative.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return errConfigf("scorer: no aggregation weights configured")
	}
	var sum float64
	for d, v := range w {
		if v < 0 {
			return errConfigf("scorer: negative weight %v for domain %s", v, d)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return errConfigf("scorer: weights sum to %v, want 1.0", sum)
	}
	return nil
}

// AggregateConfig tunes the final-score combination.
type AggregateConfig struct {
	Weights Weights
	// LowMarketThreshold and LowMarketCap implement the guard that a weak
	// market signal caps the final score: when the market domain scores
	// below the threshold, the final score cannot exceed the cap. Zero
	// values disable the guard.
	LowMarketThreshold float64
	LowMarketCap       float64
}

// DefaultAggregateConfig returns the production aggregation settings.
func DefaultAggregateConfig() AggregateConfig {
	return AggregateConfig{
		Weights:            DefaultWeights(),
		LowMarketThreshold: 70,
		LowMarketCap:       85,
	}
}

// Final is the aggregated outcome.
type Final struct {
	Score      float64          `json:"score"`
	Assessment model.Assessment `json:"assessment"`
}

// Aggregate combines per-domain scores into the final weighted score,
// rounded to one decimal, and recomputes the assessment from the score
// bands. It fails with a ConfigurationError when weights are malformed or
// any weighted domain is missing a score.
func Aggregate(scores map[Domain]float64, cfg AggregateConfig) (Final, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return Final{}, err
	}

	var final float64
	for d, w := range cfg.Weights {
		score, ok := scores[d]
		if !ok {
			return Final{}, errConfigf("scorer: missing score for weighted domain %s", d)
		}
		if score < 0 || score > 100 || math.IsNaN(score) {
			return Final{}, errConfigf("scorer: score %v for domain %s out of [0,100]", score, d)
		}
		final += w * score
	}

	if cfg.LowMarketThreshold > 0 {
		if market, ok := scores[DomainMarket]; ok && market < cfg.LowMarketThreshold {
			final = math.Min(final, cfg.LowMarketCap)
		}
	}

	final = math.Round(final*10) / 10

	return Final{
		Score:      final,
		Assessment: model.AssessmentForScore(final),
	}, nil
}

func errConfigf(format string, args ...any) error {
	return resilience.NewConfigurationError(format, args...)
}
