package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

func TestAggregate_ThreeDomainWorkedExample(t *testing.T) {
	cfg := AggregateConfig{
		Weights: Weights{
			DomainMarket:    0.5,
			DomainSentiment: 0.3,
			DomainSecurity:  0.2,
		},
	}
	scores := map[Domain]float64{
		DomainMarket:    80,
		DomainSentiment: 60,
		DomainSecurity:  90,
	}
	final, err := Aggregate(scores, cfg)
	require.NoError(t, err)
	assert.Equal(t, 76.0, final.Score)
	assert.Equal(t, model.AssessmentPositive, final.Assessment)
}

func TestAggregate_DefaultWeights(t *testing.T) {
	scores := map[Domain]float64{
		DomainSecurity:     95,
		DomainMarket:       85,
		DomainSentiment:    85,
		DomainDistribution: 95,
	}
	final, err := Aggregate(scores, DefaultAggregateConfig())
	require.NoError(t, err)
	// 95*0.26 + 85*0.25 + 85*0.25 + 95*0.24 = 90.0
	assert.Equal(t, 90.0, final.Score)
}

func TestAggregate_AssessmentRecomputedNotInherited(t *testing.T) {
	// Every component is positive on its own; the weighted blend lands in
	// the neutral band and the final assessment follows the blend.
	cfg := AggregateConfig{Weights: Weights{DomainMarket: 0.5, DomainSentiment: 0.5}}
	scores := map[Domain]float64{DomainMarket: 70, DomainSentiment: 40}
	final, err := Aggregate(scores, cfg)
	require.NoError(t, err)
	assert.Equal(t, 55.0, final.Score)
	assert.Equal(t, model.AssessmentNeutral, final.Assessment)
}

func TestAggregate_LowMarketCapsFinal(t *testing.T) {
	scores := map[Domain]float64{
		DomainSecurity:     95,
		DomainMarket:       65,
		DomainSentiment:    100,
		DomainDistribution: 95,
	}
	final, err := Aggregate(scores, DefaultAggregateConfig())
	require.NoError(t, err)
	assert.LessOrEqual(t, final.Score, 85.0)
}

func TestAggregate_BadWeightSum(t *testing.T) {
	cfg := AggregateConfig{Weights: Weights{DomainMarket: 0.5, DomainSentiment: 0.4}}
	_, err := Aggregate(map[Domain]float64{DomainMarket: 50, DomainSentiment: 50}, cfg)
	require.Error(t, err)
	var ce *resilience.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestAggregate_WeightSumWithinTolerance(t *testing.T) {
	cfg := AggregateConfig{Weights: Weights{DomainMarket: 0.5, DomainSentiment: 0.5 + 5e-7}}
	_, err := Aggregate(map[Domain]float64{DomainMarket: 50, DomainSentiment: 50}, cfg)
	assert.NoError(t, err)
}

func TestAggregate_MissingDomain(t *testing.T) {
	_, err := Aggregate(map[Domain]float64{DomainMarket: 50}, DefaultAggregateConfig())
	require.Error(t, err)
	var ce *resilience.ConfigurationError
	assert.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "missing score")
}

func TestAggregate_OutOfRangeScore(t *testing.T) {
	cfg := AggregateConfig{Weights: Weights{DomainMarket: 1.0}}
	_, err := Aggregate(map[Domain]float64{DomainMarket: 130}, cfg)
	assert.Error(t, err)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{}.Validate())
	assert.Error(t, Weights{DomainMarket: -0.2, DomainSentiment: 1.2}.Validate())
}

func TestAggregate_RoundsToOneDecimal(t *testing.T) {
	cfg := AggregateConfig{Weights: Weights{DomainMarket: (1.0 / 3), DomainSentiment: (2.0 / 3)}}
	final, err := Aggregate(map[Domain]float64{DomainMarket: 50, DomainSentiment: 61}, cfg)
	require.NoError(t, err)
	// 16.666 + 40.666 = 57.333 → 57.3
	assert.Equal(t, 57.3, final.Score)
}
