package scorer

import (
	"fmt"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
)

// SocialSnapshot is the sentiment provider's structured output for one
// token.
type SocialSnapshot struct {
	// BullishRatio is the share of classified posts reading bullish, 0-1.
	BullishRatio float64 `json:"bullish_ratio"`
	// EngagementScore is the provider's 0-100 engagement composite.
	EngagementScore float64 `json:"engagement_score"`
	// VolumeChangePct is the 24h change in social post volume.
	VolumeChangePct float64 `json:"volume_change_pct"`
	// CreatorCount is the number of distinct accounts driving the
	// conversation; low counts suggest astroturfing.
	CreatorCount int `json:"creator_count"`
	// Topics are the dominant conversation topics, most prominent first.
	Topics []string `json:"topics,omitempty"`
}

// ScoreSentiment converts the social snapshot into the sentiment domain
// result. Structurally the same shape as the market scorer, with simpler
// sub-signals: a bullish-ratio core adjusted by engagement and volume
// trend, discounted when few creators drive the conversation.
func ScoreSentiment(snap SocialSnapshot) model.DomainResult {
	ratio := clamp(snap.BullishRatio, 0, 1)

	// Ratio maps the 0-1 bullish share onto a 20-80 core band; engagement
	// and volume trend push the score out of it.
	score := 20 + ratio*60

	engagement := clamp(snap.EngagementScore, 0, 100)
	score += (engagement - 50) / 5

	switch {
	case snap.VolumeChangePct > 50:
		score += 10
	case snap.VolumeChangePct > 10:
		score += 5
	case snap.VolumeChangePct < -30:
		score -= 10
	}

	// A conversation carried by a handful of accounts is not organic.
	if snap.CreatorCount > 0 && snap.CreatorCount < 10 {
		score -= 10
	}

	score = clamp(score, 0, 100)

	points := []string{
		fmt.Sprintf("%.0f%% of classified posts read bullish", ratio*100),
		fmt.Sprintf("Engagement composite at %.0f/100", engagement),
		fmt.Sprintf("Social volume %+.1f%% over 24h", snap.VolumeChangePct),
	}
	if snap.CreatorCount > 0 {
		points = append(points, fmt.Sprintf("%d distinct creators driving the conversation", snap.CreatorCount))
	}
	if len(snap.Topics) > 0 {
		points = append(points, "Dominant topic: "+snap.Topics[0])
	}

	summary := sentimentSummary(score)
	res := model.NewDomainResult(score, summary, points)
	res.Metrics = []model.Metric{
		{Name: "bullish_ratio", Value: ratio, Unit: model.UnitRatio},
		{Name: "engagement", Value: engagement, Unit: model.UnitPercent},
		{Name: "social_volume_change", Value: snap.VolumeChangePct, Unit: model.UnitPercent},
		{Name: "creator_count", Value: float64(snap.CreatorCount), Unit: model.UnitCount},
	}
	return res
}

func sentimentSummary(score float64) string {
	switch model.AssessmentForScore(score) {
	case model.AssessmentPositive:
		return "Social sentiment is strongly constructive across tracked channels"
	case model.AssessmentNeutral:
		return "Social sentiment is mixed with no dominant direction"
	default:
		return "Social sentiment is weak or deteriorating"
	}
}
