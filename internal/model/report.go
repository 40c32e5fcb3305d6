package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Assessment is the qualitative label attached to a 0-100 score.
type Assessment string

const (
	AssessmentPositive Assessment = "positive"
	AssessmentNeutral  Assessment = "neutral"
	AssessmentNegative Assessment = "negative"
)

// AssessmentForScore maps a 0-100 score to its assessment band:
// [70,100] positive, [40,70) neutral, [0,40) negative.
func AssessmentForScore(score float64) Assessment {
	switch {
	case score >= 70:
		return AssessmentPositive
	case score >= 40:
		return AssessmentNeutral
	default:
		return AssessmentNegative
	}
}

// MaxKeyPoints caps the number of key points carried per domain result.
const MaxKeyPoints = 5

// DomainResult is one analysis domain's contribution to a report: a 0-100
// score, the assessment derived from it, a one-line summary, and up to five
// ordered key points.
type DomainResult struct {
	Score      float64    `json:"score"`
	Assessment Assessment `json:"assessment"`
	Summary    string     `json:"summary"`
	KeyPoints  []string   `json:"key_points"`
	// Metrics are the named readings the key points derive from, kept
	// structured so consumers need not parse sentences.
	Metrics []Metric `json:"metrics,omitempty"`
}

// NewDomainResult builds a DomainResult with the assessment derived from the
// score and the key-point list truncated to MaxKeyPoints.
func NewDomainResult(score float64, summary string, keyPoints []string) DomainResult {
	if len(keyPoints) > MaxKeyPoints {
		keyPoints = keyPoints[:MaxKeyPoints]
	}
	return DomainResult{
		Score:      score,
		Assessment: AssessmentForScore(score),
		Summary:    summary,
		KeyPoints:  keyPoints,
	}
}

// NeutralDomainResult is the degraded-but-complete substitute used when a
// non-fatal domain fails: score 50, neutral assessment, generic findings.
func NeutralDomainResult(domain string) DomainResult {
	return DomainResult{
		Score:      50,
		Assessment: AssessmentNeutral,
		Summary:    "Analysis unavailable, neutral default applied",
		KeyPoints: []string{
			domain + " data could not be retrieved",
			"Neutral score substituted for this domain",
			"Manual verification recommended",
		},
	}
}

// Report is the finalized output of one analysis run. It is created once per
// AnalysisRequest and never updated in place after the single persistence
// write; re-analysis of the same token produces a logically new report.
type Report struct {
	TokenTicker     string     `json:"token_ticker"`
	ContractAddress string     `json:"contract_address"`
	Chain           Chain      `json:"chain"`
	FinalScore      float64    `json:"final_score"`
	FinalAssessment Assessment `json:"final_assessment"`
	Timestamp       time.Time  `json:"timestamp"`

	MarketPosition  DomainResult `json:"market_position"`
	SocialSentiment DomainResult `json:"social_sentiment"`
	HolderAnalysis  DomainResult `json:"holder_analysis"`
	TokenSafety     DomainResult `json:"token_safety"`

	// Summary is the narrative text rendered from the structured results.
	// It never feeds back into any score.
	Summary string `json:"summary,omitempty"`
}

// Complete reports whether every required domain carries a result. An
// incomplete report must never be persisted.
func (r *Report) Complete() error {
	if r.ContractAddress == "" {
		return eris.New("model: report missing contract address")
	}
	for _, d := range []struct {
		name   string
		result DomainResult
	}{
		{"market_position", r.MarketPosition},
		{"social_sentiment", r.SocialSentiment},
		{"holder_analysis", r.HolderAnalysis},
		{"token_safety", r.TokenSafety},
	} {
		if d.result.Assessment == "" {
			return eris.Errorf("model: report missing domain %s", d.name)
		}
	}
	return nil
}

// Token is a registry entry for an analyzed token.
type Token struct {
	ContractAddress string    `json:"contract_address"`
	Name            string    `json:"name"`
	Ticker          string    `json:"ticker"`
	AnalysisExists  bool      `json:"analysis_exists"`
	CreatedAt       time.Time `json:"created_at"`
}
