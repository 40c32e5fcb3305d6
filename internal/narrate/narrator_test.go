package narrate

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/pkg/narrative"
)

type fakeClient struct {
	req  narrative.MessageRequest
	resp *narrative.MessageResponse
	err  error
}

func (f *fakeClient) CreateMessage(_ context.Context, req narrative.MessageRequest) (*narrative.MessageResponse, error) {
	f.req = req
	return f.resp, f.err
}

func testReport() *model.Report {
	r := &model.Report{
		TokenTicker:     "SOL",
		ContractAddress: "So11111111111111111111111111111111111111112",
		Chain:           model.ChainSolana,
		FinalScore:      85.0,
		FinalAssessment: model.AssessmentPositive,
		MarketPosition:  model.NewDomainResult(100, "Market structure supportive", []string{"Liquidity strong"}),
		SocialSentiment: model.NewDomainResult(50, "Sentiment mixed", []string{"Low engagement"}),
		HolderAnalysis:  model.NewDomainResult(95, "Distribution healthy", []string{"Top 10 hold 12%"}),
		TokenSafety:     model.NewDomainResult(95, "Contract controls sound", []string{"Mint renounced"}),
	}
	return r
}

func textResponse(text string) *narrative.MessageResponse {
	return &narrative.MessageResponse{
		Content: []narrative.ContentBlock{{Type: "text", Text: text}},
	}
}

func TestNarrate(t *testing.T) {
	fc := &fakeClient{resp: textResponse("  SOL looks structurally healthy with strong liquidity.  ")}
	g := NewGenerator(fc, "claude-sonnet-4-5-20250929")

	text, err := g.Narrate(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "SOL looks structurally healthy with strong liquidity.", text)

	assert.Equal(t, "claude-sonnet-4-5-20250929", fc.req.Model)
	require.Len(t, fc.req.Messages, 1)
	prompt := fc.req.Messages[0].Content
	assert.Contains(t, prompt, "Final score: 85.0/100 (positive)")
	assert.Contains(t, prompt, "Market position: 100.0/100")
	assert.Contains(t, prompt, "Top 10 hold 12%")
	require.NotNil(t, fc.req.Temperature)
	assert.InDelta(t, 0.3, *fc.req.Temperature, 1e-9)
}

func TestNarrate_TruncatesLongOutput(t *testing.T) {
	fc := &fakeClient{resp: textResponse(strings.Repeat("a", maxSummaryLen+500))}
	g := NewGenerator(fc, "m")

	text, err := g.Narrate(context.Background(), testReport())
	require.NoError(t, err)
	assert.Len(t, text, maxSummaryLen)
}

func TestNarrate_ClientError(t *testing.T) {
	fc := &fakeClient{err: eris.New("boom")}
	g := NewGenerator(fc, "m")

	_, err := g.Narrate(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate summary")
}

func TestNarrate_EmptyResponse(t *testing.T) {
	fc := &fakeClient{resp: &narrative.MessageResponse{
		Content: []narrative.ContentBlock{{Type: "thinking", Text: "hmm"}},
	}}
	g := NewGenerator(fc, "m")

	_, err := g.Narrate(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text")
}

func TestNarrate_NilReport(t *testing.T) {
	g := NewGenerator(&fakeClient{}, "m")
	_, err := g.Narrate(context.Background(), nil)
	require.Error(t, err)
}
