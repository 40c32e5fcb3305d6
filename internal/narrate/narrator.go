package narrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/pkg/narrative"
)

// maxSummaryLen bounds the narrative stored on a report. Anything past it is
// cut at the limit.
const maxSummaryLen = 4000

const systemPrompt = `You are a crypto research analyst writing the summary
paragraph of a token report. You are given the finished, scored analysis as
structured data. Restate its findings in plain prose for a trader deciding
whether to look closer. Do not introduce facts that are not in the data, do
not change any score or assessment, and do not give financial advice. Answer
with the summary paragraph only.`

// Generator renders a report's structured results into a narrative summary.
type Generator struct {
	client      narrative.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewGenerator creates a Generator that narrates with the given model.
func NewGenerator(client narrative.Client, modelID string) *Generator {
	return &Generator{
		client:      client,
		model:       modelID,
		maxTokens:   1024,
		temperature: 0.3,
	}
}

// Narrate produces the summary text for a finished report. The text is
// presentation only; callers must never feed it back into scoring.
func (g *Generator) Narrate(ctx context.Context, r *model.Report) (string, error) {
	if r == nil {
		return "", eris.New("narrate: nil report")
	}

	temp := g.temperature
	resp, err := g.client.CreateMessage(ctx, narrative.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      systemPrompt,
		Messages:    []narrative.Message{{Role: "user", Content: buildPrompt(r)}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "narrate: generate summary")
	}
	resp.Usage.LogUsage(g.model, "narrative")

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", eris.New("narrate: model returned no text")
	}
	if len(text) > maxSummaryLen {
		text = text[:maxSummaryLen]
	}
	return text, nil
}

func buildPrompt(r *model.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Token: %s (%s on %s)\n", r.TokenTicker, r.ContractAddress, r.Chain)
	fmt.Fprintf(&sb, "Final score: %.1f/100 (%s)\n\n", r.FinalScore, r.FinalAssessment)

	writeDomain(&sb, "Market position", r.MarketPosition)
	writeDomain(&sb, "Social sentiment", r.SocialSentiment)
	writeDomain(&sb, "Holder analysis", r.HolderAnalysis)
	writeDomain(&sb, "Token safety", r.TokenSafety)

	return sb.String()
}

func writeDomain(sb *strings.Builder, name string, d model.DomainResult) {
	fmt.Fprintf(sb, "%s: %.1f/100 (%s) - %s\n", name, d.Score, d.Assessment, d.Summary)
	for _, p := range d.KeyPoints {
		fmt.Fprintf(sb, "  - %s\n", p)
	}
	sb.WriteString("\n")
}
