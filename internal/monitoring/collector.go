// Package monitoring aggregates persisted reports into operational
// metrics for the /metrics endpoint and the reports status command.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

// MetricsSnapshot holds a point-in-time view of analysis output.
type MetricsSnapshot struct {
	// Report counts within the lookback window.
	ReportsTotal    int `json:"reports_total"`
	ReportsPositive int `json:"reports_positive"`
	ReportsNeutral  int `json:"reports_neutral"`
	ReportsNegative int `json:"reports_negative"`

	// Score statistics.
	AvgFinalScore float64 `json:"avg_final_score"`
	MinFinalScore float64 `json:"min_final_score"`
	MaxFinalScore float64 `json:"max_final_score"`

	// Per-chain report counts.
	ByChain map[string]int `json:"by_chain"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the report store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window. A lookback
// of zero covers all persisted reports.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		ByChain:       make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	reports, err := c.store.ListReports(ctx, store.ReportFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list reports")
	}

	var cutoff time.Time
	if lookbackHours > 0 {
		cutoff = time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	}

	var total float64
	for _, r := range reports {
		if !cutoff.IsZero() && r.Timestamp.Before(cutoff) {
			continue
		}
		snap.ReportsTotal++
		switch r.FinalAssessment {
		case model.AssessmentPositive:
			snap.ReportsPositive++
		case model.AssessmentNeutral:
			snap.ReportsNeutral++
		case model.AssessmentNegative:
			snap.ReportsNegative++
		}
		snap.ByChain[string(r.Chain)]++

		total += r.FinalScore
		if snap.ReportsTotal == 1 || r.FinalScore < snap.MinFinalScore {
			snap.MinFinalScore = r.FinalScore
		}
		if r.FinalScore > snap.MaxFinalScore {
			snap.MaxFinalScore = r.FinalScore
		}
	}

	if snap.ReportsTotal > 0 {
		snap.AvgFinalScore = total / float64(snap.ReportsTotal)
	}
	return snap, nil
}
