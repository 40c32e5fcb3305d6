package scorer

import (
	"fmt"

	"github.com/go-arlo/go-arlo-swarm/internal/model"
)

// ControlStatus grades one safety dimension of a contract.
type ControlStatus string

const (
	ControlPositive ControlStatus = "positive"
	ControlNeutral  ControlStatus = "neutral"
	ControlNegative ControlStatus = "negative"
)

// Concentration labels how token supply is spread across holders.
type Concentration string

const (
	ConcentrationBalanced Concentration = "well-balanced"
	ConcentrationModerate Concentration = "moderately concentrated"
	ConcentrationHigh     Concentration = "highly concentrated"
)

// SecuritySnapshot is the safety provider's structured output.
type SecuritySnapshot struct {
	// ContractControl grades mint/freeze/upgrade authority state.
	ContractControl ControlStatus `json:"contract_control"`
	// HolderControl grades whether dominant holders can move the market
	// unilaterally.
	HolderControl ControlStatus `json:"holder_control"`
	Concentration Concentration `json:"concentration"`

	// Supporting metrics for key points.
	Top10HoldersPct float64 `json:"top10_holders_pct"`
	CreatorPct      float64 `json:"creator_pct"`
	MintRenounced   bool    `json:"mint_renounced"`
	FreezeRenounced bool    `json:"freeze_renounced"`
}

// SafetyScores holds the two domain results the safety snapshot produces:
// contract security and holder distribution.
type SafetyScores struct {
	Security     model.DomainResult
	Distribution model.DomainResult
}

// ScoreSafety grades the security snapshot. Contract and holder control
// combine into the security score; concentration alone drives the
// distribution score.
func ScoreSafety(snap SecuritySnapshot) SafetyScores {
	return SafetyScores{
		Security:     scoreSecurity(snap),
		Distribution: scoreDistribution(snap),
	}
}

func scoreSecurity(snap SecuritySnapshot) model.DomainResult {
	var score float64
	switch {
	case snap.ContractControl == ControlPositive && snap.HolderControl == ControlPositive:
		score = 95
	case snap.ContractControl == ControlNegative && snap.HolderControl == ControlNegative:
		score = 50
	case snap.ContractControl == ControlNegative || snap.HolderControl == ControlNegative:
		score = 65
	default:
		score = 75
	}

	points := []string{
		controlSentence("Contract control", snap.ContractControl),
		controlSentence("Holder control", snap.HolderControl),
	}
	if snap.MintRenounced {
		points = append(points, "Mint authority renounced")
	} else {
		points = append(points, "Mint authority still active")
	}
	if snap.FreezeRenounced {
		points = append(points, "Freeze authority renounced")
	} else {
		points = append(points, "Freeze authority still active")
	}

	summary := "Token safety checks pass without major flags"
	if score < 70 {
		summary = "Token safety shows control risks requiring caution"
	}
	return model.NewDomainResult(score, summary, points)
}

func scoreDistribution(snap SecuritySnapshot) model.DomainResult {
	var score float64
	switch snap.Concentration {
	case ConcentrationBalanced:
		score = 95
	case ConcentrationModerate:
		score = 80
	default:
		score = 65
	}

	points := []string{
		fmt.Sprintf("Holder distribution is %s", snap.Concentration),
	}
	if snap.Top10HoldersPct > 0 {
		points = append(points, fmt.Sprintf("Top 10 holders control %.1f%% of supply", snap.Top10HoldersPct))
	}
	if snap.CreatorPct > 0 {
		points = append(points, fmt.Sprintf("Creator retains %.1f%% of supply", snap.CreatorPct))
	}

	summary := fmt.Sprintf("Holder base is %s", snap.Concentration)
	res := model.NewDomainResult(score, summary, points)
	res.Metrics = []model.Metric{
		{Name: "top10_holders", Value: snap.Top10HoldersPct, Unit: model.UnitPercent},
		{Name: "creator_supply", Value: snap.CreatorPct, Unit: model.UnitPercent},
	}
	return res
}

func controlSentence(prefix string, s ControlStatus) string {
	switch s {
	case ControlPositive:
		return prefix + " is sound"
	case ControlNegative:
		return prefix + " raises red flags"
	default:
		return prefix + " is acceptable with reservations"
	}
}
