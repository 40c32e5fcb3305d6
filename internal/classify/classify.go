// Package classify centralizes every numeric threshold the analysis engine
// relies on. Each threshold table maps a raw metric to exactly one discrete
// tier, so tier boundaries are defined once and tested in isolation.
package classify

import (
	"math"

	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

// Tier is one discrete classification level. Severity orders tiers within a
// table: higher severity means a worse (or more extreme) signal.
type Tier struct {
	Label    string
	Severity int
}

// Band pairs a half-open upper bound with the tier assigned below it. A
// value v falls in the band when v < Upper; the final band of a table is
// unbounded.
type Band struct {
	Upper float64
	Tier  Tier
}

// Table is an ordered list of bands covering [min, +inf). Tables are total:
// every valid input maps to exactly one tier.
type Table struct {
	Name string
	// NonNegative rejects negative inputs (percentage and count tables).
	NonNegative bool
	Bands       []Band
	// Top is the tier for values at or above the last band's upper bound.
	Top Tier
}

// Validate checks the table's bands are strictly increasing and severities
// are monotone. A malformed table is a configuration error.
func (t Table) Validate() error {
	if len(t.Bands) == 0 {
		return resilience.NewConfigurationError("classify: table %s has no bands", t.Name)
	}
	prev := math.Inf(-1)
	for i, b := range t.Bands {
		if b.Upper <= prev {
			return resilience.NewConfigurationError(
				"classify: table %s band %d upper %v not increasing", t.Name, i, b.Upper)
		}
		prev = b.Upper
	}
	return nil
}

// Classify maps value to its tier. It is total over valid input; NaN, Inf,
// and (for non-negative tables) negative values produce an
// InvalidMetricError.
func Classify(value float64, t Table) (Tier, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Tier{}, &resilience.InvalidMetricError{Metric: t.Name, Value: value}
	}
	if t.NonNegative && value < 0 {
		return Tier{}, &resilience.InvalidMetricError{Metric: t.Name, Value: value}
	}
	for _, b := range t.Bands {
		if value < b.Upper {
			return b.Tier, nil
		}
	}
	return t.Top, nil
}

// Bundle risk tiers over bundled supply percentage.
var (
	BundleNotSignificant = Tier{Label: "not_significant", Severity: 0}
	BundleModerate       = Tier{Label: "moderate", Severity: 1}
	BundleConsiderable   = Tier{Label: "considerable", Severity: 2}
	BundleHigh           = Tier{Label: "high", Severity: 3}
	BundleVeryHigh       = Tier{Label: "very_high", Severity: 4}
)

// BundleRisk classifies the percentage of supply bought in the top launch
// bundles: <1% not significant, 1-5% moderate, 5-10% considerable, 10-25%
// high, >=25% very high.
var BundleRisk = Table{
	Name:        "bundled_supply_pct",
	NonNegative: true,
	Bands: []Band{
		{Upper: 1, Tier: BundleNotSignificant},
		{Upper: 5, Tier: BundleModerate},
		{Upper: 10, Tier: BundleConsiderable},
		{Upper: 25, Tier: BundleHigh},
	},
	Top: BundleVeryHigh,
}

// Liquidity quality tiers over average price impact percentage.
var (
	ImpactStrongMinimal = Tier{Label: "strong_minimal", Severity: 0}
	ImpactStrong        = Tier{Label: "strong", Severity: 1}
	ImpactModerate      = Tier{Label: "moderate", Severity: 2}
	ImpactLimited       = Tier{Label: "limited", Severity: 3}
)

// PriceImpact classifies averaged price impact: <0.01% exceptional depth,
// [0.01,1)% strong, [1,3)% moderate, >=3% limited.
var PriceImpact = Table{
	Name:        "avg_price_impact_pct",
	NonNegative: true,
	Bands: []Band{
		{Upper: 0.01, Tier: ImpactStrongMinimal},
		{Upper: 1, Tier: ImpactStrong},
		{Upper: 3, Tier: ImpactModerate},
	},
	Top: ImpactLimited,
}

// Exit-liquidity capacity tiers over withdrawable USD.
var (
	CapacityRetail        = Tier{Label: "retail", Severity: 0}
	CapacityMid           = Tier{Label: "mid", Severity: 1}
	CapacityInstitutional = Tier{Label: "institutional", Severity: 2}
)

// ExitCapacity classifies exit liquidity: <$50k retail, $50k-$1M mid,
// >=$1M institutional.
var ExitCapacity = Table{
	Name:        "exit_liquidity_usd",
	NonNegative: true,
	Bands: []Band{
		{Upper: 50_000, Tier: CapacityRetail},
		{Upper: 1_000_000, Tier: CapacityMid},
	},
	Top: CapacityInstitutional,
}

// RSI tiers. Oversold at or below 30, overbought above 70.
var (
	RSIOversold   = Tier{Label: "oversold", Severity: 0}
	RSINeutral    = Tier{Label: "neutral", Severity: 1}
	RSIOverbought = Tier{Label: "overbought", Severity: 2}
)

// ClassifyRSI maps an RSI reading to its band. RSI is bounded [0,100] so
// the half-open table shape does not apply; the 30/70 edges are inclusive
// per the standard reading.
func ClassifyRSI(rsi float64) (Tier, error) {
	if math.IsNaN(rsi) || math.IsInf(rsi, 0) || rsi < 0 || rsi > 100 {
		return Tier{}, &resilience.InvalidMetricError{Metric: "rsi", Value: rsi}
	}
	switch {
	case rsi <= 30:
		return RSIOversold, nil
	case rsi > 70:
		return RSIOverbought, nil
	default:
		return RSINeutral, nil
	}
}
