// Package scorer converts per-domain signals into 0-100 domain scores and
// combines them into the final weighted score. All output is deterministic:
// key points come from fixed sentence templates selected by tier.
package scorer

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/bundle"
	"github.com/go-arlo/go-arlo-swarm/internal/classify"
	"github.com/go-arlo/go-arlo-swarm/internal/liquidity"
	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/technical"
)

const (
	// marketBase is the floor every market score builds from.
	marketBase = 40.0
	// liquidityBudget and technicalBudget are the point budgets for the two
	// positive contributions.
	liquidityBudget = 30.0
	technicalBudget = 30.0
)

// PenaltyCurve maps bundle risk tiers to score multipliers and controls how
// liquidity quality modulates the penalty. The shape is tunable; only
// monotonicity in tier severity is contractual.
type PenaltyCurve struct {
	// Multipliers indexed by bundle tier severity.
	Multipliers [5]float64
	// StrongLiquidityRelief is the fraction of the penalty forgiven when
	// liquidity is strong (deep books absorb coordinated exits).
	StrongLiquidityRelief float64
	// LimitedLiquidityExtra scales the multiplier further down when
	// liquidity is limited.
	LimitedLiquidityExtra float64
}

// DefaultPenaltyCurve returns the production penalty shape.
func DefaultPenaltyCurve() PenaltyCurve {
	return PenaltyCurve{
		Multipliers:           [5]float64{1.0, 0.9, 0.75, 0.55, 0.35},
		StrongLiquidityRelief: 0.5,
		LimitedLiquidityExtra: 0.85,
	}
}

// Validate checks the curve is monotone non-increasing in tier severity.
func (p PenaltyCurve) Validate() error {
	prev := math.Inf(1)
	for i, m := range p.Multipliers {
		if m <= 0 || m > 1 {
			return errConfigf("scorer: penalty multiplier %d out of (0,1]: %v", i, m)
		}
		if m > prev {
			return errConfigf("scorer: penalty multipliers must not increase with severity")
		}
		prev = m
	}
	return nil
}

// multiplier resolves the penalty for a bundle tier under the given
// liquidity tier.
func (p PenaltyCurve) multiplier(bundleTier, liqTier classify.Tier) float64 {
	sev := bundleTier.Severity
	if sev < 0 {
		sev = 0
	}
	if sev >= len(p.Multipliers) {
		sev = len(p.Multipliers) - 1
	}
	m := p.Multipliers[sev]

	switch liqTier {
	case classify.ImpactStrongMinimal, classify.ImpactStrong:
		m += (1 - m) * p.StrongLiquidityRelief
	case classify.ImpactLimited:
		m *= p.LimitedLiquidityExtra
	}
	return m
}

// MarketScorer combines the bundle, liquidity, and technical signals into
// the market-position domain result.
type MarketScorer struct {
	Penalty PenaltyCurve
}

// NewMarketScorer returns a scorer with the default penalty curve.
func NewMarketScorer() *MarketScorer {
	return &MarketScorer{Penalty: DefaultPenaltyCurve()}
}

// Score produces the market DomainResult. A nil bundleRes means the chain
// does not support bundle detection; the signal is omitted entirely rather
// than defaulted.
func (s *MarketScorer) Score(bundleRes *bundle.Result, liq liquidity.Result, tech technical.Result) model.DomainResult {
	liqPoints := liquidityContribution(liq.Tier)

	score := marketBase + liqPoints

	dirs := tech.Directions()
	if len(dirs) > 0 {
		score += technicalContribution(dirs)
	} else {
		// No technical groups resolved: rescale so the missing budget does
		// not silently read as bearish.
		score = score * 100 / (100 - technicalBudget)
	}

	bundleActive := bundleRes != nil && bundleRes.Supported
	if bundleActive {
		m := s.Penalty.multiplier(bundleRes.Tier, liq.Tier)
		score *= m
		zap.L().Debug("scorer: bundle penalty applied",
			zap.String("bundle_tier", bundleRes.Tier.Label),
			zap.String("liquidity_tier", liq.Tier.Label),
			zap.Float64("multiplier", m),
		)
	}

	score = clamp(score, 0, 100)

	points := marketKeyPoints(bundleRes, liq, tech)
	summary := marketSummary(liq.Tier, dirs)

	res := model.NewDomainResult(score, summary, points)
	res.Metrics = marketMetrics(bundleRes, liq, tech)
	return res
}

// marketMetrics carries the numeric readings behind the key points.
func marketMetrics(bundleRes *bundle.Result, liq liquidity.Result, tech technical.Result) []model.Metric {
	metrics := []model.Metric{
		{Name: "avg_price_impact", Value: liq.AvgImpactPct, Unit: model.UnitPercent},
		{Name: "total_liquidity", Value: liq.TotalLiquidityUSD, Unit: model.UnitUSD},
		{Name: "venue_count", Value: float64(liq.VenueCount), Unit: model.UnitCount},
	}
	if bundleRes != nil && bundleRes.Supported {
		metrics = append(metrics, model.Metric{Name: "bundled_supply", Value: bundleRes.SupplyPct, Unit: model.UnitPercent})
	}
	if tech.Momentum.RSI != nil {
		metrics = append(metrics, model.Metric{Name: "rsi_14", Value: tech.Momentum.RSI.Value, Unit: model.UnitRatio})
	}
	return metrics
}

func liquidityContribution(tier classify.Tier) float64 {
	switch tier {
	case classify.ImpactStrongMinimal, classify.ImpactStrong:
		return liquidityBudget
	case classify.ImpactModerate:
		return liquidityBudget / 2
	default:
		return 0
	}
}

// technicalContribution scales directional agreement across the available
// timeframe groups into the technical point budget. Full bullish consensus
// earns the whole budget, full bearish consensus none, and mixed readings
// land in between.
func technicalContribution(dirs []technical.Direction) float64 {
	var net float64
	for _, d := range dirs {
		switch d {
		case technical.Bullish:
			net++
		case technical.Bearish:
			net--
		}
	}
	frac := (net/float64(len(dirs)) + 1) / 2
	return technicalBudget * frac
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// marketKeyPoints renders the deterministic key points in fixed order:
// bundle (when supported), momentum, day trading, swing, liquidity.
func marketKeyPoints(bundleRes *bundle.Result, liq liquidity.Result, tech technical.Result) []string {
	var points []string

	if bundleRes != nil && bundleRes.Supported {
		points = append(points, bundleSentence(*bundleRes))
	}
	points = append(points,
		momentumSentence(tech.Momentum),
		dayTradeSentence(tech.DayTrade),
		swingSentence(tech.Swing),
		liquiditySentence(liq),
	)
	return points
}

func bundleSentence(b bundle.Result) string {
	switch b.Tier {
	case classify.BundleNotSignificant:
		return "No significant bundle buying detected at launch"
	case classify.BundleModerate:
		return fmt.Sprintf("Moderate bundle buying at launch (%.2f%% of supply)", b.SupplyPct)
	case classify.BundleConsiderable:
		return fmt.Sprintf("Sizeable bundle buying at launch (%.2f%% of supply)", b.SupplyPct)
	case classify.BundleHigh:
		return fmt.Sprintf("Large-scale bundle buying at launch (%.2f%% of supply)", b.SupplyPct)
	default:
		return fmt.Sprintf("Massive bundle buying at launch (%.2f%% of supply)", b.SupplyPct)
	}
}

func momentumSentence(g technical.MomentumGroup) string {
	if !g.Available() {
		return "Momentum indicators unavailable on current history"
	}
	if g.RSI != nil {
		switch g.RSI.Tier {
		case classify.RSIOverbought:
			return fmt.Sprintf("Overbought conditions (RSI %.1f)", g.RSI.Value)
		case classify.RSIOversold:
			return fmt.Sprintf("Oversold conditions (RSI %.1f)", g.RSI.Value)
		}
		if g.Bollinger != nil && g.Bollinger.Squeeze {
			return fmt.Sprintf("Balanced momentum (RSI %.1f) with volatility contraction", g.RSI.Value)
		}
		return fmt.Sprintf("Balanced momentum (RSI %.1f)", g.RSI.Value)
	}
	return "Momentum reading " + string(g.Direction())
}

func dayTradeSentence(g technical.DayTradeGroup) string {
	if !g.Available() {
		return "Intraday indicators unavailable on current history"
	}
	if g.VWAP != nil {
		if g.VWAP.MinimalAlignment {
			return "Price shows minimal alignment with VWAP"
		}
		term := "premium"
		p := g.VWAP.PremiumPct
		if p < 0 {
			term = "discount"
			p = -p
		}
		return fmt.Sprintf("Price trades at %.2f%% %s to VWAP", p, term)
	}
	if g.CMF != nil && g.CMF.Accumulation {
		return "Money flow indicates accumulation"
	}
	return "Money flow indicates distribution"
}

func swingSentence(g technical.SwingGroup) string {
	if !g.Available() {
		return "Swing indicators unavailable on current history"
	}
	if g.EMACross != nil {
		switch g.EMACross.State {
		case technical.CrossBullish:
			return "Fresh bullish EMA crossover on the swing timeframe"
		case technical.CrossBearish:
			return "Fresh bearish EMA crossover on the swing timeframe"
		}
		if g.EMACross.FastAbove {
			return "Swing trend intact with EMA50 above EMA200"
		}
		return "Swing trend weak with EMA50 below EMA200"
	}
	return "Swing reading " + string(g.Direction())
}

func liquiditySentence(liq liquidity.Result) string {
	switch liq.Tier {
	case classify.ImpactStrongMinimal:
		return "Minimal price impact indicating exceptional liquidity depth"
	case classify.ImpactStrong:
		return fmt.Sprintf("Strong liquidity with %.2f%% average price impact", liq.AvgImpactPct)
	case classify.ImpactModerate:
		return fmt.Sprintf("Moderate liquidity requiring careful position sizing (%.2f%% impact)", liq.AvgImpactPct)
	default:
		return fmt.Sprintf("Limited liquidity presenting significant trading risk (%.2f%% impact)", liq.AvgImpactPct)
	}
}

func marketSummary(liqTier classify.Tier, dirs []technical.Direction) string {
	trend := "mixed technical signals"
	switch voteOf(dirs) {
	case technical.Bullish:
		trend = "bullish technical alignment"
	case technical.Bearish:
		trend = "bearish technical alignment"
	}
	return fmt.Sprintf("Market position: %s liquidity with %s", liqTier.Label, trend)
}

func voteOf(dirs []technical.Direction) technical.Direction {
	var bull, bear int
	for _, d := range dirs {
		switch d {
		case technical.Bullish:
			bull++
		case technical.Bearish:
			bear++
		}
	}
	switch {
	case bull > bear:
		return technical.Bullish
	case bear > bull:
		return technical.Bearish
	default:
		return technical.Neutral
	}
}
