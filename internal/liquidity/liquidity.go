// Package liquidity grades a token's liquidity quality from price-impact
// curves across its trading pairs.
package liquidity

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/go-arlo/go-arlo-swarm/internal/classify"
)

// StandardTradeSizes are the notional sizes the impact curve is averaged
// over.
var StandardTradeSizes = []float64{1_000, 10_000, 100_000}

// CurveSample is one point on a pair's price-impact curve.
type CurveSample struct {
	TradeSizeUSD float64 `json:"trade_size_usd"`
	ImpactPct    float64 `json:"impact_pct"`
}

// PairCurve is the impact curve for one trading pair, weighted by the pair's
// share of total liquidity.
type PairCurve struct {
	PairID       string        `json:"pair_id"`
	Exchange     string        `json:"exchange"`
	LiquidityUSD float64       `json:"liquidity_usd"`
	Volume24hUSD float64       `json:"volume_24h_usd"`
	Samples      []CurveSample `json:"samples"`
}

// Snapshot is the liquidity input for one token: the current curves plus the
// curves from 24 hours earlier for delta computation.
type Snapshot struct {
	Pairs      []PairCurve `json:"pairs"`
	PriorPairs []PairCurve `json:"prior_pairs"`
	// ExitCurve maps withdrawal sizes to impact for chains exposing
	// exit-liquidity depth; empty when unsupported.
	ExitCurve []CurveSample `json:"exit_curve,omitempty"`
}

// Result is the graded liquidity signal.
type Result struct {
	AvgImpactPct float64       `json:"avg_impact_pct"`
	Tier         classify.Tier `json:"tier"`
	Delta24h     float64       `json:"delta_24h"`

	// Depth context used for key points.
	TotalLiquidityUSD float64 `json:"total_liquidity_usd"`
	VenueCount        int     `json:"venue_count"`
	VolumeRatio       float64 `json:"volume_ratio"`

	// Exit liquidity, present only when the chain exposes depth data.
	ExitLiquidityUSD float64        `json:"exit_liquidity_usd,omitempty"`
	ExitCapacity     *classify.Tier `json:"exit_capacity,omitempty"`
}

// MaxExitImpactPct is the impact ceiling used when sizing exit liquidity.
const MaxExitImpactPct = 3.0

// Grade computes the liquidity quality tier from the snapshot. Pairs are
// weighted by their share of total liquidity; the averaged impact is
// classified into the price-impact tiers and the 24h delta is reported
// signed.
func Grade(snap Snapshot) (Result, error) {
	if len(snap.Pairs) == 0 {
		return Result{}, eris.New("liquidity: no trading pairs in snapshot")
	}

	avg, err := weightedAvgImpact(snap.Pairs)
	if err != nil {
		return Result{}, err
	}

	res := Result{AvgImpactPct: avg}

	tier, err := classify.Classify(avg, classify.PriceImpact)
	if err != nil {
		return Result{}, eris.Wrap(err, "liquidity: classify impact")
	}
	res.Tier = tier

	if len(snap.PriorPairs) > 0 {
		prior, err := weightedAvgImpact(snap.PriorPairs)
		if err == nil {
			res.Delta24h = avg - prior
		}
	}

	venues := make(map[string]struct{})
	var totalVolume float64
	for _, p := range snap.Pairs {
		res.TotalLiquidityUSD += p.LiquidityUSD
		totalVolume += p.Volume24hUSD
		if p.Exchange != "" {
			venues[p.Exchange] = struct{}{}
		}
	}
	res.VenueCount = len(venues)
	if res.TotalLiquidityUSD > 0 {
		res.VolumeRatio = totalVolume / res.TotalLiquidityUSD
	}

	if len(snap.ExitCurve) > 0 {
		exit := exitLiquidity(snap.ExitCurve)
		cap, err := classify.Classify(exit, classify.ExitCapacity)
		if err != nil {
			return Result{}, eris.Wrap(err, "liquidity: classify exit capacity")
		}
		res.ExitLiquidityUSD = exit
		res.ExitCapacity = &cap
	}

	return res, nil
}

// weightedAvgImpact averages each pair's curve over the standard trade sizes
// and combines pairs weighted by liquidity share. Samples with malformed
// values are skipped; a pair with no valid samples contributes nothing.
func weightedAvgImpact(pairs []PairCurve) (float64, error) {
	var totalLiq float64
	for _, p := range pairs {
		if p.LiquidityUSD > 0 {
			totalLiq += p.LiquidityUSD
		}
	}

	var weighted, weightSum float64
	for _, p := range pairs {
		avg, ok := pairAvgImpact(p)
		if !ok {
			continue
		}
		w := 1.0
		if totalLiq > 0 {
			w = p.LiquidityUSD / totalLiq
		}
		weighted += avg * w
		weightSum += w
	}

	if weightSum == 0 {
		return 0, eris.New("liquidity: no usable impact samples")
	}
	return weighted / weightSum, nil
}

// pairAvgImpact averages a pair's sampled impact at the standard trade
// sizes, interpolating between samples when an exact size is missing.
func pairAvgImpact(p PairCurve) (float64, bool) {
	samples := make([]CurveSample, 0, len(p.Samples))
	for _, s := range p.Samples {
		if math.IsNaN(s.ImpactPct) || math.IsInf(s.ImpactPct, 0) || s.ImpactPct < 0 || s.TradeSizeUSD <= 0 {
			continue
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return 0, false
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].TradeSizeUSD < samples[j].TradeSizeUSD })

	var sum float64
	for _, size := range StandardTradeSizes {
		sum += impactAt(samples, size)
	}
	return sum / float64(len(StandardTradeSizes)), true
}

// impactAt linearly interpolates the impact at the given trade size,
// clamping to the curve's endpoints.
func impactAt(sorted []CurveSample, size float64) float64 {
	if size <= sorted[0].TradeSizeUSD {
		return sorted[0].ImpactPct
	}
	last := sorted[len(sorted)-1]
	if size >= last.TradeSizeUSD {
		return last.ImpactPct
	}
	for i := 1; i < len(sorted); i++ {
		if size <= sorted[i].TradeSizeUSD {
			lo, hi := sorted[i-1], sorted[i]
			frac := (size - lo.TradeSizeUSD) / (hi.TradeSizeUSD - lo.TradeSizeUSD)
			return lo.ImpactPct + frac*(hi.ImpactPct-lo.ImpactPct)
		}
	}
	return last.ImpactPct
}

// exitLiquidity finds the largest withdrawal whose impact stays at or below
// MaxExitImpactPct, interpolating along the exit curve.
func exitLiquidity(curve []CurveSample) float64 {
	sorted := make([]CurveSample, 0, len(curve))
	for _, s := range curve {
		if s.TradeSizeUSD > 0 && !math.IsNaN(s.ImpactPct) && !math.IsInf(s.ImpactPct, 0) {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TradeSizeUSD < sorted[j].TradeSizeUSD })

	var best float64
	for i, s := range sorted {
		if s.ImpactPct <= MaxExitImpactPct {
			best = s.TradeSizeUSD
			continue
		}
		// Interpolate between the last acceptable sample and this one.
		if i > 0 && sorted[i-1].ImpactPct < s.ImpactPct {
			prev := sorted[i-1]
			frac := (MaxExitImpactPct - prev.ImpactPct) / (s.ImpactPct - prev.ImpactPct)
			if frac > 0 && frac < 1 {
				best = prev.TradeSizeUSD + frac*(s.TradeSizeUSD-prev.TradeSizeUSD)
			}
		}
		break
	}
	return best
}

// ConstantProductImpact estimates buy-side price impact for a pool using the
// constant product formula. Used as a fallback when no sampled curve is
// available for a pair.
func ConstantProductImpact(poolLiquidityUSD, tradeSizeUSD float64) float64 {
	if poolLiquidityUSD <= 0 {
		return 100
	}
	x := poolLiquidityUSD / 2
	impact := (x/(x+tradeSizeUSD) - 1) * -100
	return math.Min(impact, 100)
}
