package technical

import (
	"go.uber.org/zap"
)

// Config tunes the synthesizer.
type Config struct {
	// FibProximityPct is the tolerance for the nearest-retracement search.
	FibProximityPct float64
}

// Result carries the three timeframe group records.
type Result struct {
	Momentum MomentumGroup `json:"momentum"`
	DayTrade DayTradeGroup `json:"day_trade"`
	Swing    SwingGroup    `json:"swing"`
}

// Directions returns the directional reading of each available group, in
// fixed momentum/day/swing order. Unavailable groups are excluded entirely
// rather than counted as neutral.
func (r Result) Directions() []Direction {
	var out []Direction
	if r.Momentum.Available() {
		out = append(out, r.Momentum.Direction())
	}
	if r.DayTrade.Available() {
		out = append(out, r.DayTrade.Direction())
	}
	if r.Swing.Available() {
		out = append(out, r.Swing.Direction())
	}
	return out
}

// Synthesize computes all three indicator groups from the series. Short
// history degrades gracefully: each indicator that cannot resolve is marked
// missing in its group instead of contributing a fabricated value.
func Synthesize(candles []Candle, cfg Config) Result {
	res := Result{
		Momentum: momentumGroup(candles),
		DayTrade: dayTradeGroup(candles),
		Swing:    swingGroup(candles, cfg.FibProximityPct),
	}

	missing := len(res.Momentum.Missing) + len(res.DayTrade.Missing) + len(res.Swing.Missing)
	if missing > 0 {
		zap.L().Debug("technical: indicators skipped for insufficient history",
			zap.Int("candles", len(candles)),
			zap.Strings("momentum", res.Momentum.Missing),
			zap.Strings("day_trade", res.DayTrade.Missing),
			zap.Strings("swing", res.Swing.Missing),
		)
	}
	return res
}
