// Package technical computes multi-timeframe indicator groups from an OHLCV
// series. Each group is a small structured record rather than a single
// score; indicators that lack enough history report that state explicitly
// instead of fabricating a value.
package technical

import "time"

// Candle is one OHLCV period.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Direction is the directional reading of an indicator group.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

func closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// emaSeries computes the exponential moving average over values, seeding
// with the SMA of the first period values. The returned series has
// len(values)-period+1 points.
func emaSeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	ema := seed / float64(period)
	out = append(out, ema)

	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// voteDirection tallies directional votes, ignoring neutral ones. Ties and
// empty tallies read neutral.
func voteDirection(votes []Direction) Direction {
	var bull, bear int
	for _, v := range votes {
		switch v {
		case Bullish:
			bull++
		case Bearish:
			bear++
		}
	}
	switch {
	case bull > bear:
		return Bullish
	case bear > bull:
		return Bearish
	default:
		return Neutral
	}
}
