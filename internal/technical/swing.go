package technical

import (
	"math"

	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

const (
	emaFastPeriod  = 50
	emaSlowPeriod  = 200
	macdFastPeriod = 12
	macdSlowPeriod = 26
	macdSignalSpan = 9
	atrPeriod      = 14

	// fibTolerancePct is the default proximity (percent of price) within
	// which a retracement level counts as "near".
	fibTolerancePct = 2.0
)

// fibRatios are the standard retracement ratios.
var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// CrossState describes the EMA(50)/EMA(200) relationship.
type CrossState string

const (
	// CrossBullish marks a fresh golden cross on the latest period.
	CrossBullish CrossState = "bullish"
	// CrossBearish marks a fresh death cross on the latest period.
	CrossBearish CrossState = "bearish"
	// CrossNeutral is continuation of the prior state.
	CrossNeutral CrossState = "neutral"
)

// EMACrossValue holds the moving-average crossover reading.
type EMACrossValue struct {
	Fast  float64    `json:"fast"`
	Slow  float64    `json:"slow"`
	State CrossState `json:"state"`
	// FastAbove is the standing relationship regardless of a fresh cross.
	FastAbove bool `json:"fast_above"`
}

// MACDValue relates the MACD line to its signal line.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// FibLevel is the retracement level nearest to the current price within the
// proximity tolerance.
type FibLevel struct {
	Ratio       float64 `json:"ratio"`
	Price       float64 `json:"price"`
	DistancePct float64 `json:"distance_pct"`
}

// SwingGroup is the swing-timeframe indicator record.
type SwingGroup struct {
	EMACross *EMACrossValue `json:"ema_cross,omitempty"`
	MACD     *MACDValue     `json:"macd,omitempty"`
	ATR      *float64       `json:"atr,omitempty"`
	NearFib  *FibLevel      `json:"near_fib,omitempty"`
	Missing  []string       `json:"missing,omitempty"`
}

// Direction reads the group: fast EMA above slow and MACD above signal each
// vote bullish.
func (g SwingGroup) Direction() Direction {
	var votes []Direction
	if g.EMACross != nil {
		if g.EMACross.FastAbove {
			votes = append(votes, Bullish)
		} else {
			votes = append(votes, Bearish)
		}
	}
	if g.MACD != nil {
		if g.MACD.Histogram > 0 {
			votes = append(votes, Bullish)
		} else if g.MACD.Histogram < 0 {
			votes = append(votes, Bearish)
		}
	}
	return voteDirection(votes)
}

// Available reports whether any swing indicator resolved.
func (g SwingGroup) Available() bool {
	return g.EMACross != nil || g.MACD != nil || g.ATR != nil || g.NearFib != nil
}

func swingGroup(candles []Candle, fibTolerance float64) SwingGroup {
	var g SwingGroup

	if ec, err := EMACross(candles, emaFastPeriod, emaSlowPeriod); err == nil {
		g.EMACross = ec
	} else {
		g.Missing = append(g.Missing, "ema_cross")
	}

	if m, err := MACD(candles, macdFastPeriod, macdSlowPeriod, macdSignalSpan); err == nil {
		g.MACD = m
	} else {
		g.Missing = append(g.Missing, "macd")
	}

	if atr, err := ATR(candles, atrPeriod); err == nil {
		g.ATR = &atr
	} else {
		g.Missing = append(g.Missing, "atr")
	}

	if fib, err := NearestFib(candles, fibTolerance); err == nil {
		g.NearFib = fib
	} else if !resilience.IsInsufficientHistory(err) {
		// No level within tolerance is a valid absence, not missing data.
	} else {
		g.Missing = append(g.Missing, "fibonacci")
	}

	return g
}

// EMACross computes the EMA(fast)/EMA(slow) relationship. A fresh cross on
// the latest period reads bullish or bearish; otherwise the state is a
// neutral continuation of the standing relationship.
func EMACross(candles []Candle, fast, slow int) (*EMACrossValue, error) {
	if len(candles) < slow+1 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "ema_cross", Need: slow + 1, Have: len(candles)}
	}

	c := closes(candles)
	fastSeries := emaSeries(c, fast)
	slowSeries := emaSeries(c, slow)

	curFast, curSlow := fastSeries[len(fastSeries)-1], slowSeries[len(slowSeries)-1]
	prevFast, prevSlow := fastSeries[len(fastSeries)-2], slowSeries[len(slowSeries)-2]

	state := CrossNeutral
	if curFast > curSlow && prevFast <= prevSlow {
		state = CrossBullish
	} else if curFast < curSlow && prevFast >= prevSlow {
		state = CrossBearish
	}

	return &EMACrossValue{
		Fast:      curFast,
		Slow:      curSlow,
		State:     state,
		FastAbove: curFast > curSlow,
	}, nil
}

// MACD computes the MACD line (EMA fast minus EMA slow), its signal line,
// and the histogram.
func MACD(candles []Candle, fast, slow, signalSpan int) (*MACDValue, error) {
	need := slow + signalSpan
	if len(candles) < need {
		return nil, &resilience.InsufficientHistoryError{Indicator: "macd", Need: need, Have: len(candles)}
	}

	c := closes(candles)
	fastSeries := emaSeries(c, fast)
	slowSeries := emaSeries(c, slow)

	// Align the two series on their tails and build the MACD line series.
	n := len(slowSeries)
	line := make([]float64, n)
	offset := len(fastSeries) - n
	for i := 0; i < n; i++ {
		line[i] = fastSeries[offset+i] - slowSeries[i]
	}

	signalSeries := emaSeries(line, signalSpan)
	if len(signalSeries) == 0 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "macd", Need: need, Have: len(candles)}
	}

	cur := line[len(line)-1]
	sig := signalSeries[len(signalSeries)-1]
	return &MACDValue{Line: cur, Signal: sig, Histogram: cur - sig}, nil
}

// ATR computes the average true range with Wilder smoothing.
func ATR(candles []Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, &resilience.InsufficientHistoryError{Indicator: "atr", Need: period + 1, Have: len(candles)}
	}

	trueRange := func(i int) float64 {
		c := candles[i]
		prevClose := candles[i-1].Close
		return math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}

	var atr float64
	for i := 1; i <= period; i++ {
		atr += trueRange(i)
	}
	atr /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRange(i)) / float64(period)
	}
	return atr, nil
}

// NearestFib finds the retracement level of the series' swing range closest
// to the current price, if one lies within tolerancePct of the price.
func NearestFib(candles []Candle, tolerancePct float64) (*FibLevel, error) {
	if len(candles) < 2 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "fibonacci", Need: 2, Have: len(candles)}
	}
	if tolerancePct <= 0 {
		tolerancePct = fibTolerancePct
	}

	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	price := candles[len(candles)-1].Close
	if hi == lo || price <= 0 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "fibonacci", Need: 2, Have: len(candles)}
	}

	var best *FibLevel
	for _, ratio := range fibRatios {
		level := hi - (hi-lo)*ratio
		dist := math.Abs(price-level) / price * 100
		if dist > tolerancePct {
			continue
		}
		if best == nil || dist < best.DistancePct {
			best = &FibLevel{Ratio: ratio, Price: level, DistancePct: dist}
		}
	}
	if best == nil {
		return nil, errNoFibNearby
	}
	return best, nil
}

var errNoFibNearby = noFibError{}

type noFibError struct{}

func (noFibError) Error() string { return "no retracement level within tolerance" }
