package technical

import (
	"math"

	"github.com/go-arlo/go-arlo-swarm/internal/classify"
	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

const (
	rsiPeriod        = 14
	stochPeriod      = 14
	stochSmoothing   = 3
	bollingerPeriod  = 20
	bollingerStdDevs = 2.0
	// squeezeLookback is how many band widths the rolling average covers
	// when flagging a volatility contraction.
	squeezeLookback = 20
)

// RSIValue is the relative strength index reading and its band.
type RSIValue struct {
	Value float64       `json:"value"`
	Tier  classify.Tier `json:"tier"`
}

// StochasticValue holds the stochastic oscillator's %K and %D lines.
type StochasticValue struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// BollingerValue holds the Bollinger band levels. Squeeze is set when the
// band width has contracted below its rolling average, a
// volatility-contraction signal.
type BollingerValue struct {
	Upper   float64 `json:"upper"`
	Middle  float64 `json:"middle"`
	Lower   float64 `json:"lower"`
	Width   float64 `json:"width"`
	Squeeze bool    `json:"squeeze"`
}

// MomentumGroup is the momentum-timeframe indicator record. Nil members
// lacked sufficient history; their names appear in Missing.
type MomentumGroup struct {
	RSI        *RSIValue        `json:"rsi,omitempty"`
	Stochastic *StochasticValue `json:"stochastic,omitempty"`
	Bollinger  *BollingerValue  `json:"bollinger,omitempty"`
	Missing    []string         `json:"missing,omitempty"`
}

// Direction reads the group: a mid-band RSI votes bullish while both
// extremes vote bearish (overextension either way precedes reversal), and
// %K above %D votes bullish.
func (g MomentumGroup) Direction() Direction {
	var votes []Direction
	if g.RSI != nil {
		switch g.RSI.Tier {
		case classify.RSINeutral:
			votes = append(votes, Bullish)
		default:
			votes = append(votes, Bearish)
		}
	}
	if g.Stochastic != nil {
		if g.Stochastic.K > g.Stochastic.D {
			votes = append(votes, Bullish)
		} else if g.Stochastic.K < g.Stochastic.D {
			votes = append(votes, Bearish)
		}
	}
	return voteDirection(votes)
}

// Available reports whether any momentum indicator resolved.
func (g MomentumGroup) Available() bool {
	return g.RSI != nil || g.Stochastic != nil || g.Bollinger != nil
}

func momentumGroup(candles []Candle) MomentumGroup {
	var g MomentumGroup

	if rsi, err := RSI(candles, rsiPeriod); err == nil {
		tier, terr := classify.ClassifyRSI(rsi)
		if terr == nil {
			g.RSI = &RSIValue{Value: rsi, Tier: tier}
		} else {
			g.Missing = append(g.Missing, "rsi")
		}
	} else {
		g.Missing = append(g.Missing, "rsi")
	}

	if st, err := Stochastic(candles, stochPeriod, stochSmoothing); err == nil {
		g.Stochastic = st
	} else {
		g.Missing = append(g.Missing, "stochastic")
	}

	if bb, err := Bollinger(candles, bollingerPeriod, bollingerStdDevs); err == nil {
		g.Bollinger = bb
	} else {
		g.Missing = append(g.Missing, "bollinger")
	}

	return g
}

// RSI computes the relative strength index with Wilder smoothing. Requires
// period+1 candles.
func RSI(candles []Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, &resilience.InsufficientHistoryError{Indicator: "rsi", Need: period + 1, Have: len(candles)}
	}

	c := closes(candles)
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := c[i] - c[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(c); i++ {
		delta := c[i] - c[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

// Stochastic computes %K over period candles and %D as an SMA of the last
// smoothing %K readings.
func Stochastic(candles []Candle, period, smoothing int) (*StochasticValue, error) {
	need := period + smoothing - 1
	if len(candles) < need {
		return nil, &resilience.InsufficientHistoryError{Indicator: "stochastic", Need: need, Have: len(candles)}
	}

	kAt := func(end int) float64 {
		window := candles[end-period : end]
		lo, hi := window[0].Low, window[0].High
		for _, c := range window[1:] {
			lo = math.Min(lo, c.Low)
			hi = math.Max(hi, c.High)
		}
		if hi == lo {
			return 50
		}
		return (candles[end-1].Close - lo) / (hi - lo) * 100
	}

	var dSum float64
	var k float64
	for i := 0; i < smoothing; i++ {
		v := kAt(len(candles) - i)
		dSum += v
		if i == 0 {
			k = v
		}
	}

	return &StochasticValue{K: k, D: dSum / float64(smoothing)}, nil
}

// Bollinger computes the bands at the latest close. The squeeze flag needs
// enough history for a rolling width average; with less history the bands
// are still reported and squeeze stays false.
func Bollinger(candles []Candle, period int, stdDevs float64) (*BollingerValue, error) {
	if len(candles) < period {
		return nil, &resilience.InsufficientHistoryError{Indicator: "bollinger", Need: period, Have: len(candles)}
	}

	c := closes(candles)

	widthAt := func(end int) (middle, width float64) {
		window := c[end-period : end]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)
		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(period))
		if mean == 0 {
			return mean, 0
		}
		return mean, (2 * stdDevs * sd) / mean
	}

	middle, width := widthAt(len(c))
	window := c[len(c)-period:]
	var variance float64
	for _, v := range window {
		variance += (v - middle) * (v - middle)
	}
	sd := math.Sqrt(variance / float64(period))

	bb := &BollingerValue{
		Upper:  middle + stdDevs*sd,
		Middle: middle,
		Lower:  middle - stdDevs*sd,
		Width:  width,
	}

	if len(c) >= period+squeezeLookback {
		var sum float64
		for i := 0; i < squeezeLookback; i++ {
			_, w := widthAt(len(c) - i)
			sum += w
		}
		avgWidth := sum / float64(squeezeLookback)
		bb.Squeeze = avgWidth > 0 && width < avgWidth*0.8
	}

	return bb, nil
}
