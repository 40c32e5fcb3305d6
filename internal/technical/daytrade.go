package technical

import (
	"math"

	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

const (
	cmfPeriod         = 20
	volumeTrendWindow = 5
	// minimalAlignmentPct is the VWAP premium magnitude below which the
	// reading is reported as aligned rather than as a numeric near-zero.
	minimalAlignmentPct = 0.01
)

// VWAPValue relates current price to the session volume-weighted average
// price.
type VWAPValue struct {
	VWAP       float64 `json:"vwap"`
	PremiumPct float64 `json:"premium_pct"`
	// MinimalAlignment is set when the premium magnitude is under 0.01%;
	// the numeric value is then noise, not signal.
	MinimalAlignment bool `json:"minimal_alignment"`
}

// CMFValue is the Chaikin Money Flow reading; positive values indicate
// accumulation.
type CMFValue struct {
	Value        float64 `json:"value"`
	Accumulation bool    `json:"accumulation"`
}

// DayTradeGroup is the intraday indicator record.
type DayTradeGroup struct {
	VWAP        *VWAPValue `json:"vwap,omitempty"`
	CMF         *CMFValue  `json:"cmf,omitempty"`
	VolumeTrend *float64   `json:"volume_trend_pct,omitempty"`
	Missing     []string   `json:"missing,omitempty"`
}

// Direction reads the group: price above VWAP, accumulation, and a rising
// volume trend each vote bullish.
func (g DayTradeGroup) Direction() Direction {
	var votes []Direction
	if g.VWAP != nil && !g.VWAP.MinimalAlignment {
		if g.VWAP.PremiumPct > 0 {
			votes = append(votes, Bullish)
		} else {
			votes = append(votes, Bearish)
		}
	}
	if g.CMF != nil {
		if g.CMF.Accumulation {
			votes = append(votes, Bullish)
		} else {
			votes = append(votes, Bearish)
		}
	}
	if g.VolumeTrend != nil {
		switch {
		case *g.VolumeTrend > 20:
			votes = append(votes, Bullish)
		case *g.VolumeTrend < -20:
			votes = append(votes, Bearish)
		}
	}
	return voteDirection(votes)
}

// Available reports whether any intraday indicator resolved.
func (g DayTradeGroup) Available() bool {
	return g.VWAP != nil || g.CMF != nil || g.VolumeTrend != nil
}

func dayTradeGroup(candles []Candle) DayTradeGroup {
	var g DayTradeGroup

	if v, err := VWAP(candles); err == nil {
		g.VWAP = v
	} else {
		g.Missing = append(g.Missing, "vwap")
	}

	if c, err := CMF(candles, cmfPeriod); err == nil {
		g.CMF = c
	} else {
		g.Missing = append(g.Missing, "cmf")
	}

	if vt, err := VolumeTrend(candles, volumeTrendWindow); err == nil {
		g.VolumeTrend = &vt
	} else {
		g.Missing = append(g.Missing, "volume_trend")
	}

	return g
}

// VWAP computes the session volume-weighted average price over the whole
// series and the current price's signed premium against it.
func VWAP(candles []Candle) (*VWAPValue, error) {
	if len(candles) == 0 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "vwap", Need: 1, Have: 0}
	}

	var pv, vol float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "vwap", Need: 1, Have: 0}
	}

	vwap := pv / vol
	price := candles[len(candles)-1].Close
	premium := (price - vwap) / vwap * 100

	return &VWAPValue{
		VWAP:             vwap,
		PremiumPct:       premium,
		MinimalAlignment: math.Abs(premium) < minimalAlignmentPct,
	}, nil
}

// CMF computes the Chaikin Money Flow over the last period candles.
func CMF(candles []Candle, period int) (*CMFValue, error) {
	if len(candles) < period {
		return nil, &resilience.InsufficientHistoryError{Indicator: "cmf", Need: period, Have: len(candles)}
	}

	var mfv, vol float64
	for _, c := range candles[len(candles)-period:] {
		if c.High == c.Low {
			continue
		}
		multiplier := ((c.Close - c.Low) - (c.High - c.Close)) / (c.High - c.Low)
		mfv += multiplier * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return nil, &resilience.InsufficientHistoryError{Indicator: "cmf", Need: period, Have: len(candles)}
	}

	value := mfv / vol
	return &CMFValue{Value: value, Accumulation: value > 0}, nil
}

// VolumeTrend compares the most recent window's average volume against the
// preceding window, as a percent change.
func VolumeTrend(candles []Candle, window int) (float64, error) {
	if len(candles) < 2*window {
		return 0, &resilience.InsufficientHistoryError{Indicator: "volume_trend", Need: 2 * window, Have: len(candles)}
	}

	var recent, prior float64
	n := len(candles)
	for _, c := range candles[n-window:] {
		recent += c.Volume
	}
	for _, c := range candles[n-2*window : n-window] {
		prior += c.Volume
	}
	if prior == 0 {
		return 0, &resilience.InsufficientHistoryError{Indicator: "volume_trend", Need: 2 * window, Have: len(candles)}
	}

	return (recent/prior - 1) * 100, nil
}
