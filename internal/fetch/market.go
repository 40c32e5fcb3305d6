package fetch

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/go-arlo/go-arlo-swarm/internal/bundle"
	"github.com/go-arlo/go-arlo-swarm/internal/liquidity"
	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/orchestrator"
	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
	"github.com/go-arlo/go-arlo-swarm/internal/technical"
	"github.com/go-arlo/go-arlo-swarm/pkg/birdeye"
	"github.com/go-arlo/go-arlo-swarm/pkg/moralis"
)

// curveTradeSizes are the USD trade sizes the impact curve is sampled at
// when a pair exposes no depth data.
var curveTradeSizes = []float64{1_000, 5_000, 10_000}

// exitCurveSizes are the withdrawal sizes the exit curve is sampled at on
// chains exposing exit-liquidity depth.
var exitCurveSizes = []float64{10_000, 50_000, 100_000, 250_000, 500_000, 1_000_000, 2_500_000, 5_000_000}

const (
	// launchSwapLimit bounds the launch-window trade fetch for cluster
	// detection.
	launchSwapLimit = 200
	// candleInterval and candleLookback shape the OHLCV request.
	candleInterval = "15m"
	candleLookback = 48 * time.Hour
)

// MarketFetcher assembles the market snapshot from on-chain and price-feed
// providers.
type MarketFetcher struct {
	moralis moralis.Client
	birdeye birdeye.Client
	retry   resilience.RetryConfig
	now     func() time.Time
}

// NewMarketFetcher creates a MarketFetcher over the given providers.
func NewMarketFetcher(m moralis.Client, b birdeye.Client) *MarketFetcher {
	return &MarketFetcher{
		moralis: m,
		birdeye: b,
		retry:   resilience.DefaultRetryConfig(),
		now:     time.Now,
	}
}

// FetchMarket gathers token supply, trading pairs, launch-window swaps, and
// price candles concurrently. Swaps are only fetched on chains where launch
// clustering is detectable; everything else is chain-agnostic.
func (f *MarketFetcher) FetchMarket(ctx context.Context, req model.AnalysisRequest) (*orchestrator.MarketSnapshot, error) {
	var (
		meta    *moralis.TokenMetadata
		pairs   []moralis.TokenPair
		swaps   []moralis.Swap
		candles []birdeye.Candle
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := resilience.Retry(gctx, f.retry, "token metadata", func(ctx context.Context) (*moralis.TokenMetadata, error) {
			return f.moralis.TokenMetadata(ctx, req.ContractAddress)
		})
		if err != nil {
			return eris.Wrap(err, "fetch: token metadata")
		}
		meta = m
		return nil
	})

	g.Go(func() error {
		p, err := resilience.Retry(gctx, f.retry, "token pairs", func(ctx context.Context) ([]moralis.TokenPair, error) {
			return f.moralis.TokenPairs(ctx, req.ContractAddress)
		})
		if err != nil {
			return eris.Wrap(err, "fetch: token pairs")
		}
		pairs = p
		return nil
	})

	if req.Chain.SupportsBundleDetection() {
		g.Go(func() error {
			s, err := resilience.Retry(gctx, f.retry, "token swaps", func(ctx context.Context) ([]moralis.Swap, error) {
				return f.moralis.TokenSwaps(ctx, moralis.SwapsRequest{
					Address: req.ContractAddress,
					Limit:   launchSwapLimit,
				})
			})
			if err != nil {
				return eris.Wrap(err, "fetch: token swaps")
			}
			swaps = s
			return nil
		})
	}

	g.Go(func() error {
		to := f.now()
		c, err := resilience.Retry(gctx, f.retry, "price candles", func(ctx context.Context) ([]birdeye.Candle, error) {
			return f.birdeye.OHLCV(ctx, birdeye.OHLCVRequest{
				Address:  req.ContractAddress,
				Interval: candleInterval,
				TimeFrom: to.Add(-candleLookback).Unix(),
				TimeTo:   to.Unix(),
				Chain:    string(req.Chain),
			})
		})
		if err != nil {
			return eris.Wrap(err, "fetch: price candles")
		}
		candles = c
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	supply, err := strconv.ParseFloat(meta.TotalSupply, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse total supply %q", meta.TotalSupply)
	}

	converted := toCandles(candles)
	liq := toLiquiditySnapshot(pairs)
	liq.PriorPairs = priorPairs(pairs, converted, f.now())
	if req.Chain.SupportsExitLiquidity() {
		liq.ExitCurve = exitCurve(pairs)
	}

	return &orchestrator.MarketSnapshot{
		Trades:      toTrades(swaps),
		TotalSupply: supply,
		Liquidity:   liq,
		Candles:     converted,
	}, nil
}

// toTrades converts launch-window buys into cluster-detection trades. Sells
// are irrelevant to launch accumulation and dropped. Swaps landing in the
// same slot share a transaction group.
func toTrades(swaps []moralis.Swap) []bundle.Trade {
	trades := make([]bundle.Trade, 0, len(swaps))
	for _, s := range swaps {
		if s.TransactionType != "buy" {
			continue
		}
		trades = append(trades, bundle.Trade{
			Wallet:  s.WalletAddress,
			Time:    s.BlockTimestamp,
			Amount:  s.TokenAmount,
			TxGroup: strconv.FormatInt(s.Slot, 10),
		})
	}
	return trades
}

// toLiquiditySnapshot builds the impact curves. Providers expose pool depth
// but not sampled curves, so each pair's curve is estimated with the
// constant-product formula at standard trade sizes.
func toLiquiditySnapshot(pairs []moralis.TokenPair) liquidity.Snapshot {
	snap := liquidity.Snapshot{}
	for _, p := range pairs {
		curve := liquidity.PairCurve{
			PairID:       p.PairAddress,
			Exchange:     p.ExchangeName,
			LiquidityUSD: p.LiquidityUSD,
			Volume24hUSD: p.Volume24hUSD,
		}
		for _, size := range curveTradeSizes {
			curve.Samples = append(curve.Samples, liquidity.CurveSample{
				TradeSizeUSD: size,
				ImpactPct:    liquidity.ConstantProductImpact(p.LiquidityUSD, size),
			})
		}
		snap.Pairs = append(snap.Pairs, curve)
	}
	return snap
}

// priorPairs estimates each pair's curve as of 24 hours ago. Providers only
// expose current depth, so the prior depth is backed out of the price move:
// the quote half of a pool holds its USD value while the token half scales
// with price. Without a candle at least 24h old no estimate is possible and
// the delta stays zero.
func priorPairs(pairs []moralis.TokenPair, candles []technical.Candle, now time.Time) []liquidity.PairCurve {
	scale, ok := priceScale24h(candles, now)
	if !ok {
		return nil
	}
	prior := make([]liquidity.PairCurve, 0, len(pairs))
	for _, p := range pairs {
		depth := p.LiquidityUSD * (1 + scale) / 2
		curve := liquidity.PairCurve{
			PairID:       p.PairAddress,
			Exchange:     p.ExchangeName,
			LiquidityUSD: depth,
		}
		for _, size := range curveTradeSizes {
			curve.Samples = append(curve.Samples, liquidity.CurveSample{
				TradeSizeUSD: size,
				ImpactPct:    liquidity.ConstantProductImpact(depth, size),
			})
		}
		prior = append(prior, curve)
	}
	return prior
}

// priceScale24h returns the ratio of the close 24 hours ago to the latest
// close. Candles are ordered oldest first.
func priceScale24h(candles []technical.Candle, now time.Time) (float64, bool) {
	if len(candles) < 2 {
		return 0, false
	}
	latest := candles[len(candles)-1].Close
	if latest <= 0 {
		return 0, false
	}
	cutoff := now.Add(-24 * time.Hour)
	var prior float64
	for _, c := range candles {
		if c.Time.After(cutoff) {
			break
		}
		prior = c.Close
	}
	if prior <= 0 {
		return 0, false
	}
	return prior / latest, true
}

// exitCurve samples sell-side impact against the combined pool depth so the
// grader can size the largest withdrawal staying under its impact ceiling.
func exitCurve(pairs []moralis.TokenPair) []liquidity.CurveSample {
	var total float64
	for _, p := range pairs {
		if p.LiquidityUSD > 0 {
			total += p.LiquidityUSD
		}
	}
	if total <= 0 {
		return nil
	}
	curve := make([]liquidity.CurveSample, 0, len(exitCurveSizes))
	for _, size := range exitCurveSizes {
		curve = append(curve, liquidity.CurveSample{
			TradeSizeUSD: size,
			ImpactPct:    liquidity.ConstantProductImpact(total, size),
		})
	}
	return curve
}

func toCandles(bars []birdeye.Candle) []technical.Candle {
	candles := make([]technical.Candle, len(bars))
	for i, b := range bars {
		candles[i] = technical.Candle{
			Time:   time.Unix(b.UnixTime, 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return candles
}
