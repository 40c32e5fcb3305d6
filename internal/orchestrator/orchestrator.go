// Package orchestrator runs one token analysis end to end as a sequential
// state machine: each domain is fetched and scored in turn, the scores are
// aggregated, the narrative rendered, and the report persisted exactly
// once. A market-domain failure aborts the run; sentiment and safety
// failures degrade to neutral defaults so one flaky provider cannot block
// a report. Separate requests run as independent instances.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/go-arlo/go-arlo-swarm/internal/bundle"
	"github.com/go-arlo/go-arlo-swarm/internal/liquidity"
	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/scorer"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
	"github.com/go-arlo/go-arlo-swarm/internal/technical"
)

// MarketSnapshot bundles everything the market domain needs for one token:
// launch-window trades, liquidity curves, and price history.
type MarketSnapshot struct {
	Trades      []bundle.Trade
	TotalSupply float64
	Liquidity   liquidity.Snapshot
	Candles     []technical.Candle
}

// MarketDataFetcher retrieves the market snapshot for a request.
type MarketDataFetcher interface {
	FetchMarket(ctx context.Context, req model.AnalysisRequest) (*MarketSnapshot, error)
}

// SentimentProvider retrieves the social snapshot for a request.
type SentimentProvider interface {
	FetchSentiment(ctx context.Context, req model.AnalysisRequest) (scorer.SocialSnapshot, error)
}

// SafetyProvider retrieves the security snapshot for a request.
type SafetyProvider interface {
	FetchSafety(ctx context.Context, req model.AnalysisRequest) (scorer.SecuritySnapshot, error)
}

// Narrator renders the report summary from the finalized structured
// results. The narrative never feeds back into any score.
type Narrator interface {
	Narrate(ctx context.Context, report *model.Report) (string, error)
}

// Timeouts bounds each external fetch. Zero values fall back to defaults.
type Timeouts struct {
	Market    time.Duration `yaml:"market" mapstructure:"market"`
	Sentiment time.Duration `yaml:"sentiment" mapstructure:"sentiment"`
	Safety    time.Duration `yaml:"safety" mapstructure:"safety"`
	Narrative time.Duration `yaml:"narrative" mapstructure:"narrative"`
}

// DefaultTimeouts returns the production per-domain deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Market:    45 * time.Second,
		Sentiment: 30 * time.Second,
		Safety:    30 * time.Second,
		Narrative: 60 * time.Second,
	}
}

// Config tunes one Orchestrator.
type Config struct {
	Bundle    bundle.Config
	Technical technical.Config
	Aggregate scorer.AggregateConfig
	Penalty   scorer.PenaltyCurve
	Timeouts  Timeouts

	// Ack streams state transitions; nil disables them.
	Ack AckFunc
}

// Orchestrator coordinates one analysis run per Run call. Safe for
// concurrent use.
type Orchestrator struct {
	market    MarketDataFetcher
	sentiment SentimentProvider
	safety    SafetyProvider
	narrator  Narrator
	store     store.Store
	cfg       Config
}

// New builds an Orchestrator. The narrator may be nil, in which case the
// deterministic fallback summary is always used. The store may be nil for
// dry runs; the persistence state is then skipped.
func New(market MarketDataFetcher, sentiment SentimentProvider, safety SafetyProvider, narrator Narrator, st store.Store, cfg Config) (*Orchestrator, error) {
	if market == nil {
		return nil, eris.New("orchestrator: market fetcher is required")
	}
	if sentiment == nil {
		return nil, eris.New("orchestrator: sentiment provider is required")
	}
	if safety == nil {
		return nil, eris.New("orchestrator: safety provider is required")
	}
	if cfg.Penalty == (scorer.PenaltyCurve{}) {
		cfg.Penalty = scorer.DefaultPenaltyCurve()
	}
	if cfg.Aggregate.Weights == nil {
		cfg.Aggregate = scorer.DefaultAggregateConfig()
	}
	if err := cfg.Penalty.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Aggregate.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeouts == (Timeouts{}) {
		cfg.Timeouts = DefaultTimeouts()
	}
	return &Orchestrator{
		market:    market,
		sentiment: sentiment,
		safety:    safety,
		narrator:  narrator,
		store:     st,
		cfg:       cfg,
	}, nil
}

// SetAck replaces the state transition callback. Must be called before any
// Run is in flight.
func (o *Orchestrator) SetAck(fn AckFunc) {
	o.cfg.Ack = fn
}

func (o *Orchestrator) transition(state State) {
	if o.cfg.Ack != nil {
		o.cfg.Ack(state)
	}
}

// Run executes one analysis. The returned report is complete whenever the
// error is nil or wraps store.ErrAlreadyPersisted; any other error means
// no report was produced.
func (o *Orchestrator) Run(ctx context.Context, req model.AnalysisRequest) (*model.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := zap.L().With(
		zap.String("ticker", req.Ticker),
		zap.String("contract", req.ContractAddress),
		zap.String("chain", string(req.Chain)),
	)
	o.transition(StateInit)

	// Market is the load-bearing domain: a failure here is fatal.
	o.transition(StateMarketPending)
	marketResult, err := o.runMarket(ctx, req, log)
	if err != nil {
		o.transition(StateFailed)
		return nil, err
	}

	// Entering the next pending state acknowledges the domain that just
	// resolved; no two domain calls for this request ever overlap.
	o.transition(StateSentimentPending)
	sentimentResult := o.runSentiment(ctx, req, log)

	o.transition(StateSafetyPending)
	securityResult, distributionResult := o.runSafety(ctx, req, log)

	o.transition(StateAggregating)
	final, err := scorer.Aggregate(map[scorer.Domain]float64{
		scorer.DomainMarket:       marketResult.Score,
		scorer.DomainSentiment:    sentimentResult.Score,
		scorer.DomainSecurity:     securityResult.Score,
		scorer.DomainDistribution: distributionResult.Score,
	}, o.cfg.Aggregate)
	if err != nil {
		o.transition(StateFailed)
		return nil, err
	}

	report := &model.Report{
		TokenTicker:     req.Ticker,
		ContractAddress: req.ContractAddress,
		Chain:           req.Chain,
		FinalScore:      final.Score,
		FinalAssessment: final.Assessment,
		Timestamp:       time.Now().UTC(),
		MarketPosition:  marketResult,
		SocialSentiment: sentimentResult,
		HolderAnalysis:  distributionResult,
		TokenSafety:     securityResult,
	}

	report.Summary = o.summarize(ctx, report, log)

	if err := report.Complete(); err != nil {
		o.transition(StateFailed)
		return nil, err
	}

	if o.store == nil {
		o.transition(StateDone)
		return report, nil
	}

	o.transition(StatePersisting)
	if err := o.store.WriteOnce(ctx, report); err != nil {
		if errors.Is(err, store.ErrAlreadyPersisted) {
			// The run produced a valid report; the caller decides
			// whether a duplicate matters.
			o.transition(StateDone)
			return report, err
		}
		o.transition(StateFailed)
		return nil, eris.Wrap(err, "orchestrator: persist report")
	}

	if err := o.store.SaveToken(ctx, model.Token{
		ContractAddress: req.ContractAddress,
		Name:            req.Ticker,
		Ticker:          req.Ticker,
		AnalysisExists:  true,
	}); err != nil {
		log.Warn("token registry update failed", zap.Error(err))
	}

	o.transition(StateDone)
	return report, nil
}

// runMarket fetches the market snapshot and scores the market domain. The
// bundle, liquidity, and technical sub-signals are independent pure
// computations over the snapshot and run concurrently; only the liquidity
// grade can fail the domain. Bad launch data degrades to omission of the
// bundle signal, same as an unsupported chain.
func (o *Orchestrator) runMarket(ctx context.Context, req model.AnalysisRequest, log *zap.Logger) (model.DomainResult, error) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Market)
	defer cancel()
	snap, err := o.market.FetchMarket(fctx, req)
	if err != nil {
		return model.DomainResult{}, eris.Wrap(err, "orchestrator: fetch market")
	}

	var (
		liqRes    liquidity.Result
		bundleRes *bundle.Result
		techRes   technical.Result
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := liquidity.Grade(snap.Liquidity)
		if err != nil {
			return eris.Wrap(err, "orchestrator: grade liquidity")
		}
		liqRes = r
		return nil
	})
	g.Go(func() error {
		if !req.Chain.SupportsBundleDetection() {
			return nil
		}
		res, err := bundle.Evaluate(snap.Trades, snap.TotalSupply, o.cfg.Bundle)
		if err != nil {
			log.Warn("bundle evaluation failed, omitting signal", zap.Error(err))
			return nil
		}
		bundleRes = &res
		return nil
	})
	g.Go(func() error {
		techRes = technical.Synthesize(snap.Candles, o.cfg.Technical)
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.DomainResult{}, err
	}

	marketScorer := scorer.MarketScorer{Penalty: o.cfg.Penalty}
	return marketScorer.Score(bundleRes, liqRes, techRes), nil
}

// runSentiment fetches and scores the sentiment domain, substituting the
// neutral default on failure.
func (o *Orchestrator) runSentiment(ctx context.Context, req model.AnalysisRequest, log *zap.Logger) model.DomainResult {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Sentiment)
	defer cancel()
	social, err := o.sentiment.FetchSentiment(fctx, req)
	if err != nil {
		log.Warn("sentiment unavailable, applying neutral default", zap.Error(err))
		return model.NeutralDomainResult("Social sentiment")
	}
	return scorer.ScoreSentiment(social)
}

// runSafety fetches and scores the safety domain, substituting neutral
// defaults for both safety-derived results on failure.
func (o *Orchestrator) runSafety(ctx context.Context, req model.AnalysisRequest, log *zap.Logger) (security, distribution model.DomainResult) {
	fctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Safety)
	defer cancel()
	safety, err := o.safety.FetchSafety(fctx, req)
	if err != nil {
		log.Warn("safety unavailable, applying neutral default", zap.Error(err))
		return model.NeutralDomainResult("Token safety"), model.NeutralDomainResult("Holder distribution")
	}
	scores := scorer.ScoreSafety(safety)
	return scores.Security, scores.Distribution
}

// summarize renders the narrative, falling back to a deterministic summary
// when no narrator is configured or the narrator fails.
func (o *Orchestrator) summarize(ctx context.Context, report *model.Report, log *zap.Logger) string {
	if o.narrator != nil {
		nctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Narrative)
		defer cancel()
		text, err := o.narrator.Narrate(nctx, report)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			log.Warn("narrative generation failed, using fallback", zap.Error(err))
		}
	}
	return FallbackSummary(report)
}

// FallbackSummary renders the report summary from structured results
// alone. It is fully deterministic.
func FallbackSummary(r *model.Report) string {
	return fmt.Sprintf(
		"%s scores %.1f/100 (%s). Market position: %s. Social sentiment: %s. Holder analysis: %s. Token safety: %s.",
		r.TokenTicker, r.FinalScore, r.FinalAssessment,
		r.MarketPosition.Assessment, r.SocialSentiment.Assessment,
		r.HolderAnalysis.Assessment, r.TokenSafety.Assessment,
	)
}
