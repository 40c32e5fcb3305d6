package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/go-arlo/go-arlo-swarm/internal/bundle"
	"github.com/go-arlo/go-arlo-swarm/internal/config"
	"github.com/go-arlo/go-arlo-swarm/internal/fetch"
	"github.com/go-arlo/go-arlo-swarm/internal/narrate"
	"github.com/go-arlo/go-arlo-swarm/internal/orchestrator"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
	"github.com/go-arlo/go-arlo-swarm/internal/technical"
	"github.com/go-arlo/go-arlo-swarm/pkg/birdeye"
	"github.com/go-arlo/go-arlo-swarm/pkg/lunarcrush"
	"github.com/go-arlo/go-arlo-swarm/pkg/moralis"
	"github.com/go-arlo/go-arlo-swarm/pkg/narrative"
)

// env bundles the wired collaborators a command needs.
type env struct {
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
}

func (e *env) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv wires API clients, fetchers, and the orchestrator from config.
// With dryRun set, no store is opened and the report is not persisted.
func initEnv(ctx context.Context, dryRun bool) (*env, error) {
	var st store.Store
	if !dryRun {
		s, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		st = s
	}

	moralisClient := moralis.NewClient(cfg.Moralis.Key,
		moralis.WithBaseURL(cfg.Moralis.BaseURL),
		moralis.WithRateLimit(cfg.Moralis.RateLimit),
	)
	birdeyeClient := birdeye.NewClient(cfg.Birdeye.Key,
		birdeye.WithBaseURL(cfg.Birdeye.BaseURL),
		birdeye.WithRateLimit(cfg.Birdeye.RateLimit),
	)
	lunarClient := lunarcrush.NewClient(cfg.LunarCrush.Key,
		lunarcrush.WithBaseURL(cfg.LunarCrush.BaseURL),
		lunarcrush.WithRateLimit(cfg.LunarCrush.RateLimit),
	)

	var narrator orchestrator.Narrator
	if cfg.Anthropic.Key != "" {
		narrator = narrate.NewGenerator(narrative.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	} else {
		zap.L().Info("no model API key configured, summaries use the deterministic fallback")
	}

	orch, err := orchestrator.New(
		fetch.NewMarketFetcher(moralisClient, birdeyeClient),
		fetch.NewSentimentFetcher(lunarClient),
		fetch.NewSafetyFetcher(birdeyeClient, moralisClient),
		narrator,
		st,
		orchestrator.Config{
			Bundle:    bundle.DefaultConfig(),
			Technical: technical.Config{FibProximityPct: cfg.Analysis.FibProximityPct},
			Aggregate: cfg.Analysis.AggregateConfig(),
			Timeouts: orchestrator.Timeouts{
				Market:    config.Timeout(cfg.Analysis.MarketTimeoutSecs),
				Sentiment: config.Timeout(cfg.Analysis.SentimentTimeoutSecs),
				Safety:    config.Timeout(cfg.Analysis.SafetyTimeoutSecs),
				Narrative: config.Timeout(cfg.Analysis.NarrativeTimeoutSecs),
			},
		},
	)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	return &env{Store: st, Orchestrator: orch}, nil
}
