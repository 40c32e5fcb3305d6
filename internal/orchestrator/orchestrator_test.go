package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arlo/go-arlo-swarm/internal/liquidity"
	"github.com/go-arlo/go-arlo-swarm/internal/model"
	"github.com/go-arlo/go-arlo-swarm/internal/scorer"
	"github.com/go-arlo/go-arlo-swarm/internal/store"
)

// --- fakes ---

type fakeMarket struct {
	snap *MarketSnapshot
	err  error
}

func (f *fakeMarket) FetchMarket(ctx context.Context, req model.AnalysisRequest) (*MarketSnapshot, error) {
	return f.snap, f.err
}

type fakeSentiment struct {
	snap scorer.SocialSnapshot
	err  error
}

func (f *fakeSentiment) FetchSentiment(ctx context.Context, req model.AnalysisRequest) (scorer.SocialSnapshot, error) {
	return f.snap, f.err
}

type fakeSafety struct {
	snap scorer.SecuritySnapshot
	err  error
}

func (f *fakeSafety) FetchSafety(ctx context.Context, req model.AnalysisRequest) (scorer.SecuritySnapshot, error) {
	return f.snap, f.err
}

type fakeNarrator struct {
	text string
	err  error
}

func (f *fakeNarrator) Narrate(ctx context.Context, report *model.Report) (string, error) {
	return f.text, f.err
}

type fakeStore struct {
	mu       sync.Mutex
	writeErr error
	reports  map[string]*model.Report
	tokens   map[string]model.Token
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reports: make(map[string]*model.Report),
		tokens:  make(map[string]model.Token),
	}
}

func (f *fakeStore) WriteOnce(ctx context.Context, report *model.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if _, ok := f.reports[report.ContractAddress]; ok {
		return store.ErrAlreadyPersisted
	}
	f.reports[report.ContractAddress] = report
	return nil
}

func (f *fakeStore) GetReport(ctx context.Context, addr string) (*model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[addr], nil
}

func (f *fakeStore) ListReports(ctx context.Context, filter store.ReportFilter) ([]model.Report, error) {
	return nil, nil
}

func (f *fakeStore) SaveToken(ctx context.Context, token model.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token.ContractAddress] = token
	return nil
}

func (f *fakeStore) GetToken(ctx context.Context, addr string) (*model.Token, error) {
	return nil, nil
}

func (f *fakeStore) ListTokens(ctx context.Context, limit int) ([]model.Token, error) {
	return nil, nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

// --- fixtures ---

func solanaRequest() model.AnalysisRequest {
	return model.AnalysisRequest{
		Ticker:          "SOL",
		ContractAddress: "So11111111111111111111111111111111111111112",
		Chain:           model.ChainSolana,
	}
}

func healthySnapshot() *MarketSnapshot {
	return &MarketSnapshot{
		TotalSupply: 1_000_000_000,
		Liquidity: liquidity.Snapshot{
			Pairs: []liquidity.PairCurve{{
				PairID:       "pair-1",
				Exchange:     "raydium",
				LiquidityUSD: 500_000,
				Volume24hUSD: 250_000,
				Samples: []liquidity.CurveSample{
					{TradeSizeUSD: 1_000, ImpactPct: 0.1},
					{TradeSizeUSD: 10_000, ImpactPct: 0.2},
					{TradeSizeUSD: 100_000, ImpactPct: 0.6},
				},
			}},
		},
	}
}

func positiveSafety() scorer.SecuritySnapshot {
	return scorer.SecuritySnapshot{
		ContractControl: scorer.ControlPositive,
		HolderControl:   scorer.ControlPositive,
		Concentration:   scorer.ConcentrationBalanced,
		MintRenounced:   true,
		FreezeRenounced: true,
	}
}

func newTestOrchestrator(t *testing.T, market MarketDataFetcher, sentiment SentimentProvider, safety SafetyProvider, narrator Narrator, st store.Store, ack AckFunc) *Orchestrator {
	t.Helper()
	o, err := New(market, sentiment, safety, narrator, st, Config{Ack: ack})
	require.NoError(t, err)
	return o
}

// --- tests ---

func TestRun_HappyPath(t *testing.T) {
	st := newFakeStore()
	var states []State
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50, CreatorCount: 100}},
		&fakeSafety{snap: positiveSafety()},
		&fakeNarrator{text: "Strong launch with clean safety profile."},
		st,
		func(s State) { states = append(states, s) },
	)

	report, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)
	require.NotNil(t, report)

	// No price history: the market score rescales over liquidity alone.
	assert.Equal(t, 100.0, report.MarketPosition.Score)
	assert.Equal(t, 50.0, report.SocialSentiment.Score)
	assert.Equal(t, 95.0, report.TokenSafety.Score)
	assert.Equal(t, 95.0, report.HolderAnalysis.Score)
	// 95*0.26 + 100*0.25 + 50*0.25 + 95*0.24 = 85.0
	assert.Equal(t, 85.0, report.FinalScore)
	assert.Equal(t, model.AssessmentPositive, report.FinalAssessment)
	assert.Equal(t, "Strong launch with clean safety profile.", report.Summary)
	// Solana supports bundle detection, so the signal appears even when clean.
	require.Len(t, report.MarketPosition.KeyPoints, 5)
	assert.Contains(t, report.MarketPosition.KeyPoints[0], "bundle")

	assert.Equal(t, []State{
		StateInit, StateMarketPending, StateSentimentPending, StateSafetyPending,
		StateAggregating, StatePersisting, StateDone,
	}, states)

	persisted, err := st.GetReport(context.Background(), report.ContractAddress)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.True(t, st.tokens[report.ContractAddress].AnalysisExists)
}

func TestRun_SentimentFailureDegradesToNeutral(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{err: errors.New("provider 502")},
		&fakeSafety{snap: positiveSafety()},
		nil, newFakeStore(), nil,
	)

	report, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)
	assert.Equal(t, 50.0, report.SocialSentiment.Score)
	assert.Equal(t, model.AssessmentNeutral, report.SocialSentiment.Assessment)
	assert.GreaterOrEqual(t, len(report.SocialSentiment.KeyPoints), 3)
	// The other domains score normally.
	assert.Equal(t, 95.0, report.TokenSafety.Score)
}

func TestRun_SafetyFailureDegradesBothSafetyDomains(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50}},
		&fakeSafety{err: errors.New("rpc timeout")},
		nil, newFakeStore(), nil,
	)

	report, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)
	assert.Equal(t, 50.0, report.TokenSafety.Score)
	assert.Equal(t, 50.0, report.HolderAnalysis.Score)
	assert.Equal(t, model.AssessmentNeutral, report.TokenSafety.Assessment)
}

func TestRun_MarketFailureIsFatal(t *testing.T) {
	var states []State
	o := newTestOrchestrator(t,
		&fakeMarket{err: errors.New("birdeye down")},
		&fakeSentiment{},
		&fakeSafety{},
		nil, newFakeStore(),
		func(s State) { states = append(states, s) },
	)

	report, err := o.Run(context.Background(), solanaRequest())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "fetch market")
	assert.Equal(t, StateFailed, states[len(states)-1])
}

func TestRun_DuplicatePersistReturnsReportAndError(t *testing.T) {
	st := newFakeStore()
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50}},
		&fakeSafety{snap: positiveSafety()},
		nil, st, nil,
	)

	_, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)

	report, err := o.Run(context.Background(), solanaRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrAlreadyPersisted))
	// The report itself is still complete and usable.
	require.NotNil(t, report)
	assert.NoError(t, report.Complete())
}

func TestRun_NarratorFailureFallsBack(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50}},
		&fakeSafety{snap: positiveSafety()},
		&fakeNarrator{err: errors.New("model overloaded")},
		newFakeStore(), nil,
	)

	report, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)
	assert.Contains(t, report.Summary, "SOL scores 85.0/100")
}

func TestRun_EVMChainOmitsBundleSignal(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50}},
		&fakeSafety{snap: positiveSafety()},
		nil, newFakeStore(), nil,
	)

	req := solanaRequest()
	req.Chain = model.ChainEthereum
	req.ContractAddress = "0xdeadbeef"
	report, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	for _, p := range report.MarketPosition.KeyPoints {
		assert.NotContains(t, p, "bundle")
	}
}

func TestRun_NilStoreSkipsPersistence(t *testing.T) {
	var states []State
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50}},
		&fakeSafety{snap: positiveSafety()},
		nil, nil,
		func(s State) { states = append(states, s) },
	)

	report, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.NotContains(t, states, StatePersisting)
	assert.Equal(t, StateDone, states[len(states)-1])
}

// tracingMarket and friends record fetch entry and exit so tests can assert
// the domains are called strictly in turn.
type tracingMarket struct {
	events *[]string
	snap   *MarketSnapshot
}

func (m *tracingMarket) FetchMarket(ctx context.Context, req model.AnalysisRequest) (*MarketSnapshot, error) {
	*m.events = append(*m.events, "market_start")
	defer func() { *m.events = append(*m.events, "market_end") }()
	return m.snap, nil
}

type tracingSentiment struct {
	events *[]string
	snap   scorer.SocialSnapshot
}

func (s *tracingSentiment) FetchSentiment(ctx context.Context, req model.AnalysisRequest) (scorer.SocialSnapshot, error) {
	*s.events = append(*s.events, "sentiment_start")
	defer func() { *s.events = append(*s.events, "sentiment_end") }()
	return s.snap, nil
}

type tracingSafety struct {
	events *[]string
	snap   scorer.SecuritySnapshot
}

func (s *tracingSafety) FetchSafety(ctx context.Context, req model.AnalysisRequest) (scorer.SecuritySnapshot, error) {
	*s.events = append(*s.events, "safety_start")
	defer func() { *s.events = append(*s.events, "safety_end") }()
	return s.snap, nil
}

func TestRun_DomainCallsAreSequentialWithOneAckEach(t *testing.T) {
	var events []string
	o := newTestOrchestrator(t,
		&tracingMarket{events: &events, snap: healthySnapshot()},
		&tracingSentiment{events: &events, snap: scorer.SocialSnapshot{BullishRatio: 0.5, EngagementScore: 50}},
		&tracingSafety{events: &events, snap: positiveSafety()},
		nil, newFakeStore(),
		func(s State) { events = append(events, "state:"+string(s)) },
	)

	_, err := o.Run(context.Background(), solanaRequest())
	require.NoError(t, err)

	// Each domain resolves before the next pending state is entered, and
	// each pending state is entered exactly once.
	assert.Equal(t, []string{
		"state:init",
		"state:market_pending", "market_start", "market_end",
		"state:sentiment_pending", "sentiment_start", "sentiment_end",
		"state:safety_pending", "safety_start", "safety_end",
		"state:aggregating",
		"state:persisting",
		"state:done",
	}, events)
}

func TestRun_InvalidRequest(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeMarket{snap: healthySnapshot()},
		&fakeSentiment{}, &fakeSafety{}, nil, newFakeStore(), nil,
	)

	_, err := o.Run(context.Background(), model.AnalysisRequest{Ticker: "SOL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract address")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, &fakeSentiment{}, &fakeSafety{}, nil, nil, Config{})
	assert.Error(t, err)

	_, err = New(&fakeMarket{}, nil, &fakeSafety{}, nil, nil, Config{})
	assert.Error(t, err)

	_, err = New(&fakeMarket{}, &fakeSentiment{}, nil, nil, nil, Config{})
	assert.Error(t, err)
}
