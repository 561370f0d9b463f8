package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicnav/riskengine/internal/aggregator"
	"github.com/sonicnav/riskengine/internal/config"
	"github.com/sonicnav/riskengine/internal/types"
)

type stubPositions struct {
	result aggregator.AggregateResult
}

func (s *stubPositions) Aggregate(ctx context.Context, owner string) aggregator.AggregateResult {
	return s.result
}

type stubMarket struct {
	snapshot types.MarketSnapshot
	err      error
}

func (s *stubMarket) Snapshot(ctx context.Context) (types.MarketSnapshot, error) {
	return s.snapshot, s.err
}

type stubCatalog struct {
	strategies map[types.StrategyID]types.Strategy
}

func (s *stubCatalog) Get(id types.StrategyID) (types.Strategy, error) {
	strategy, ok := s.strategies[id]
	if !ok {
		return types.Strategy{}, fmt.Errorf("%w: strategy %s", types.ErrNotFound, id)
	}
	return strategy, nil
}

type recordingSink struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSink) Notify(ctx context.Context, owner, title, message string, severity types.AlertSeverity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("%s/%s", owner, severity))
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingObserver struct {
	mu     sync.Mutex
	alerts []types.RiskAlert
	cycles int
	err    error
}

func (r *recordingObserver) ObserveAlert(ctx context.Context, alert types.RiskAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

func (r *recordingObserver) ObserveCycle(ctx context.Context, owner string, positions []types.Position, snapshot types.MarketSnapshot, unreadAlerts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	return r.err
}

func lendingPosition(hf float64) types.Position {
	return types.Position{
		StrategyID:           "lend-1",
		InitialInvestmentUSD: 1000,
		CurrentValueUSD:      1000,
		SubPositions:         []types.SubPosition{{TokenSymbol: "SOL", HealthFactor: &hf}},
	}
}

func newTestEngine(t *testing.T, positions PositionSource, market SnapshotSource, catalog StrategyLookup, sink *recordingSink) (*Engine, *Store) {
	t.Helper()
	store := NewStore(nil)
	cfg := EngineConfig{
		Positions:  positions,
		Market:     market,
		Strategies: catalog,
		Store:      store,
		Params:     config.DefaultRiskParameters,
		Interval:   time.Hour, // ticks driven manually through runCycle
	}
	if sink != nil {
		cfg.Sink = sink
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine, store
}

func TestLiquidationAlertRaisedOnceWhileUnread(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"lend-1":  {ID: "lend-1", Name: "Conservative Lending", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative},
		"stake-1": {ID: "stake-1", Name: "Staking", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskConservative},
	}}
	// Portfolio spread below the concentration threshold so only the
	// liquidation check can fire.
	unhealthy := lendingPosition(1.02)
	unhealthy.InitialInvestmentUSD, unhealthy.CurrentValueUSD = 300, 300
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{
		unhealthy,
		{StrategyID: "stake-1", InitialInvestmentUSD: 350, CurrentValueUSD: 350},
		{StrategyID: "stake-1", InitialInvestmentUSD: 350, CurrentValueUSD: 350},
	}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, Trend: types.TrendNeutral, VolatilityIndex: 5}}
	sink := &recordingSink{}

	engine, store := newTestEngine(t, positions, market, catalog, sink)

	engine.runCycle(context.Background(), "owner1")
	alerts := store.Alerts("owner1")
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertLiquidation, alerts[0].Type)
	assert.Equal(t, types.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, 1, sink.count())

	// Second tick with the first alert still unread raises nothing new.
	engine.runCycle(context.Background(), "owner1")
	assert.Len(t, store.Alerts("owner1"), 1)
	assert.Equal(t, 1, sink.count())
}

func TestLiquidationSeverityBands(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"lend-1": {ID: "lend-1", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative},
	}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}

	cases := []struct {
		hf       float64
		severity types.AlertSeverity
	}{
		{1.20, types.SeverityMedium},
		{1.10, types.SeverityHigh},
		{1.02, types.SeverityCritical},
	}
	for _, tc := range cases {
		positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{lendingPosition(tc.hf)}}}
		engine, store := newTestEngine(t, positions, market, catalog, nil)
		engine.runCycle(context.Background(), "owner1")

		var liquidations []types.RiskAlert
		for _, alert := range store.Alerts("owner1") {
			if alert.Type == types.AlertLiquidation {
				liquidations = append(liquidations, alert)
			}
		}
		require.Len(t, liquidations, 1, "hf=%v", tc.hf)
		assert.Equal(t, tc.severity, liquidations[0].Severity, "hf=%v", tc.hf)
	}
}

func TestHealthyPositionRaisesNothing(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"lend-1": {ID: "lend-1", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative},
	}}
	healthy := lendingPosition(1.8)
	other := types.Position{StrategyID: "lend-1", InitialInvestmentUSD: 2000, CurrentValueUSD: 2000}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{healthy, other}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}

	engine, store := newTestEngine(t, positions, market, catalog, nil)
	engine.runCycle(context.Background(), "owner1")

	for _, alert := range store.Alerts("owner1") {
		assert.NotEqual(t, types.AlertLiquidation, alert.Type)
		assert.NotEqual(t, types.AlertPositionDecline, alert.Type)
	}
}

func TestCycleSkippedWhenSnapshotUnavailable(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{}}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{lendingPosition(1.02)}}}
	market := &stubMarket{err: types.ErrInsufficientData}

	engine, store := newTestEngine(t, positions, market, catalog, nil)
	engine.runCycle(context.Background(), "owner1")

	assert.Empty(t, store.Alerts("owner1"))
}

func TestPositionDeclineAlert(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"stake-1": {ID: "stake-1", Name: "Staking", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskModerate},
	}}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{{
		StrategyID:           "stake-1",
		InitialInvestmentUSD: 1000,
		CurrentValueUSD:      700, // down 30%
	}}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}

	engine, store := newTestEngine(t, positions, market, catalog, nil)
	engine.runCycle(context.Background(), "owner1")

	alerts := store.Alerts("owner1")
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertPositionDecline, alerts[0].Type)
	assert.Equal(t, types.SeverityHigh, alerts[0].Severity)
}

func TestConcentrationAlert(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"a": {ID: "a", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskConservative},
		"b": {ID: "b", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskConservative},
	}}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{
		{StrategyID: "a", InitialInvestmentUSD: 900, CurrentValueUSD: 900},
		{StrategyID: "b", InitialInvestmentUSD: 100, CurrentValueUSD: 100},
	}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}

	engine, store := newTestEngine(t, positions, market, catalog, nil)
	engine.runCycle(context.Background(), "owner1")

	alerts := store.Alerts("owner1")
	require.Len(t, alerts, 1)
	assert.Equal(t, types.AlertProtocolRisk, alerts[0].Type)
	assert.Equal(t, types.StrategyID("a"), alerts[0].StrategyID)
}

func TestMarketVolatilityAlertInBearMarket(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"safe": {ID: "safe", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskConservative},
		"degen": {ID: "degen", ProtocolType: types.ProtocolYieldFarming, RiskLevel: types.RiskExperimental},
	}}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{
		{StrategyID: "safe", InitialInvestmentUSD: 600, CurrentValueUSD: 600},
		{StrategyID: "degen", InitialInvestmentUSD: 400, CurrentValueUSD: 400},
	}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, Trend: types.TrendBear, VolatilityIndex: 8}}

	engine, store := newTestEngine(t, positions, market, catalog, nil)
	engine.runCycle(context.Background(), "owner1")

	var volatility int
	for _, alert := range store.Alerts("owner1") {
		if alert.Type == types.AlertMarketVolatility {
			volatility++
			assert.Equal(t, types.SeverityHigh, alert.Severity)
		}
	}
	assert.Equal(t, 1, volatility)
}

func TestSinkFailureDoesNotFailCycle(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"lend-1": {ID: "lend-1", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative},
	}}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{lendingPosition(1.02)}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}
	sink := &recordingSink{err: types.ErrUpstreamUnavailable}

	engine, store := newTestEngine(t, positions, market, catalog, sink)
	engine.runCycle(context.Background(), "owner1")

	assert.NotEmpty(t, store.Alerts("owner1"))
}

func TestStartMonitoringIsIdempotent(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{}}
	positions := &stubPositions{result: aggregator.AggregateResult{}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}

	engine, _ := newTestEngine(t, positions, market, catalog, nil)
	ctx := context.Background()

	engine.StartMonitoring(ctx, "owner1")
	engine.StartMonitoring(ctx, "owner1")

	engine.mu.Lock()
	assert.Len(t, engine.monitors, 1)
	engine.mu.Unlock()

	engine.StopMonitoring("owner1")
	engine.StopMonitoring("owner1") // never-started/stopped twice is safe
	engine.StopMonitoring("other")

	engine.mu.Lock()
	assert.Empty(t, engine.monitors)
	engine.mu.Unlock()
}

func TestObserverReceivesRaisedAlertsAndCycleSummary(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"lend-1":  {ID: "lend-1", Name: "Conservative Lending", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative},
		"stake-1": {ID: "stake-1", Name: "Staking", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskConservative},
	}}
	unhealthy := lendingPosition(1.02)
	unhealthy.InitialInvestmentUSD, unhealthy.CurrentValueUSD = 300, 300
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{
		unhealthy,
		{StrategyID: "stake-1", InitialInvestmentUSD: 350, CurrentValueUSD: 350},
		{StrategyID: "stake-1", InitialInvestmentUSD: 350, CurrentValueUSD: 350},
	}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, Trend: types.TrendNeutral, VolatilityIndex: 5}}
	observer := &recordingObserver{}

	store := NewStore(nil)
	engine, err := NewEngine(EngineConfig{
		Positions:  positions,
		Market:     market,
		Strategies: catalog,
		Store:      store,
		Observer:   observer,
		Params:     config.DefaultRiskParameters,
		Interval:   time.Hour,
	})
	require.NoError(t, err)

	engine.runCycle(context.Background(), "owner1")

	require.Len(t, observer.alerts, 1)
	assert.Equal(t, types.AlertLiquidation, observer.alerts[0].Type)
	assert.Equal(t, "owner1", observer.alerts[0].Owner)
	assert.NotEmpty(t, observer.alerts[0].ID)
	assert.Equal(t, 1, observer.cycles)

	// A deduplicated tick raises nothing, so the observer sees no new alert.
	engine.runCycle(context.Background(), "owner1")
	assert.Len(t, observer.alerts, 1)
	assert.Equal(t, 2, observer.cycles)
}

func TestObserverFailureDoesNotFailCycle(t *testing.T) {
	catalog := &stubCatalog{strategies: map[types.StrategyID]types.Strategy{
		"lend-1": {ID: "lend-1", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative},
	}}
	positions := &stubPositions{result: aggregator.AggregateResult{Positions: []types.Position{lendingPosition(1.02)}}}
	market := &stubMarket{snapshot: types.MarketSnapshot{ReferencePriceUSD: 150, VolatilityIndex: 5}}
	observer := &recordingObserver{err: types.ErrUpstreamUnavailable}

	store := NewStore(nil)
	engine, err := NewEngine(EngineConfig{
		Positions:  positions,
		Market:     market,
		Strategies: catalog,
		Store:      store,
		Observer:   observer,
		Params:     config.DefaultRiskParameters,
		Interval:   time.Hour,
	})
	require.NoError(t, err)

	engine.runCycle(context.Background(), "owner1")
	assert.NotEmpty(t, store.Alerts("owner1"))
}
