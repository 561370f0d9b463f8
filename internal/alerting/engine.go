/*

This file contains the risk monitoring engine. One periodic task runs per
monitored owner: each tick aggregates positions, takes a market snapshot,
computes risk metrics, and raises deduplicated alerts through the store.
Notification delivery is fire-and-forget; a sink failure never fails a tick.

*/

package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/aggregator"
	"github.com/sonicnav/riskengine/internal/analyzer"
	"github.com/sonicnav/riskengine/internal/datafetcher"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var engineLogger = logger.GetForComponent("alert_engine")

// PositionSource supplies the owner's positions each tick.
type PositionSource interface {
	Aggregate(ctx context.Context, owner string) aggregator.AggregateResult
}

// SnapshotSource supplies the market snapshot each tick.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (types.MarketSnapshot, error)
}

// StrategyLookup resolves a strategy by id, ErrNotFound when unknown.
type StrategyLookup interface {
	Get(id types.StrategyID) (types.Strategy, error)
}

// CycleObserver receives every newly raised alert and a summary of each
// completed monitoring tick. Observation is best-effort; errors are logged
// and never fail the tick.
type CycleObserver interface {
	ObserveAlert(ctx context.Context, alert types.RiskAlert) error
	ObserveCycle(ctx context.Context, owner string, positions []types.Position, snapshot types.MarketSnapshot, unreadAlerts int) error
}

// EngineConfig holds the monitoring engine dependencies.
type EngineConfig struct {
	Positions  PositionSource
	Market     SnapshotSource
	Strategies StrategyLookup
	Store      *Store
	Sink       datafetcher.NotificationSink // optional
	Observer   CycleObserver                // optional
	Params     types.RiskParameters
	Interval   time.Duration // 0 uses the params monitor interval
}

// Engine runs the per-owner monitoring loops.
type Engine struct {
	positions  PositionSource
	market     SnapshotSource
	strategies StrategyLookup
	store      *Store
	sink       datafetcher.NotificationSink
	observer   CycleObserver
	params     types.RiskParameters
	interval   time.Duration
	log        zerolog.Logger

	mu       sync.Mutex
	monitors map[string]context.CancelFunc
}

// NewEngine validates dependencies and builds the monitoring engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Positions == nil {
		return nil, errors.New("position source cannot be nil")
	}
	if cfg.Market == nil {
		return nil, errors.New("snapshot source cannot be nil")
	}
	if cfg.Strategies == nil {
		return nil, errors.New("strategy lookup cannot be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("alert store cannot be nil")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = cfg.Params.MonitorInterval
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Engine{
		positions:  cfg.Positions,
		market:     cfg.Market,
		strategies: cfg.Strategies,
		store:      cfg.Store,
		sink:       cfg.Sink,
		observer:   cfg.Observer,
		params:     cfg.Params,
		interval:   interval,
		log:        engineLogger,
		monitors:   make(map[string]context.CancelFunc),
	}, nil
}

// StartMonitoring begins the periodic risk checks for an owner. Calling it
// while monitoring is already active cancels the previous loop first, so at
// most one loop ever ticks per owner.
func (e *Engine) StartMonitoring(ctx context.Context, owner string) {
	loopCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if prev, ok := e.monitors[owner]; ok {
		prev()
	}
	e.monitors[owner] = cancel
	e.mu.Unlock()

	e.log.Info().Str("owner", owner).Dur("interval", e.interval).Msg("Monitoring started")
	go e.runLoop(loopCtx, owner)
}

// StopMonitoring cancels the owner's periodic task. Safe to call when
// monitoring was never started. Cancellation only prevents the next tick; a
// tick already in flight finishes.
func (e *Engine) StopMonitoring(owner string) {
	e.mu.Lock()
	cancel, ok := e.monitors[owner]
	if ok {
		delete(e.monitors, owner)
	}
	e.mu.Unlock()

	if ok {
		cancel()
		e.log.Info().Str("owner", owner).Msg("Monitoring stopped")
	}
}

// StopAll cancels every active monitoring loop.
func (e *Engine) StopAll() {
	e.mu.Lock()
	for owner, cancel := range e.monitors {
		cancel()
		delete(e.monitors, owner)
	}
	e.mu.Unlock()
}

func (e *Engine) runLoop(ctx context.Context, owner string) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.runCycle(ctx, owner)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runCycle(ctx, owner)
		}
	}
}

// runCycle executes one monitoring tick. If either input fetch fails the
// whole cycle is skipped and retried on the next tick.
func (e *Engine) runCycle(ctx context.Context, owner string) {
	snapshot, err := e.market.Snapshot(ctx)
	if err != nil {
		e.log.Warn().Err(err).Str("owner", owner).Msg("Skipping cycle, market snapshot unavailable")
		return
	}

	result := e.positions.Aggregate(ctx, owner)
	if result.Degraded() {
		e.log.Warn().Str("owner", owner).Int("failedAdapters", len(result.Failures)).Msg("Aggregation degraded, checking partial position set")
	}

	for _, position := range result.Positions {
		strategy, err := e.strategies.Get(position.StrategyID)
		if err != nil {
			e.log.Warn().Err(err).Str("strategyId", string(position.StrategyID)).Msg("Skipping position, strategy unresolvable")
			continue
		}
		metrics, err := analyzer.CalculateRiskMetrics(position, strategy, snapshot)
		if err != nil {
			e.log.Warn().Err(err).Str("strategyId", string(position.StrategyID)).Msg("Skipping position, metric calculation failed")
			continue
		}
		e.checkLiquidation(ctx, owner, strategy, metrics)
		e.checkImpermanentLoss(ctx, owner, strategy, metrics, snapshot)
		e.checkDecline(ctx, owner, strategy, position)
	}

	e.checkConcentration(ctx, owner, result.Positions)
	e.checkMarketVolatility(ctx, owner, result.Positions, snapshot)

	if e.observer != nil {
		if err := e.observer.ObserveCycle(ctx, owner, result.Positions, snapshot, e.store.UnreadCount(owner)); err != nil {
			e.log.Warn().Err(err).Str("owner", owner).Msg("Cycle observer failed")
		}
	}
}

func (e *Engine) checkLiquidation(ctx context.Context, owner string, strategy types.Strategy, metrics types.PositionRiskMetrics) {
	if strategy.ProtocolType != types.ProtocolLending || metrics.HealthFactor >= e.params.LiquidationWarnHF {
		return
	}
	severity := types.SeverityMedium
	switch {
	case metrics.HealthFactor < e.params.LiquidationCriticalHF:
		severity = types.SeverityCritical
	case metrics.HealthFactor < e.params.LiquidationHighHF:
		severity = types.SeverityHigh
	}
	e.raise(ctx, owner, types.RiskAlert{
		Severity:   severity,
		Type:       types.AlertLiquidation,
		StrategyID: strategy.ID,
		Message:    fmt.Sprintf("Health factor %.2f on %s is approaching liquidation", metrics.HealthFactor, strategy.Name),
		Details:    map[string]float64{"health_factor": metrics.HealthFactor},
		SuggestedActions: []string{
			"Repay part of the borrowed amount",
			"Add collateral to the lending position",
		},
	})
}

func (e *Engine) checkImpermanentLoss(ctx context.Context, owner string, strategy types.Strategy, metrics types.PositionRiskMetrics, snapshot types.MarketSnapshot) {
	if strategy.ProtocolType != types.ProtocolLiquidityProviding {
		return
	}
	if metrics.ImpermanentLossRisk <= e.params.ILRiskAlertThreshold || snapshot.VolatilityIndex <= e.params.ILVolatilityGate {
		return
	}
	severity := types.SeverityMedium
	if metrics.ImpermanentLossRisk > e.params.ILHighSeverityThreshold {
		severity = types.SeverityHigh
	}
	e.raise(ctx, owner, types.RiskAlert{
		Severity:   severity,
		Type:       types.AlertImpermanentLoss,
		StrategyID: strategy.ID,
		Message:    fmt.Sprintf("Elevated impermanent loss risk (%.1f/10) on %s in a volatile market", metrics.ImpermanentLossRisk, strategy.Name),
		Details: map[string]float64{
			"il_risk":          metrics.ImpermanentLossRisk,
			"volatility_index": snapshot.VolatilityIndex,
		},
		SuggestedActions: []string{
			"Consider moving part of the position to single-sided staking",
		},
	})
}

func (e *Engine) checkDecline(ctx context.Context, owner string, strategy types.Strategy, position types.Position) {
	if position.InitialInvestmentUSD <= 0 {
		return
	}
	decline := (position.CurrentValueUSD - position.InitialInvestmentUSD) / position.InitialInvestmentUSD
	if decline >= e.params.DeclineAlertFraction {
		return
	}
	severity := types.SeverityMedium
	if decline < e.params.DeclineHighSeverityFraction {
		severity = types.SeverityHigh
	}
	e.raise(ctx, owner, types.RiskAlert{
		Severity:   severity,
		Type:       types.AlertPositionDecline,
		StrategyID: strategy.ID,
		Message:    fmt.Sprintf("Position in %s is down %.1f%% from the initial investment", strategy.Name, -decline*100),
		Details:    map[string]float64{"decline_fraction": decline},
		SuggestedActions: []string{
			"Review the strategy against current market conditions",
		},
	})
}

func (e *Engine) checkConcentration(ctx context.Context, owner string, positions []types.Position) {
	total := totalValue(positions)
	if total <= 0 {
		return
	}
	for _, position := range positions {
		share := position.CurrentValueUSD / total
		if share <= e.params.ConcentrationAlertFraction {
			continue
		}
		e.raise(ctx, owner, types.RiskAlert{
			Severity:   types.SeverityMedium,
			Type:       types.AlertProtocolRisk,
			StrategyID: position.StrategyID,
			Message:    fmt.Sprintf("%.0f%% of portfolio value is concentrated in a single position", share*100),
			Details:    map[string]float64{"share": share},
			SuggestedActions: []string{
				"Spread the allocation across additional strategies",
			},
		})
	}
}

func (e *Engine) checkMarketVolatility(ctx context.Context, owner string, positions []types.Position, snapshot types.MarketSnapshot) {
	if snapshot.VolatilityIndex <= e.params.MarketVolatilityAlertIndex || snapshot.Trend != types.TrendBear {
		return
	}
	total := totalValue(positions)
	if total <= 0 {
		return
	}
	var risky float64
	for _, position := range positions {
		strategy, err := e.strategies.Get(position.StrategyID)
		if err != nil {
			continue
		}
		if strategy.RiskLevel == types.RiskAggressive || strategy.RiskLevel == types.RiskExperimental {
			risky += position.CurrentValueUSD
		}
	}
	if risky/total <= e.params.RiskyShareAlertFraction {
		return
	}
	e.raise(ctx, owner, types.RiskAlert{
		Severity: types.SeverityHigh,
		Type:     types.AlertMarketVolatility,
		Message:  fmt.Sprintf("%.0f%% of portfolio value sits in high-risk strategies during a volatile bear market", risky/total*100),
		Details: map[string]float64{
			"risky_share":      risky / total,
			"volatility_index": snapshot.VolatilityIndex,
		},
		SuggestedActions: []string{
			"Shift part of the portfolio into conservative strategies",
		},
	})
}

// raise stores the alert if no unread duplicate exists and forwards new
// alerts to the observer and the notification sink.
func (e *Engine) raise(ctx context.Context, owner string, alert types.RiskAlert) {
	stored, created := e.store.Raise(owner, alert)
	if !created {
		return
	}
	e.log.Info().
		Str("owner", owner).
		Str("type", string(stored.Type)).
		Str("severity", string(stored.Severity)).
		Msg("Alert raised")

	if e.observer != nil {
		if err := e.observer.ObserveAlert(ctx, stored); err != nil {
			e.log.Warn().Err(err).Str("owner", owner).Msg("Alert observer failed")
		}
	}

	if e.sink == nil {
		return
	}
	title := fmt.Sprintf("%s risk alert", stored.Severity)
	if err := e.sink.Notify(ctx, owner, title, stored.Message, stored.Severity); err != nil {
		e.log.Warn().Err(err).Str("owner", owner).Msg("Notification delivery failed")
	}
}

func totalValue(positions []types.Position) float64 {
	var total float64
	for _, position := range positions {
		total += position.CurrentValueUSD
	}
	return total
}
