/*

This file contains the risk engine façade: the single entry point the web
layer and any embedding application talk to. All collaborators are injected
through Config and validated up front; the engine owns no background work of
its own beyond what the monitoring engine runs per owner.

*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/advisor"
	"github.com/sonicnav/riskengine/internal/aggregator"
	"github.com/sonicnav/riskengine/internal/alerting"
	"github.com/sonicnav/riskengine/internal/analytics"
	"github.com/sonicnav/riskengine/internal/analyzer"
	"github.com/sonicnav/riskengine/internal/catalog"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/protocol"
	"github.com/sonicnav/riskengine/internal/types"
)

// Engine is the portfolio risk and optimization service.
type Engine struct {
	registry    *protocol.Registry
	aggregator  *aggregator.Aggregator
	market      *analyzer.MarketAnalyzer
	catalog     *catalog.Catalog
	monitor     *alerting.Engine
	alerts      *alerting.Store
	priceAlerts *alerting.PriceAlertService
	advisor     *advisor.Advisor
	analytics   *analytics.Analyzer
	params      types.RiskParameters
	now         func() time.Time
	log         zerolog.Logger
}

// Config holds the engine dependencies.
type Config struct {
	Registry    *protocol.Registry
	Aggregator  *aggregator.Aggregator
	Market      *analyzer.MarketAnalyzer
	Catalog     *catalog.Catalog
	Monitor     *alerting.Engine
	Alerts      *alerting.Store
	PriceAlerts *alerting.PriceAlertService // optional
	Advisor     *advisor.Advisor
	Analytics   *analytics.Analyzer // optional; position history endpoints fail without it
	Params      types.RiskParameters
	Now         func() time.Time // nil uses time.Now
}

// New validates the configuration and builds the engine.
func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		registry:    cfg.Registry,
		aggregator:  cfg.Aggregator,
		market:      cfg.Market,
		catalog:     cfg.Catalog,
		monitor:     cfg.Monitor,
		alerts:      cfg.Alerts,
		priceAlerts: cfg.PriceAlerts,
		advisor:     cfg.Advisor,
		analytics:   cfg.Analytics,
		params:      cfg.Params,
		now:         now,
		log:         logger.GetForComponent("engine"),
	}
	e.log.Info().Msg("Risk engine created")
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Registry == nil {
		return errors.New("adapter registry cannot be nil")
	}
	if cfg.Aggregator == nil {
		return errors.New("position aggregator cannot be nil")
	}
	if cfg.Market == nil {
		return errors.New("market analyzer cannot be nil")
	}
	if cfg.Catalog == nil {
		return errors.New("strategy catalog cannot be nil")
	}
	if cfg.Monitor == nil {
		return errors.New("monitoring engine cannot be nil")
	}
	if cfg.Alerts == nil {
		return errors.New("alert store cannot be nil")
	}
	if cfg.Advisor == nil {
		return errors.New("rebalancing advisor cannot be nil")
	}
	return nil
}

// --- Query API ---

// GetStrategies lists the full strategy catalog.
func (e *Engine) GetStrategies() []types.Strategy {
	return e.catalog.List()
}

// GetStrategy returns one catalog entry, ErrNotFound when unknown.
func (e *Engine) GetStrategy(id types.StrategyID) (types.Strategy, error) {
	return e.catalog.Get(id)
}

// GetUserPositions aggregates the owner's positions across all adapters.
// Partial failures are reported in the result, never as an error.
func (e *Engine) GetUserPositions(ctx context.Context, owner string) aggregator.AggregateResult {
	return e.aggregator.Aggregate(ctx, owner)
}

// GetMarketSnapshot returns the fused market view.
func (e *Engine) GetMarketSnapshot(ctx context.Context) (types.MarketSnapshot, error) {
	return e.market.Snapshot(ctx)
}

// RecommendStrategies scores the catalog against a risk profile under
// current market conditions.
func (e *Engine) RecommendStrategies(ctx context.Context, profile types.RiskProfile) ([]types.StrategyRecommendation, error) {
	snapshot, err := e.market.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommending strategies: %w", err)
	}
	return analyzer.RecommendStrategies(e.catalog.List(), profile, snapshot), nil
}

// OptimizeAllocations turns recommendations for a profile into target
// percentages per strategy.
func (e *Engine) OptimizeAllocations(ctx context.Context, profile types.RiskProfile) (map[types.StrategyID]float64, error) {
	recommendations, err := e.RecommendStrategies(ctx, profile)
	if err != nil {
		return nil, err
	}
	return analyzer.OptimizeAllocations(profile, recommendations, e.catalog.List(), e.params, nil)
}

// AdviseRebalancing emits per-position rebalancing advice for the owner.
func (e *Engine) AdviseRebalancing(ctx context.Context, owner string) ([]types.RebalancingRecommendation, error) {
	snapshot, err := e.market.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("advising rebalancing: %w", err)
	}
	result := e.aggregator.Aggregate(ctx, owner)
	return e.advisor.Advise(result.Positions, e.catalog.List(), snapshot), nil
}

// AnalyzePositionHistory reconstructs historical performance for one of the
// owner's positions.
func (e *Engine) AnalyzePositionHistory(ctx context.Context, owner string, strategyID types.StrategyID) (types.PositionAnalytics, error) {
	if e.analytics == nil {
		return types.PositionAnalytics{}, fmt.Errorf("%w: analytics not configured", types.ErrUnsupported)
	}
	strategy, err := e.catalog.Get(strategyID)
	if err != nil {
		return types.PositionAnalytics{}, err
	}
	position, err := e.findPosition(ctx, owner, strategyID)
	if err != nil {
		return types.PositionAnalytics{}, err
	}
	return e.analytics.Analyze(ctx, position, strategy)
}

// GetAlerts returns the owner's alerts, newest first.
func (e *Engine) GetAlerts(owner string) []types.RiskAlert {
	return e.alerts.Alerts(owner)
}

// GetUnreadAlertCount returns the owner's unread alert count.
func (e *Engine) GetUnreadAlertCount(owner string) int {
	return e.alerts.UnreadCount(owner)
}

// --- Command API ---

// Subscribe deposits into a strategy and records the subscription.
func (e *Engine) Subscribe(ctx context.Context, owner string, strategyID types.StrategyID, amountUSD float64) (string, error) {
	strategy, err := e.catalog.Get(strategyID)
	if err != nil {
		return "", err
	}
	if amountUSD < strategy.MinInvestmentUSD {
		return "", fmt.Errorf("%w: %.2f is below the %.2f minimum investment",
			types.ErrInsufficientFunds, amountUSD, strategy.MinInvestmentUSD)
	}
	adapter, err := e.registry.Get(strategy.Protocol.Platform)
	if err != nil {
		return "", err
	}

	txRef, err := adapter.ExecuteDeposit(ctx, protocol.ActionParams{
		Owner:      owner,
		StrategyID: strategyID,
		AmountUSD:  amountUSD,
	})
	if err != nil {
		return "", fmt.Errorf("subscribing to %s: %w", strategyID, err)
	}
	if err := e.catalog.RecordSubscribe(strategyID, amountUSD); err != nil {
		e.log.Warn().Err(err).Str("strategyId", string(strategyID)).Msg("Subscription bookkeeping failed")
	}
	e.log.Info().Str("owner", owner).Str("strategyId", string(strategyID)).Float64("amountUsd", amountUSD).Msg("Subscribed to strategy")
	return txRef, nil
}

// Unsubscribe exits the owner's position in a strategy entirely.
func (e *Engine) Unsubscribe(ctx context.Context, owner string, strategyID types.StrategyID) (string, error) {
	strategy, err := e.catalog.Get(strategyID)
	if err != nil {
		return "", err
	}
	position, err := e.findPosition(ctx, owner, strategyID)
	if err != nil {
		return "", err
	}
	adapter, err := e.registry.Get(strategy.Protocol.Platform)
	if err != nil {
		return "", err
	}

	txRef, err := adapter.ExecuteWithdraw(ctx, protocol.ActionParams{
		Owner:      owner,
		StrategyID: strategyID,
		Address:    position.Address,
		AmountUSD:  position.CurrentValueUSD,
	})
	if err != nil {
		return "", fmt.Errorf("unsubscribing from %s: %w", strategyID, err)
	}
	if err := e.catalog.RecordUnsubscribe(strategyID, position.CurrentValueUSD); err != nil {
		e.log.Warn().Err(err).Str("strategyId", string(strategyID)).Msg("Unsubscribe bookkeeping failed")
	}
	e.log.Info().Str("owner", owner).Str("strategyId", string(strategyID)).Msg("Unsubscribed from strategy")
	return txRef, nil
}

// HarvestResult summarizes one harvest: the accrued rewards, the performance
// fee kept by the strategy creator, and what the owner receives.
type HarvestResult struct {
	TxRef          string  `json:"tx_ref"`
	GrossRewardUSD float64 `json:"gross_reward_usd"`
	FeeUSD         float64 `json:"fee_usd"`
	NetRewardUSD   float64 `json:"net_reward_usd"`
}

// Harvest claims accrued rewards on the owner's position. Rewards accrue
// daily from the strategy's estimated APY since the last harvest; the
// strategy's fee is taken from the reward, never the principal.
func (e *Engine) Harvest(ctx context.Context, owner string, strategyID types.StrategyID) (HarvestResult, error) {
	strategy, err := e.catalog.Get(strategyID)
	if err != nil {
		return HarvestResult{}, err
	}
	position, err := e.findPosition(ctx, owner, strategyID)
	if err != nil {
		return HarvestResult{}, err
	}

	lastHarvest := position.LastHarvestAt
	if lastHarvest.IsZero() {
		lastHarvest = position.CreatedAt
	}
	days := int(e.now().Sub(lastHarvest).Hours() / 24)
	if days <= 0 {
		return HarvestResult{}, fmt.Errorf("%w: no rewards accrued yet", types.ErrInsufficientFunds)
	}

	dailyRate := strategy.EstimatedAPYPercent() / 100.0 / 365.0
	gross := position.InitialInvestmentUSD * dailyRate * float64(days)
	fee := gross * strategy.FeeFraction()

	adapter, err := e.registry.Get(strategy.Protocol.Platform)
	if err != nil {
		return HarvestResult{}, err
	}
	txRef, err := adapter.ExecuteHarvest(ctx, protocol.ActionParams{
		Owner:      owner,
		StrategyID: strategyID,
		Address:    position.Address,
	})
	if err != nil {
		return HarvestResult{}, fmt.Errorf("harvesting %s: %w", strategyID, err)
	}

	result := HarvestResult{
		TxRef:          txRef,
		GrossRewardUSD: gross,
		FeeUSD:         fee,
		NetRewardUSD:   gross - fee,
	}
	e.log.Info().
		Str("owner", owner).
		Str("strategyId", string(strategyID)).
		Float64("grossUsd", result.GrossRewardUSD).
		Float64("feeUsd", result.FeeUSD).
		Msg("Harvested rewards")
	return result, nil
}

// Rebalance triggers an on-chain rebalance of the owner's position.
func (e *Engine) Rebalance(ctx context.Context, owner string, strategyID types.StrategyID) (string, error) {
	strategy, err := e.catalog.Get(strategyID)
	if err != nil {
		return "", err
	}
	position, err := e.findPosition(ctx, owner, strategyID)
	if err != nil {
		return "", err
	}
	adapter, err := e.registry.Get(strategy.Protocol.Platform)
	if err != nil {
		return "", err
	}
	txRef, err := adapter.ExecuteRebalance(ctx, protocol.ActionParams{
		Owner:      owner,
		StrategyID: strategyID,
		Address:    position.Address,
	})
	if err != nil {
		return "", fmt.Errorf("rebalancing %s: %w", strategyID, err)
	}
	return txRef, nil
}

// StartMonitoring begins periodic risk checks for the owner.
func (e *Engine) StartMonitoring(ctx context.Context, owner string) {
	e.monitor.StartMonitoring(ctx, owner)
}

// StopMonitoring stops the owner's periodic risk checks.
func (e *Engine) StopMonitoring(owner string) {
	e.monitor.StopMonitoring(owner)
}

// MarkAlertRead flips the read flag on one alert; unknown ids are a no-op.
func (e *Engine) MarkAlertRead(owner, alertID string) bool {
	return e.alerts.MarkRead(owner, alertID)
}

// ClearAlerts removes all of the owner's alerts.
func (e *Engine) ClearAlerts(owner string) {
	e.alerts.ClearAll(owner)
}

// CreatePriceAlert registers a one-shot price threshold alert.
func (e *Engine) CreatePriceAlert(owner, tokenSymbol, feedID string, thresholdUSD float64, above bool) (types.PriceAlert, error) {
	if e.priceAlerts == nil {
		return types.PriceAlert{}, fmt.Errorf("%w: price alerts not configured", types.ErrUnsupported)
	}
	return e.priceAlerts.Create(owner, tokenSymbol, feedID, thresholdUSD, above)
}

// ListPriceAlerts returns the owner's price alerts.
func (e *Engine) ListPriceAlerts(owner string) ([]types.PriceAlert, error) {
	if e.priceAlerts == nil {
		return nil, fmt.Errorf("%w: price alerts not configured", types.ErrUnsupported)
	}
	return e.priceAlerts.List(owner), nil
}

// DeletePriceAlert removes one price alert.
func (e *Engine) DeletePriceAlert(owner, alertID string) error {
	if e.priceAlerts == nil {
		return fmt.Errorf("%w: price alerts not configured", types.ErrUnsupported)
	}
	return e.priceAlerts.Delete(owner, alertID)
}

// Shutdown stops all monitoring loops.
func (e *Engine) Shutdown() {
	e.monitor.StopAll()
	e.log.Info().Msg("Risk engine stopped")
}

// findPosition resolves the owner's live position in one strategy.
func (e *Engine) findPosition(ctx context.Context, owner string, strategyID types.StrategyID) (types.Position, error) {
	result := e.aggregator.Aggregate(ctx, owner)
	for _, position := range result.Positions {
		if position.StrategyID == strategyID {
			return position, nil
		}
	}
	if result.Degraded() {
		return types.Position{}, fmt.Errorf("%w: position lookup degraded by adapter failures", types.ErrUpstreamUnavailable)
	}
	return types.Position{}, fmt.Errorf("%w: no position in strategy %s for %s", types.ErrNotFound, strategyID, owner)
}
