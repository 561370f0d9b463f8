/*

This file contains the rebalancing advisor. It compares each live position
against its strategy's estimated yield and the current market snapshot and
emits per-position action advice. The decision table is evaluated top to
bottom; the first matching rule wins.

*/

package advisor

import (
	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

// Advisor derives per-position rebalancing advice.
type Advisor struct {
	params types.RiskParameters
	log    zerolog.Logger
}

// NewAdvisor builds an advisor with the given thresholds.
func NewAdvisor(params types.RiskParameters) *Advisor {
	return &Advisor{
		params: params,
		log:    logger.GetForComponent("advisor"),
	}
}

// Advise walks the positions and emits one recommendation per position with
// a resolvable strategy. Positions whose strategy is missing from the
// catalog are skipped with a warning, never fatal for the batch.
func (a *Advisor) Advise(positions []types.Position, catalog []types.Strategy, snapshot types.MarketSnapshot) []types.RebalancingRecommendation {
	strategyByID := make(map[types.StrategyID]types.Strategy, len(catalog))
	for _, strategy := range catalog {
		strategyByID[strategy.ID] = strategy
	}

	var totalValue float64
	for _, position := range positions {
		totalValue += position.CurrentValueUSD
	}

	recommendations := make([]types.RebalancingRecommendation, 0, len(positions))
	for _, position := range positions {
		strategy, ok := strategyByID[position.StrategyID]
		if !ok {
			a.log.Warn().Str("strategyId", string(position.StrategyID)).Msg("Skipping position, strategy not in catalog")
			continue
		}
		recommendations = append(recommendations, a.advisePosition(position, strategy, snapshot, totalValue))
	}
	return recommendations
}

func (a *Advisor) advisePosition(position types.Position, strategy types.Strategy, snapshot types.MarketSnapshot, totalValue float64) types.RebalancingRecommendation {
	estimatedAPY := strategy.EstimatedAPYPercent()
	apy := position.CurrentAPYPercent

	positionRatio := 0.0
	if totalValue > 0 {
		positionRatio = position.CurrentValueUSD / totalValue
	}

	underperforming := apy < estimatedAPY*a.params.UnderperformFactor
	outperforming := apy > estimatedAPY*a.params.OutperformFactor

	action, percent, reason := a.decide(position, strategy, snapshot, positionRatio, underperforming, outperforming)

	return types.RebalancingRecommendation{
		StrategyID:       strategy.ID,
		Action:           action,
		Percent:          percent,
		Reason:           reason,
		APYDeltaPercent:  apyDelta(action, apy),
		RiskImpact:       riskImpact(action, strategy.RiskLevel),
		EstimatedFeesUSD: position.CurrentValueUSD * strategy.FeeFraction(),
		Urgency:          urgency(action),
	}
}

// decide applies the decision table; the first matching rule wins.
func (a *Advisor) decide(position types.Position, strategy types.Strategy, snapshot types.MarketSnapshot, positionRatio float64, underperforming, outperforming bool) (types.RebalanceAction, float64, string) {
	switch {
	case underperforming && snapshot.Trend == types.TrendBear && strategy.RiskLevel != types.RiskConservative:
		return types.ActionDecrease, 50, "underperforming in bear market"
	case underperforming && position.CurrentValueUSD < 0.9*position.InitialInvestmentUSD:
		return types.ActionExit, 100, "persistent underperformance with capital loss"
	case underperforming:
		return types.ActionDecrease, 30, "yield well below the strategy estimate"
	case outperforming && snapshot.Trend == types.TrendBull && strategy.ProtocolType == types.ProtocolLiquidityProviding:
		return types.ActionIncrease, 30, "outperforming liquidity pool in a bull market"
	case outperforming:
		return types.ActionMaintain, 0, "outperforming, holding current allocation"
	case positionRatio > a.params.OverexposureFraction:
		return types.ActionDecrease, 20, "overexposed"
	default:
		return types.ActionMaintain, 0, ""
	}
}

// apyDelta is a heuristic potential yield change from taking the action.
func apyDelta(action types.RebalanceAction, apy float64) float64 {
	switch action {
	case types.ActionIncrease:
		return apy * 0.10
	case types.ActionDecrease:
		return -apy * 0.05
	case types.ActionExit:
		return -apy * 0.10
	default:
		return 0
	}
}

func riskImpact(action types.RebalanceAction, level types.RiskLevel) float64 {
	risky := level == types.RiskAggressive || level == types.RiskExperimental
	switch action {
	case types.ActionExit:
		return -5
	case types.ActionIncrease:
		if risky {
			return 3
		}
		return 1
	case types.ActionDecrease:
		if risky {
			return -3
		}
		return -1
	default:
		return 0
	}
}

func urgency(action types.RebalanceAction) types.Urgency {
	switch action {
	case types.ActionExit:
		return types.UrgencyHigh
	case types.ActionIncrease:
		return types.UrgencyMedium
	default:
		return types.UrgencyLow
	}
}
