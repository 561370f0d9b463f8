/*

This file contains the pure per-position risk metric calculation. Identical
inputs always yield identical output; there is no hidden randomness and no
I/O. The overall score weighting favors health factor since it signals
imminent loss.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/sonicnav/riskengine/internal/types"
)

var ErrInvalidMetricInput = errors.New("invalid risk metric input")

// Fixed mid-scale placeholders. Refinements must stay in [0,10].
const (
	placeholderConcentrationRisk = 5.0
	placeholderProtocolRisk      = 4.0
)

// healthyHealthFactor is reported for strategies where liquidation does not
// apply.
const healthyHealthFactor = 2.0

// Overall score weights. Preserved exactly for reproducibility.
const (
	healthFactorWeight  = 20.0
	volatilityWeight    = 3.0
	ilRiskWeight        = 2.0
	concentrationWeight = 2.0
	protocolWeight      = 3.0
)

// CalculateRiskMetrics computes the derived risk view of one position
// against one market snapshot.
func CalculateRiskMetrics(position types.Position, strategy types.Strategy, snapshot types.MarketSnapshot) (types.PositionRiskMetrics, error) {
	if position.StrategyID != strategy.ID {
		return types.PositionRiskMetrics{}, fmt.Errorf("%w: position references strategy %s, got %s",
			ErrInvalidMetricInput, position.StrategyID, strategy.ID)
	}
	if math.IsNaN(snapshot.VolatilityIndex) || math.IsInf(snapshot.VolatilityIndex, 0) {
		return types.PositionRiskMetrics{}, fmt.Errorf("%w: volatility index is not finite", ErrInvalidMetricInput)
	}

	metrics := types.PositionRiskMetrics{
		HealthFactor:        healthFactor(position, strategy, snapshot),
		VolatilityExposure:  volatilityExposure(strategy.RiskLevel, snapshot.VolatilityIndex),
		ImpermanentLossRisk: impermanentLossRisk(strategy, snapshot),
		ConcentrationRisk:   placeholderConcentrationRisk,
		ProtocolRisk:        placeholderProtocolRisk,
	}

	score := healthFactorWeight*(2.0-metrics.HealthFactor) +
		metrics.VolatilityExposure*volatilityWeight +
		metrics.ImpermanentLossRisk*ilRiskWeight +
		metrics.ConcentrationRisk*concentrationWeight +
		metrics.ProtocolRisk*protocolWeight
	metrics.OverallScore = clamp(score, 0, 100)

	return metrics, nil
}

// healthFactor reports the real minimum health factor of lending legs when
// present; a position below 1.0 is liquidatable and the value is never
// clamped away. Without reported legs a synthetic value is derived from the
// risk level and market volatility.
func healthFactor(position types.Position, strategy types.Strategy, snapshot types.MarketSnapshot) float64 {
	if strategy.ProtocolType != types.ProtocolLending {
		return healthyHealthFactor
	}
	if min, ok := position.MinHealthFactor(); ok {
		return min
	}

	base := map[types.RiskLevel]float64{
		types.RiskConservative: 2.0,
		types.RiskModerate:     1.7,
		types.RiskAggressive:   1.4,
		types.RiskExperimental: 1.2,
	}[strategy.RiskLevel]

	// Up to 0.3 of downward stress as volatility moves past 5 toward 10.
	if snapshot.VolatilityIndex > 5 {
		base -= 0.3 * math.Min(1.0, (snapshot.VolatilityIndex-5)/5.0)
	}
	return math.Max(0.95, base)
}

func volatilityExposure(level types.RiskLevel, volatilityIndex float64) float64 {
	base := map[types.RiskLevel]float64{
		types.RiskConservative: 2,
		types.RiskModerate:     5,
		types.RiskAggressive:   7,
		types.RiskExperimental: 9,
	}[level]
	return clamp(base+(volatilityIndex-5)*0.2, 0, 10)
}

func impermanentLossRisk(strategy types.Strategy, snapshot types.MarketSnapshot) float64 {
	if strategy.ProtocolType != types.ProtocolLiquidityProviding {
		return 0
	}
	base := map[types.RiskLevel]float64{
		types.RiskConservative: 3,
		types.RiskModerate:     5,
		types.RiskAggressive:   7,
		types.RiskExperimental: 8,
	}[strategy.RiskLevel]
	risk := base + (snapshot.VolatilityIndex-5)*0.4
	// Directional moves stress an LP either way.
	if snapshot.Trend == types.TrendBull || snapshot.Trend == types.TrendBear {
		risk += 1
	}
	return clamp(risk, 0, 10)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
