/*

This file contains the strategy recommendation scorer. It filters a strategy
catalog against a risk profile, scores the survivors against the profile and
current market conditions, and returns them ranked. The scoring is
deterministic; the only market input is the snapshot passed in.

*/

package analyzer

import (
	"fmt"
	"sort"

	"github.com/sonicnav/riskengine/internal/types"
)

// Allocation bands by match score.
const (
	allocationBandTop    = 30.0
	allocationBandUpper  = 20.0
	allocationBandMiddle = 10.0
	allocationBandFloor  = 5.0
)

// RecommendStrategies filters and scores a strategy catalog for one risk
// profile. The returned slice is sorted by match score descending; ties are
// broken by strategy identifier so output order is stable.
func RecommendStrategies(catalog []types.Strategy, profile types.RiskProfile, snapshot types.MarketSnapshot) []types.StrategyRecommendation {
	meanAPY := catalogMeanAPY(catalog)

	recommendations := make([]types.StrategyRecommendation, 0, len(catalog))
	for _, strategy := range catalog {
		if !riskLevelAllowed(strategy.RiskLevel, profile.Tolerance) {
			continue
		}
		recommendations = append(recommendations, scoreStrategy(strategy, profile, snapshot, meanAPY))
	}

	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].MatchScore != recommendations[j].MatchScore {
			return recommendations[i].MatchScore > recommendations[j].MatchScore
		}
		return recommendations[i].StrategyID < recommendations[j].StrategyID
	})
	return recommendations
}

// riskLevelAllowed gates catalog entries by tolerance. Low tolerance keeps
// only conservative strategies; medium additionally allows moderate; high
// allows everything short of experimental, which only aggressive tolerance
// accepts.
func riskLevelAllowed(level types.RiskLevel, tolerance types.RiskTolerance) bool {
	switch tolerance {
	case types.ToleranceLow:
		return level == types.RiskConservative
	case types.ToleranceMedium:
		return level == types.RiskConservative || level == types.RiskModerate
	case types.ToleranceHigh:
		return level != types.RiskExperimental
	default:
		return true
	}
}

func scoreStrategy(strategy types.Strategy, profile types.RiskProfile, snapshot types.MarketSnapshot, meanAPY float64) types.StrategyRecommendation {
	apy := strategy.EstimatedAPYPercent()
	score := apy
	reasons := make([]string, 0, 6)

	if toleranceTier(profile.Tolerance) == strategy.RiskLevel {
		score += 20
		reasons = append(reasons, fmt.Sprintf("%s risk level matches your %s risk tolerance", strategy.RiskLevel, profile.Tolerance))
	}

	if profile.LiquidityNeeds == types.LiquidityHigh {
		switch strategy.ProtocolType {
		case types.ProtocolStaking:
			score -= 10
			reasons = append(reasons, "staking lockups conflict with high liquidity needs")
		case types.ProtocolLiquidityProviding:
			score += 10
			reasons = append(reasons, "liquidity pool positions can be exited quickly")
		}
	}

	if strategy.ProtocolType == types.ProtocolLiquidityProviding && snapshot.Trend == types.TrendBull {
		score += 10
		reasons = append(reasons, "liquidity provision benefits from bull market volume")
	}
	if strategy.ProtocolType == types.ProtocolLending && snapshot.Trend == types.TrendBear {
		score += 15
		reasons = append(reasons, "lending yields hold up well in bear markets")
	}

	if meanAPY > 0 && apy > meanAPY*1.2 {
		score += 10
		reasons = append(reasons, fmt.Sprintf("APY of %.1f%% is well above the catalog average of %.1f%%", apy, meanAPY))
	}

	if profile.Horizon == types.HorizonLong &&
		(strategy.ProtocolType == types.ProtocolStaking || strategy.ProtocolType == types.ProtocolLending) {
		reasons = append(reasons, "suits a long investment horizon")
	}
	if snapshot.ReferencePriceUSD > 0 {
		reasons = append(reasons, fmt.Sprintf("reference token currently trades at $%.2f", snapshot.ReferencePriceUSD))
	}

	score = clamp(score, 0, 100)

	return types.StrategyRecommendation{
		StrategyID:            strategy.ID,
		MatchScore:            score,
		ExpectedReturnPercent: apy,
		RiskScore:             strategyRiskScore(strategy),
		Confidence:            0.7 + (strategy.TVLUSD/1e9)*0.2,
		AllocationPercent:     allocationBand(score),
		Reasons:               reasons,
	}
}

// toleranceTier maps a declared tolerance onto the strategy risk level it
// most directly corresponds to.
func toleranceTier(tolerance types.RiskTolerance) types.RiskLevel {
	switch tolerance {
	case types.ToleranceLow:
		return types.RiskConservative
	case types.ToleranceMedium:
		return types.RiskModerate
	case types.ToleranceHigh:
		return types.RiskAggressive
	default:
		return types.RiskExperimental
	}
}

func allocationBand(score float64) float64 {
	switch {
	case score > 70:
		return allocationBandTop
	case score > 50:
		return allocationBandUpper
	case score > 30:
		return allocationBandMiddle
	default:
		return allocationBandFloor
	}
}

// strategyRiskScore produces the 1-10 risk score shown alongside each
// recommendation.
func strategyRiskScore(strategy types.Strategy) float64 {
	score := map[types.RiskLevel]float64{
		types.RiskConservative: 2,
		types.RiskModerate:     5,
		types.RiskAggressive:   7,
		types.RiskExperimental: 9,
	}[strategy.RiskLevel]

	switch strategy.ProtocolType {
	case types.ProtocolYieldFarming:
		score += 1
	case types.ProtocolLending:
		score -= 1
	}
	if strategy.EstimatedAPYPercent() > 50 {
		score += 1
	}
	return clamp(score, 1, 10)
}

func catalogMeanAPY(catalog []types.Strategy) float64 {
	if len(catalog) == 0 {
		return 0
	}
	var total float64
	for _, strategy := range catalog {
		total += strategy.EstimatedAPYPercent()
	}
	return total / float64(len(catalog))
}
