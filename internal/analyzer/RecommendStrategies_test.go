package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicnav/riskengine/internal/types"
)

func testCatalog() []types.Strategy {
	return []types.Strategy{
		{ID: "cons-lend", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative, EstimatedAPYBps: 500, TVLUSD: 5e8},
		{ID: "mod-stake", ProtocolType: types.ProtocolStaking, RiskLevel: types.RiskModerate, EstimatedAPYBps: 1500, TVLUSD: 2e8},
		{ID: "aggr-lp", ProtocolType: types.ProtocolLiquidityProviding, RiskLevel: types.RiskAggressive, EstimatedAPYBps: 3500, TVLUSD: 1e8},
	}
}

func TestLowToleranceKeepsOnlyConservative(t *testing.T) {
	profile := types.RiskProfile{Tolerance: types.ToleranceLow, Horizon: types.HorizonMedium, LiquidityNeeds: types.LiquidityMedium}

	recs := RecommendStrategies(testCatalog(), profile, snapshotWith(types.TrendNeutral, 5))

	require.Len(t, recs, 1)
	assert.Equal(t, types.StrategyID("cons-lend"), recs[0].StrategyID)
}

func TestMediumToleranceExcludesAggressive(t *testing.T) {
	profile := types.RiskProfile{Tolerance: types.ToleranceMedium}

	recs := RecommendStrategies(testCatalog(), profile, snapshotWith(types.TrendNeutral, 5))

	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.NotEqual(t, types.StrategyID("aggr-lp"), rec.StrategyID)
	}
}

func TestHighToleranceExcludesExperimental(t *testing.T) {
	catalog := append(testCatalog(), types.Strategy{
		ID: "exp-farm", ProtocolType: types.ProtocolYieldFarming, RiskLevel: types.RiskExperimental, EstimatedAPYBps: 9000,
	})
	profile := types.RiskProfile{Tolerance: types.ToleranceHigh}

	recs := RecommendStrategies(catalog, profile, snapshotWith(types.TrendNeutral, 5))

	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.NotEqual(t, types.StrategyID("exp-farm"), rec.StrategyID)
	}
}

func TestMatchScoreBonuses(t *testing.T) {
	// Catalog mean APY is (5+15+35)/3 ≈ 18.33; the aggressive LP strategy at
	// 35% clears 1.2x the mean. With high tolerance (tier match, +20), a bull
	// trend (+10 for LP) and the APY bonus (+10), its score is 35+20+10+10=75.
	profile := types.RiskProfile{Tolerance: types.ToleranceHigh, LiquidityNeeds: types.LiquidityLow}

	recs := RecommendStrategies(testCatalog(), profile, snapshotWith(types.TrendBull, 5))

	require.NotEmpty(t, recs)
	top := recs[0]
	assert.Equal(t, types.StrategyID("aggr-lp"), top.StrategyID)
	assert.InDelta(t, 75.0, top.MatchScore, 1e-9)
	assert.Equal(t, 30.0, top.AllocationPercent)
	assert.NotEmpty(t, top.Reasons)
}

func TestLendingBonusInBearMarket(t *testing.T) {
	profile := types.RiskProfile{Tolerance: types.ToleranceLow}

	bear := RecommendStrategies(testCatalog(), profile, snapshotWith(types.TrendBear, 5))
	neutral := RecommendStrategies(testCatalog(), profile, snapshotWith(types.TrendNeutral, 5))

	require.Len(t, bear, 1)
	require.Len(t, neutral, 1)
	assert.InDelta(t, 15.0, bear[0].MatchScore-neutral[0].MatchScore, 1e-9)
}

func TestHighLiquidityNeedsPenalizeStaking(t *testing.T) {
	profile := types.RiskProfile{Tolerance: types.ToleranceMedium, LiquidityNeeds: types.LiquidityHigh}

	recs := RecommendStrategies(testCatalog(), profile, snapshotWith(types.TrendNeutral, 5))

	var staking types.StrategyRecommendation
	for _, rec := range recs {
		if rec.StrategyID == "mod-stake" {
			staking = rec
		}
	}
	// 15 APY + 20 tier match - 10 liquidity penalty.
	assert.InDelta(t, 25.0, staking.MatchScore, 1e-9)
}

func TestRiskScoreAdjustments(t *testing.T) {
	catalog := []types.Strategy{
		{ID: "a-lend", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative, EstimatedAPYBps: 400},
		{ID: "b-farm", ProtocolType: types.ProtocolYieldFarming, RiskLevel: types.RiskModerate, EstimatedAPYBps: 6000},
	}
	profile := types.RiskProfile{Tolerance: types.ToleranceAggressive}

	recs := RecommendStrategies(catalog, profile, snapshotWith(types.TrendNeutral, 5))

	byID := map[types.StrategyID]types.StrategyRecommendation{}
	for _, rec := range recs {
		byID[rec.StrategyID] = rec
	}
	// Conservative lending: base 2 minus 1, clamped at 1.
	assert.Equal(t, 1.0, byID["a-lend"].RiskScore)
	// Moderate farming over 50% APY: base 5 +1 farming +1 APY.
	assert.Equal(t, 7.0, byID["b-farm"].RiskScore)
}

func TestConfidenceScalesWithTVL(t *testing.T) {
	catalog := []types.Strategy{
		{ID: "big", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative, EstimatedAPYBps: 500, TVLUSD: 1e9},
		{ID: "small", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative, EstimatedAPYBps: 500, TVLUSD: 0},
	}
	recs := RecommendStrategies(catalog, types.RiskProfile{Tolerance: types.ToleranceLow}, snapshotWith(types.TrendNeutral, 5))

	byID := map[types.StrategyID]float64{}
	for _, rec := range recs {
		byID[rec.StrategyID] = rec.Confidence
	}
	assert.InDelta(t, 0.9, byID["big"], 1e-9)
	assert.InDelta(t, 0.7, byID["small"], 1e-9)
}

func TestRecommendationOrderIsDeterministic(t *testing.T) {
	catalog := []types.Strategy{
		{ID: "zeta", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative, EstimatedAPYBps: 500},
		{ID: "alpha", ProtocolType: types.ProtocolLending, RiskLevel: types.RiskConservative, EstimatedAPYBps: 500},
	}
	recs := RecommendStrategies(catalog, types.RiskProfile{Tolerance: types.ToleranceLow}, snapshotWith(types.TrendNeutral, 5))

	require.Len(t, recs, 2)
	assert.Equal(t, recs[0].MatchScore, recs[1].MatchScore)
	assert.Equal(t, types.StrategyID("alpha"), recs[0].StrategyID)
	assert.Equal(t, types.StrategyID("zeta"), recs[1].StrategyID)
}
