/*

This file contains the portfolio allocation optimizer. It turns ranked
strategy recommendations into a concrete percent-per-strategy target: one
sampled target per risk tier, normalized to 100, then split within each tier
proportionally to match scores. The sampler is injectable so tests and
callers that want reproducible output can pin it to the range midpoint.

*/

package analyzer

import (
	"errors"
	"fmt"

	"github.com/sonicnav/riskengine/internal/types"
)

var ErrNoAllocationTargets = errors.New("no allocation targets for risk tolerance")

// TargetSampler picks a tier target percentage within its configured range.
type TargetSampler func(r types.AllocationRange) float64

// MidpointSampler is the deterministic default sampler.
func MidpointSampler(r types.AllocationRange) float64 {
	return r.Midpoint()
}

// OptimizeAllocations distributes portfolio percentages across the
// recommended strategies. Strategies whose risk level is unknown to the
// catalog are skipped. A tier with no recommended strategies simply yields
// no allocation; its share is not redistributed.
func OptimizeAllocations(
	profile types.RiskProfile,
	recommendations []types.StrategyRecommendation,
	catalog []types.Strategy,
	params types.RiskParameters,
	sample TargetSampler,
) (map[types.StrategyID]float64, error) {
	targets, ok := params.AllocationTargets[profile.Tolerance]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAllocationTargets, profile.Tolerance)
	}
	if sample == nil {
		sample = MidpointSampler
	}

	levelByID := make(map[types.StrategyID]types.RiskLevel, len(catalog))
	for _, strategy := range catalog {
		levelByID[strategy.ID] = strategy.RiskLevel
	}

	tierTarget := map[types.RiskLevel]float64{
		types.RiskConservative: sample(targets.Conservative),
		types.RiskModerate:     sample(targets.Moderate),
		types.RiskAggressive:   sample(targets.Aggressive),
	}
	var total float64
	for _, target := range tierTarget {
		total += target
	}
	if total > 0 {
		for tier, target := range tierTarget {
			tierTarget[tier] = target / total * 100.0
		}
	}

	byTier := make(map[types.RiskLevel][]types.StrategyRecommendation)
	for _, rec := range recommendations {
		level, known := levelByID[rec.StrategyID]
		if !known {
			continue
		}
		// Experimental strategies fold into the aggressive tier.
		if level == types.RiskExperimental {
			level = types.RiskAggressive
		}
		byTier[level] = append(byTier[level], rec)
	}

	allocations := make(map[types.StrategyID]float64)
	for tier, target := range tierTarget {
		members := byTier[tier]
		if len(members) == 0 {
			continue
		}
		var scoreSum float64
		for _, rec := range members {
			scoreSum += rec.MatchScore
		}
		for _, rec := range members {
			if scoreSum > 0 {
				allocations[rec.StrategyID] = target * rec.MatchScore / scoreSum
			} else {
				allocations[rec.StrategyID] = target / float64(len(members))
			}
		}
	}
	return allocations, nil
}
