/*

This file contains the derived recommendation outputs: strategy matches for a
risk profile and per-position rebalancing advice.

*/

package types

// StrategyRecommendation is one scored strategy match for a risk profile.
type StrategyRecommendation struct {
	StrategyID            StrategyID `json:"strategy_id"`
	MatchScore            float64    `json:"match_score"` // 0-100
	ExpectedReturnPercent float64    `json:"expected_return_percent"`
	RiskScore             float64    `json:"risk_score"` // 1-10
	Confidence            float64    `json:"confidence"` // ~0.7-0.9
	AllocationPercent     float64    `json:"allocation_percent"`
	Reasons               []string   `json:"reasons"`
}

// RebalanceAction is the advised direction for a position.
type RebalanceAction string

const (
	ActionIncrease RebalanceAction = "increase"
	ActionDecrease RebalanceAction = "decrease"
	ActionExit     RebalanceAction = "exit"
	ActionMaintain RebalanceAction = "maintain"
)

// Urgency orders rebalancing advice for display.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// RebalancingRecommendation is per-position advice from the advisor.
type RebalancingRecommendation struct {
	StrategyID       StrategyID      `json:"strategy_id"`
	Action           RebalanceAction `json:"action"`
	Percent          float64         `json:"percent"` // portion of the position the action applies to
	Reason           string          `json:"reason"`
	APYDeltaPercent  float64         `json:"apy_delta_percent"`
	RiskImpact       float64         `json:"risk_impact"`
	EstimatedFeesUSD float64         `json:"estimated_fees_usd"`
	Urgency          Urgency         `json:"urgency"`
}
