/*

This file contains the risk profile declared by users and the derived
per-position risk metrics. Metrics are recomputed every cycle and never stored.

*/

package types

// RiskTolerance is the user-declared appetite for loss.
type RiskTolerance string

const (
	ToleranceLow        RiskTolerance = "low"
	ToleranceMedium     RiskTolerance = "medium"
	ToleranceHigh       RiskTolerance = "high"
	ToleranceAggressive RiskTolerance = "aggressive"
)

// InvestmentHorizon is how long the user intends to stay invested.
type InvestmentHorizon string

const (
	HorizonShort  InvestmentHorizon = "short"
	HorizonMedium InvestmentHorizon = "medium"
	HorizonLong   InvestmentHorizon = "long"
)

// LiquidityNeeds is how quickly the user may need to exit.
type LiquidityNeeds string

const (
	LiquidityLow    LiquidityNeeds = "low"
	LiquidityMedium LiquidityNeeds = "medium"
	LiquidityHigh   LiquidityNeeds = "high"
)

// RiskProfile captures a user's preferences from the assessment
// questionnaire. Immutable per assessment; regenerated on retake.
type RiskProfile struct {
	Tolerance           RiskTolerance     `json:"tolerance"`
	Horizon             InvestmentHorizon `json:"horizon"`
	LiquidityNeeds      LiquidityNeeds    `json:"liquidity_needs"`
	VolatilityTolerance int               `json:"volatility_tolerance"` // 1-10
	ExperienceLevel     string            `json:"experience_level"`
}

// PositionRiskMetrics is the derived risk view of one position against one
// market snapshot. All sub-metrics are bounded 0-10, OverallScore 0-100.
type PositionRiskMetrics struct {
	HealthFactor        float64 `json:"health_factor"`
	VolatilityExposure  float64 `json:"volatility_exposure"`
	ImpermanentLossRisk float64 `json:"impermanent_loss_risk"`
	ConcentrationRisk   float64 `json:"concentration_risk"`
	ProtocolRisk        float64 `json:"protocol_risk"`
	OverallScore        float64 `json:"overall_score"`
}
