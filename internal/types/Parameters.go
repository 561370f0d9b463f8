/*

This file contains the types for risk parameters, and other configurable
thresholds for the engine.

*/

package types

import "time"

// RiskParameters holds all tunable thresholds and coefficients used by the
// engine for market classification, alerting, advice and allocation. The
// trend/alert thresholds are deliberate simplifications, tunable by
// operators, not physics.
type RiskParameters struct {
	// --- Market Trend Classification ---
	BullRateThresholdPercent float64 `json:"bull_rate_threshold_percent"` // mean supply rate above this is a bull market
	BearRateThresholdPercent float64 `json:"bear_rate_threshold_percent"` // mean supply rate below this is a bear market

	// --- Liquidation Alerting ---
	LiquidationWarnHF     float64 `json:"liquidation_warn_hf"`     // health factor below this raises an alert
	LiquidationHighHF     float64 `json:"liquidation_high_hf"`     // below this the alert is high severity
	LiquidationCriticalHF float64 `json:"liquidation_critical_hf"` // below this the alert is critical

	// --- Impermanent Loss Alerting ---
	ILRiskAlertThreshold     float64 `json:"il_risk_alert_threshold"`     // IL risk (0-10) above this is alertable
	ILVolatilityGate         float64 `json:"il_volatility_gate"`          // market volatility index must also exceed this
	ILHighSeverityThreshold  float64 `json:"il_high_severity_threshold"`  // IL risk above this is high severity

	// --- Position Decline Alerting ---
	DeclineAlertFraction        float64 `json:"decline_alert_fraction"`         // e.g., -0.15 for a 15% drawdown
	DeclineHighSeverityFraction float64 `json:"decline_high_severity_fraction"` // e.g., -0.25

	// --- Portfolio-Level Alerting ---
	ConcentrationAlertFraction float64 `json:"concentration_alert_fraction"` // single-position share of total value
	MarketVolatilityAlertIndex float64 `json:"market_volatility_alert_index"`
	RiskyShareAlertFraction    float64 `json:"risky_share_alert_fraction"` // aggressive/experimental share of total value

	// --- Rebalancing Advice ---
	UnderperformFactor   float64 `json:"underperform_factor"`   // live APY below estimated*factor is underperforming
	OutperformFactor     float64 `json:"outperform_factor"`     // live APY above estimated*factor is outperforming
	OverexposureFraction float64 `json:"overexposure_fraction"` // position share of portfolio value

	// --- Monitoring Loop ---
	MonitorInterval    time.Duration `json:"monitor_interval"`
	AdapterCallTimeout time.Duration `json:"adapter_call_timeout"` // per-call bound for fanned-out adapter queries

	// --- Allocation Optimization ---
	// Target percentage ranges per risk tier, keyed by the profile tolerance.
	AllocationTargets map[RiskTolerance]TierTargets `json:"allocation_targets"`
}

// AllocationRange bounds a tier's target percentage of the portfolio.
type AllocationRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Midpoint is the deterministic pick inside the range.
func (r AllocationRange) Midpoint() float64 {
	return (r.Min + r.Max) / 2.0
}

// TierTargets are per-tier target ranges for one tolerance level. The three
// tiers are normalized to 100 after sampling.
type TierTargets struct {
	Conservative AllocationRange `json:"conservative"`
	Moderate     AllocationRange `json:"moderate"`
	Aggressive   AllocationRange `json:"aggressive"`
}
