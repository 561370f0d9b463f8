/*

This file contains the default risk parameters for the engine. These values
are used if no active parameters are found in the archive during
initialization.

*/

package config

import (
	"time"

	"github.com/sonicnav/riskengine/internal/types"
)

// DefaultRiskParameters provides the baseline thresholds for market
// classification, alerting, rebalancing advice and allocation targets.
var DefaultRiskParameters = types.RiskParameters{
	// --- Market Trend Classification ---
	BullRateThresholdPercent: 5.0, // mean supply rate above 5% reads as risk-on demand
	BearRateThresholdPercent: 2.0, // below 2% reads as risk-off

	// --- Liquidation Alerting ---
	LiquidationWarnHF:     1.25,
	LiquidationHighHF:     1.15,
	LiquidationCriticalHF: 1.05,

	// --- Impermanent Loss Alerting ---
	ILRiskAlertThreshold:    7.0,
	ILVolatilityGate:        6.0,
	ILHighSeverityThreshold: 8.5,

	// --- Position Decline Alerting ---
	DeclineAlertFraction:        -0.15,
	DeclineHighSeverityFraction: -0.25,

	// --- Portfolio-Level Alerting ---
	ConcentrationAlertFraction: 0.40,
	MarketVolatilityAlertIndex: 7.5,
	RiskyShareAlertFraction:    0.30,

	// --- Rebalancing Advice ---
	UnderperformFactor:   0.7,
	OutperformFactor:     1.2,
	OverexposureFraction: 0.4,

	// --- Monitoring Loop ---
	MonitorInterval:    5 * time.Minute,
	AdapterCallTimeout: 10 * time.Second,

	// --- Allocation Targets ---
	// Per-tolerance target ranges for the conservative/moderate/aggressive
	// tiers. Sampled targets are normalized to sum to 100.
	AllocationTargets: map[types.RiskTolerance]types.TierTargets{
		types.ToleranceLow: {
			Conservative: types.AllocationRange{Min: 60, Max: 80},
			Moderate:     types.AllocationRange{Min: 15, Max: 30},
			Aggressive:   types.AllocationRange{Min: 0, Max: 10},
		},
		types.ToleranceMedium: {
			Conservative: types.AllocationRange{Min: 40, Max: 60},
			Moderate:     types.AllocationRange{Min: 25, Max: 40},
			Aggressive:   types.AllocationRange{Min: 10, Max: 20},
		},
		types.ToleranceHigh: {
			Conservative: types.AllocationRange{Min: 20, Max: 40},
			Moderate:     types.AllocationRange{Min: 30, Max: 50},
			Aggressive:   types.AllocationRange{Min: 20, Max: 40},
		},
		types.ToleranceAggressive: {
			Conservative: types.AllocationRange{Min: 10, Max: 25},
			Moderate:     types.AllocationRange{Min: 25, Max: 40},
			Aggressive:   types.AllocationRange{Min: 40, Max: 60},
		},
	},
}
