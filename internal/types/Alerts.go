/*

This file contains the alert types raised by the monitoring engine and the
user-defined price alerts evaluated against oracle quotes.

*/

package types

import "time"

// AlertSeverity orders alerts for display and sink routing.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType classifies the risk condition that raised an alert.
type AlertType string

const (
	AlertLiquidation      AlertType = "liquidation"
	AlertImpermanentLoss  AlertType = "impermanent_loss"
	AlertProtocolRisk     AlertType = "protocol_risk"
	AlertMarketVolatility AlertType = "market_volatility"
	AlertPositionDecline  AlertType = "position_decline"
)

// RiskAlert is one raised alert. Mutated only to flip Read; retained until
// the owner clears it. At most one unread alert may exist per
// (owner, type, strategy) key.
type RiskAlert struct {
	ID               string             `json:"id"`
	Owner            string             `json:"owner"`
	CreatedAt        time.Time          `json:"created_at"`
	Severity         AlertSeverity      `json:"severity"`
	Type             AlertType          `json:"type"`
	Message          string             `json:"message"`
	StrategyID       StrategyID         `json:"strategy_id,omitempty"`
	Details          map[string]float64 `json:"details,omitempty"`
	Read             bool               `json:"read"`
	SuggestedActions []string           `json:"suggested_actions,omitempty"`
}

// MaxPriceAlertsPerOwner caps active user price alerts per owner.
const MaxPriceAlertsPerOwner = 10

// PriceAlert is a user-defined threshold alert on one token price.
type PriceAlert struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	TokenSymbol  string    `json:"token_symbol"`
	FeedID       string    `json:"feed_id"`
	ThresholdUSD float64   `json:"threshold_usd"`
	Above        bool      `json:"above"` // true: trigger at/above threshold, false: at/below
	CreatedAt    time.Time `json:"created_at"`
	Triggered    bool      `json:"triggered"`
}
