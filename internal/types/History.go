/*

This file contains the raw transaction history records and the reconstructed
analytics outputs for a position.

*/

package types

import "time"

// TransactionRecord is one parsed on-chain transaction touching a position.
// BalanceDeltas are signed token amount changes observed in the transaction
// (deposits positive, withdrawals negative), in whole-token units.
type TransactionRecord struct {
	Signature     string             `json:"signature"`
	Timestamp     time.Time          `json:"timestamp"`
	Logs          []string           `json:"logs,omitempty"`
	NetworkFeeUSD float64            `json:"network_fee_usd"`
	BalanceDeltas map[string]float64 `json:"balance_deltas,omitempty"`
}

// DailyReturn is one reconstructed day of position performance.
type DailyReturn struct {
	Date          time.Time `json:"date"`
	ValueUSD      float64   `json:"value_usd"`
	ReturnUSD     float64   `json:"return_usd"`
	ReturnPercent float64   `json:"return_percent"`
}

// FeeSummary aggregates fees discovered in the transaction history.
type FeeSummary struct {
	EarnedUSD float64 `json:"earned_usd"` // harvests and rewards
	PaidUSD   float64 `json:"paid_usd"`   // protocol and creator fees
}

// RebalanceEvent is one rebalance detected in the transaction history.
type RebalanceEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	NetworkFeeUSD float64   `json:"network_fee_usd"`
	Description   string    `json:"description"`
}

// PriceRange is the observed price band for one held token over the
// reconstruction window.
type PriceRange struct {
	Symbol  string  `json:"symbol"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Current float64 `json:"current"`
}

// PositionAnalytics is the full reconstructed performance view of a position.
// ImpermanentLossPercent is nil when not computable, which callers must
// distinguish from a computed zero.
type PositionAnalytics struct {
	DailyReturns           []DailyReturn         `json:"daily_returns"`
	ImpermanentLossPercent *float64              `json:"impermanent_loss_percent,omitempty"`
	Fees                   FeeSummary            `json:"fees"`
	RebalanceEvents        []RebalanceEvent      `json:"rebalance_events"`
	PriceRanges            map[string]PriceRange `json:"price_ranges"`
	MarkToMarketUSD        *float64              `json:"mark_to_market_usd,omitempty"`
	TotalReturnPercent     float64               `json:"total_return_percent"`
	AnnualizedVolatility   float64               `json:"annualized_volatility"`
}
