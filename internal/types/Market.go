/*

This file contains the fused market snapshot type plus the raw per-source
market data shapes the analyzer consumes.

*/

package types

import "time"

// MarketTrend is the coarse market direction derived from lending rates.
type MarketTrend string

const (
	TrendBull    MarketTrend = "bull"
	TrendBear    MarketTrend = "bear"
	TrendNeutral MarketTrend = "neutral"
)

// MarketSnapshot is a point-in-time fused market signal. Recomputed each
// monitoring cycle; never mutated, only replaced.
type MarketSnapshot struct {
	ReferencePriceUSD   float64     `json:"reference_price_usd"`
	Trend               MarketTrend `json:"trend"`
	VolatilityIndex     float64     `json:"volatility_index"` // 0-10
	LendingRatePercent  float64     `json:"lending_rate_percent"` // interest-rate proxy (mean supply rate)
	TotalValueLockedUSD float64     `json:"total_value_locked_usd"`
	Timestamp           time.Time   `json:"timestamp"`
}

// PricePoint is one parsed oracle quote. Confidence is the oracle's absolute
// uncertainty in the same unit as Price.
type PricePoint struct {
	FeedID     string    `json:"feed_id"`
	Price      float64   `json:"price"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// LendingMarket is the parsed per-token lending market state of one platform.
type LendingMarket struct {
	Platform          string  `json:"platform"`
	TokenSymbol       string  `json:"token_symbol"`
	SupplyRatePercent float64 `json:"supply_rate_percent"`
	BorrowRatePercent float64 `json:"borrow_rate_percent"`
}

// LiquidityPool is the parsed state of one AMM pool.
type LiquidityPool struct {
	Platform    string  `json:"platform"`
	Name        string  `json:"name"`
	TVLUSD      float64 `json:"tvl_usd"`
	Volume24hUSD float64 `json:"volume_24h_usd"`
	FeePercent  float64 `json:"fee_percent"`
	APYPercent  float64 `json:"apy_percent"`
}

// FarmInfo is the parsed state of one yield farm.
type FarmInfo struct {
	Platform   string  `json:"platform"`
	Name       string  `json:"name"`
	APYPercent float64 `json:"apy_percent"`
	TVLUSD     float64 `json:"tvl_usd"`
}
