/*

This file contains the types for positions which contains all the state needed
for risk scoring, alerting and rebalancing advice.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// Position is one owner's live stake in a strategy. Created on subscribe,
// mutated by harvest/rebalance/deposit/withdraw, zeroed on full exit.
type Position struct {
	StrategyID           StrategyID    `json:"strategy_id"`
	Owner                string        `json:"owner"`
	Platform             string        `json:"platform"`        // tagged by the protocol adapter for action routing
	Address              string        `json:"address"`         // on-chain position account
	InitialInvestmentUSD float64       `json:"initial_investment_usd"`
	CurrentValueUSD      float64       `json:"current_value_usd"`
	ReturnsUSD           float64       `json:"returns_usd"`     // realized + unrealized
	CurrentAPYPercent    float64       `json:"current_apy_percent"`
	SubPositions         []SubPosition `json:"sub_positions,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	LastHarvestAt        time.Time     `json:"last_harvest_at,omitempty"`
}

// SubPosition is a single protocol/token leg inside a position. Amount is the
// raw on-chain integer amount; Precision gives its decimal scaling.
type SubPosition struct {
	Platform     string          `json:"platform"`
	TokenSymbol  string          `json:"token_symbol"`
	Amount       sdkmath.Int     `json:"amount"`
	Precision    int             `json:"precision"`
	ValueUSD     float64         `json:"value_usd"`
	Borrow       *BorrowPosition `json:"borrow,omitempty"`
	HealthFactor *float64        `json:"health_factor,omitempty"` // lending legs only; <1.0 means liquidatable
}

// BorrowPosition is the borrowed leg of a lending sub-position.
type BorrowPosition struct {
	TokenSymbol         string      `json:"token_symbol"`
	Amount              sdkmath.Int `json:"amount"`
	Precision           int         `json:"precision"`
	ValueUSD            float64     `json:"value_usd"`
	InterestRatePercent float64     `json:"interest_rate_percent"`
}

// ReturnFraction is the position return relative to the initial investment.
// Returns 0 for positions with no recorded initial investment.
func (p Position) ReturnFraction() float64 {
	if p.InitialInvestmentUSD <= 0 {
		return 0
	}
	return (p.CurrentValueUSD - p.InitialInvestmentUSD) / p.InitialInvestmentUSD
}

// MinHealthFactor returns the minimum health factor across lending legs and
// whether any leg reported one.
func (p Position) MinHealthFactor() (float64, bool) {
	min, found := 0.0, false
	for _, sub := range p.SubPositions {
		if sub.HealthFactor == nil {
			continue
		}
		if !found || *sub.HealthFactor < min {
			min = *sub.HealthFactor
			found = true
		}
	}
	return min, found
}
