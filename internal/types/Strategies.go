/*

This is a custom type for strategies which contains all the state needed for
risk scoring and recommendations. Strategies are immutable catalog entries
created by strategy issuers; the engine only reads them.

*/

package types

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type StrategyID string

// ProtocolType classifies the DeFi protocol family a strategy allocates into.
type ProtocolType string

const (
	ProtocolLending            ProtocolType = "lending"
	ProtocolYieldFarming       ProtocolType = "yield_farming"
	ProtocolLiquidityProviding ProtocolType = "liquidity_providing"
	ProtocolStaking            ProtocolType = "staking"
)

// RiskLevel is the issuer-declared risk classification of a strategy.
type RiskLevel string

const (
	RiskConservative RiskLevel = "conservative"
	RiskModerate     RiskLevel = "moderate"
	RiskAggressive   RiskLevel = "aggressive"
	RiskExperimental RiskLevel = "experimental"
)

// TokenAllocation is one (token, percentage) leg of a strategy. The legs of a
// strategy always sum to 100.
type TokenAllocation struct {
	Symbol  string  `json:"symbol"`  // e.g., "SOL"
	Percent float64 `json:"percent"` // 0-100
}

// ProtocolConfig carries the protocol-specific knobs of a strategy. Platform
// selects the adapter that executes actions for the strategy.
type ProtocolConfig struct {
	Platform         string            `json:"platform"`                    // adapter registry key, e.g., "solend"
	PriceFeedIDs     map[string]string `json:"price_feed_ids"`              // token symbol -> oracle feed ID
	CollateralFactor float64           `json:"collateral_factor,omitempty"` // lending only, 0-1
	HarvestFreqHours int               `json:"harvest_freq_hours,omitempty"`
}

// Strategy is an immutable, shareable DeFi allocation plan. Versioned by
// UpdatedAt; read-only to the engine.
type Strategy struct {
	ID               StrategyID        `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Creator          string            `json:"creator"`
	ProtocolType     ProtocolType      `json:"protocol_type"`
	RiskLevel        RiskLevel         `json:"risk_level"`
	Tokens           []TokenAllocation `json:"tokens"`
	EstimatedAPYBps  uint32            `json:"estimated_apy_bps"` // e.g., 1500 = 15%
	TVLUSD           float64           `json:"tvl_usd"`
	FeeBps           uint16            `json:"fee_bps"` // creator fee, e.g., 30 = 0.3%
	MinInvestmentUSD float64           `json:"min_investment_usd"`
	LockupPeriodDays uint16            `json:"lockup_period_days"`
	UserCount        uint32            `json:"user_count"`
	Verified         bool              `json:"verified"`
	Protocol         ProtocolConfig    `json:"protocol"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// EstimatedAPYPercent converts the basis-point APY to percent.
func (s Strategy) EstimatedAPYPercent() float64 {
	return float64(s.EstimatedAPYBps) / 100.0
}

// FeeFraction converts the basis-point fee to a fraction (30 bps -> 0.003).
func (s Strategy) FeeFraction() float64 {
	return float64(s.FeeBps) / 10000.0
}

const allocationSumTolerance = 1e-6

var (
	ErrInvalidAllocation = errors.New("token allocations must sum to 100")
	ErrInvalidStrategy   = errors.New("invalid strategy")
)

// Validate enforces the construction-time invariants on a strategy.
func (s Strategy) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty strategy ID", ErrInvalidStrategy)
	}
	if s.Protocol.Platform == "" {
		return fmt.Errorf("%w: strategy %s has no platform", ErrInvalidStrategy, s.ID)
	}
	switch s.ProtocolType {
	case ProtocolLending, ProtocolYieldFarming, ProtocolLiquidityProviding, ProtocolStaking:
	default:
		return fmt.Errorf("%w: unknown protocol type %q", ErrInvalidStrategy, s.ProtocolType)
	}
	switch s.RiskLevel {
	case RiskConservative, RiskModerate, RiskAggressive, RiskExperimental:
	default:
		return fmt.Errorf("%w: unknown risk level %q", ErrInvalidStrategy, s.RiskLevel)
	}
	if len(s.Tokens) == 0 {
		return fmt.Errorf("%w: strategy %s has no token allocations", ErrInvalidStrategy, s.ID)
	}
	var sum float64
	for _, t := range s.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("%w: empty token symbol in strategy %s", ErrInvalidStrategy, s.ID)
		}
		if t.Percent < 0 || math.IsNaN(t.Percent) || math.IsInf(t.Percent, 0) {
			return fmt.Errorf("%w: allocation for %s is not a valid percentage", ErrInvalidStrategy, t.Symbol)
		}
		sum += t.Percent
	}
	if math.Abs(sum-100.0) > allocationSumTolerance {
		return fmt.Errorf("%w: got %.6f", ErrInvalidAllocation, sum)
	}
	if s.TVLUSD < 0 || s.MinInvestmentUSD < 0 {
		return fmt.Errorf("%w: negative USD amount on strategy %s", ErrInvalidStrategy, s.ID)
	}
	return nil
}
