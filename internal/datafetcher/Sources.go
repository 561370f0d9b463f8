/*

This file defines the external collaborator contracts the engine consumes:
the price oracle, per-protocol market data sources, the on-chain transaction
history reader, the transaction submitter and the notification sink. All are
injected; reference HTTP implementations live alongside in this package.

*/

package datafetcher

import (
	"context"
	"time"

	"github.com/sonicnav/riskengine/internal/types"
)

// PriceOracle returns parsed latest quotes for a set of feed IDs. Feeds the
// oracle does not know are omitted from the result, not errors.
type PriceOracle interface {
	GetLatestPrices(ctx context.Context, feedIDs []string) ([]types.PricePoint, error)
}

// MarketDataSource is the parsed market data surface of one protocol
// platform. Sources that do not serve a data family return empty slices.
type MarketDataSource interface {
	Platform() string
	LendingMarkets(ctx context.Context) ([]types.LendingMarket, error)
	LiquidityPools(ctx context.Context) ([]types.LiquidityPool, error)
	Farms(ctx context.Context) ([]types.FarmInfo, error)
	// TokenAPYs is the per-token supply/staking APY view used by adapters.
	TokenAPYs(ctx context.Context) (map[string]float64, error)
}

// TransactionReader supplies raw transaction records for a position address.
type TransactionReader interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]string, error)
	GetTransaction(ctx context.Context, signature string) (types.TransactionRecord, error)
}

// HistoricalPriceReader supplies historical quotes for one feed over a
// window, oldest first. Missing days are simply absent from the result.
type HistoricalPriceReader interface {
	HistoricalPrices(ctx context.Context, feedID string, from, to time.Time) ([]types.PricePoint, error)
}

// TxRequest describes one on-chain action for the submitter.
type TxRequest struct {
	Platform  string  `json:"platform"`
	Action    string  `json:"action"` // deposit, withdraw, harvest, rebalance
	Owner     string  `json:"owner"`
	Address   string  `json:"address,omitempty"`
	AmountUSD float64 `json:"amount_usd,omitempty"`
}

// TransactionSubmitter performs exactly one submission attempt and surfaces
// failure as one of the typed errors (ErrInsufficientFunds,
// ErrSlippageExceeded, ErrUpstreamUnavailable, ErrUnsupported). Retry policy
// belongs to the caller.
type TransactionSubmitter interface {
	Submit(ctx context.Context, req TxRequest) (string, error)
}

// NotificationSink receives well-formed alert notifications. Failures are
// logged by callers and never propagate into the monitoring loop.
type NotificationSink interface {
	Notify(ctx context.Context, owner, title, message string, severity types.AlertSeverity) error
}
