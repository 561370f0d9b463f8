/*

This file contains the reference lending-market adapter. It wraps one
platform's market data source, position reader and transaction submitter,
and falls back to the last-known-good cache when the data source is down.

*/

package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/cache"
	"github.com/sonicnav/riskengine/internal/datafetcher"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

const defaultCollateralFactor = 0.8

// LendingAdapter implements Adapter for a lending-market protocol.
type LendingAdapter struct {
	platform         string
	source           datafetcher.MarketDataSource
	positions        PositionReader
	submitter        datafetcher.TransactionSubmitter
	lkg              *cache.Store
	collateralFactor float64
	log              zerolog.Logger
}

// LendingConfig holds the dependencies of a lending adapter.
type LendingConfig struct {
	Platform         string
	Source           datafetcher.MarketDataSource
	Positions        PositionReader
	Submitter        datafetcher.TransactionSubmitter
	Cache            *cache.Store // optional
	CollateralFactor float64      // 0 means the platform default
}

// NewLendingAdapter validates dependencies and builds the adapter.
func NewLendingAdapter(cfg LendingConfig) (*LendingAdapter, error) {
	if cfg.Platform == "" {
		return nil, errors.New("platform cannot be empty")
	}
	if cfg.Source == nil {
		return nil, errors.New("market data source cannot be nil")
	}
	if cfg.Positions == nil {
		return nil, errors.New("position reader cannot be nil")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("transaction submitter cannot be nil")
	}
	cf := cfg.CollateralFactor
	if cf == 0 {
		cf = defaultCollateralFactor
	}
	if cf <= 0 || cf >= 1 {
		return nil, fmt.Errorf("collateral factor must be in (0,1), got %f", cf)
	}
	return &LendingAdapter{
		platform:         cfg.Platform,
		source:           cfg.Source,
		positions:        cfg.Positions,
		submitter:        cfg.Submitter,
		lkg:              cfg.Cache,
		collateralFactor: cf,
		log:              logger.GetForComponent("lending_adapter").With().Str("platform", cfg.Platform).Logger(),
	}, nil
}

func (a *LendingAdapter) Platform() string { return a.platform }

// GetAPY returns the platform's supply APYs per token. On upstream failure
// the last-known-good cache answers instead; the typed error propagates only
// when no cached value exists.
func (a *LendingAdapter) GetAPY(ctx context.Context) (map[string]float64, error) {
	apys, err := a.source.TokenAPYs(ctx)
	if err == nil {
		if cacheErr := a.lkg.SetAPYs(ctx, a.platform, apys); cacheErr != nil {
			a.log.Warn().Err(cacheErr).Msg("Failed to cache APYs")
		}
		return apys, nil
	}
	if errors.Is(err, types.ErrUpstreamUnavailable) {
		if cached, ok := a.lkg.GetAPYs(ctx, a.platform); ok {
			a.log.Warn().Err(err).Msg("Data source unavailable, serving last known APYs")
			return cached, nil
		}
	}
	return nil, err
}

// GetUserPositions returns the owner's lending positions with health factors
// filled in. No position means an empty list, not an error.
func (a *LendingAdapter) GetUserPositions(ctx context.Context, owner string) ([]types.Position, error) {
	positions, err := a.positions.Positions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("querying %s positions: %w", a.platform, err)
	}
	for i := range positions {
		positions[i].Platform = a.platform
		a.fillHealthFactors(&positions[i])
	}
	return positions, nil
}

// fillHealthFactors synthesizes a health factor for borrow legs that did not
// report one: collateral value scaled by the collateral factor over the
// borrow value. Sub-positions without a borrow leg carry none.
func (a *LendingAdapter) fillHealthFactors(position *types.Position) {
	for i := range position.SubPositions {
		sub := &position.SubPositions[i]
		if sub.HealthFactor != nil || sub.Borrow == nil {
			continue
		}
		if sub.Borrow.ValueUSD <= 0 || sub.ValueUSD <= 0 {
			continue
		}
		hf := sub.ValueUSD * a.collateralFactor / sub.Borrow.ValueUSD
		sub.HealthFactor = &hf
	}
}

func (a *LendingAdapter) submit(ctx context.Context, action string, params ActionParams) (string, error) {
	txRef, err := a.submitter.Submit(ctx, datafetcher.TxRequest{
		Platform:  a.platform,
		Action:    action,
		Owner:     params.Owner,
		Address:   params.Address,
		AmountUSD: params.AmountUSD,
	})
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", a.platform, action, err)
	}
	a.log.Info().Str("action", action).Str("owner", params.Owner).Str("txRef", txRef).Msg("Action submitted")
	return txRef, nil
}

func (a *LendingAdapter) ExecuteDeposit(ctx context.Context, params ActionParams) (string, error) {
	if params.AmountUSD <= 0 {
		return "", fmt.Errorf("%w: deposit amount must be positive", types.ErrInsufficientFunds)
	}
	return a.submit(ctx, "deposit", params)
}

func (a *LendingAdapter) ExecuteWithdraw(ctx context.Context, params ActionParams) (string, error) {
	if params.AmountUSD <= 0 {
		return "", fmt.Errorf("%w: withdraw amount must be positive", types.ErrInsufficientFunds)
	}
	return a.submit(ctx, "withdraw", params)
}

func (a *LendingAdapter) ExecuteHarvest(ctx context.Context, params ActionParams) (string, error) {
	return a.submit(ctx, "harvest", params)
}

func (a *LendingAdapter) ExecuteRebalance(ctx context.Context, params ActionParams) (string, error) {
	return a.submit(ctx, "rebalance", params)
}
