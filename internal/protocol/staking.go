/*

This file contains the reference liquid-staking adapter. Staking positions
have no borrow legs and no rebalance action; rebalance requests surface
ErrUnsupported.

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

// StakingAdapter implements Adapter for a liquid-staking protocol.
type StakingAdapter struct {
	platform  string
	source    datafetcher.MarketDataSource
	positions PositionReader
	submitter datafetcher.TransactionSubmitter
	lkg       *cache.Store
	log       zerolog.Logger
}

// StakingConfig holds the dependencies of a staking adapter.
type StakingConfig struct {
	Platform  string
	Source    datafetcher.MarketDataSource
	Positions PositionReader
	Submitter datafetcher.TransactionSubmitter
	Cache     *cache.Store // optional
}

// NewStakingAdapter validates dependencies and builds the adapter.
func NewStakingAdapter(cfg StakingConfig) (*StakingAdapter, error) {
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
	return &StakingAdapter{
		platform:  cfg.Platform,
		source:    cfg.Source,
		positions: cfg.Positions,
		submitter: cfg.Submitter,
		lkg:       cfg.Cache,
		log:       logger.GetForComponent("staking_adapter").With().Str("platform", cfg.Platform).Logger(),
	}, nil
}

func (a *StakingAdapter) Platform() string { return a.platform }

// GetAPY returns the staking APYs per token, serving the last-known-good
// cache when the source is unreachable.
func (a *StakingAdapter) GetAPY(ctx context.Context) (map[string]float64, error) {
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

// GetUserPositions returns the owner's staking positions tagged with the
// platform. An owner with no stake gets an empty list.
func (a *StakingAdapter) GetUserPositions(ctx context.Context, owner string) ([]types.Position, error) {
	positions, err := a.positions.Positions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("querying %s positions: %w", a.platform, err)
	}
	for i := range positions {
		positions[i].Platform = a.platform
	}
	return positions, nil
}

func (a *StakingAdapter) submit(ctx context.Context, action string, params ActionParams) (string, error) {
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

func (a *StakingAdapter) ExecuteDeposit(ctx context.Context, params ActionParams) (string, error) {
	if params.AmountUSD <= 0 {
		return "", fmt.Errorf("%w: stake amount must be positive", types.ErrInsufficientFunds)
	}
	return a.submit(ctx, "deposit", params)
}

func (a *StakingAdapter) ExecuteWithdraw(ctx context.Context, params ActionParams) (string, error) {
	if params.AmountUSD <= 0 {
		return "", fmt.Errorf("%w: unstake amount must be positive", types.ErrInsufficientFunds)
	}
	return a.submit(ctx, "withdraw", params)
}

func (a *StakingAdapter) ExecuteHarvest(ctx context.Context, params ActionParams) (string, error) {
	return a.submit(ctx, "harvest", params)
}

// ExecuteRebalance is not a staking capability.
func (a *StakingAdapter) ExecuteRebalance(ctx context.Context, params ActionParams) (string, error) {
	return "", fmt.Errorf("%w: %s does not support rebalance", types.ErrUnsupported, a.platform)
}
