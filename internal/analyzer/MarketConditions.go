/*

This file contains the market condition analyzer. It fuses oracle prices and
per-protocol market data (lending rates, farm APYs, pool liquidity) into one
MarketSnapshot per monitoring cycle.

*/

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/datafetcher"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var marketLogger = logger.GetForComponent("market_analyzer")

// MarketAnalyzer produces fused market snapshots.
type MarketAnalyzer struct {
	oracle         datafetcher.PriceOracle
	sources        []datafetcher.MarketDataSource
	referenceFeeds []string // first entry is the primary reference asset
	params         types.RiskParameters
	timeout        time.Duration
	now            func() time.Time
	log            zerolog.Logger
}

// MarketAnalyzerConfig holds the analyzer dependencies.
type MarketAnalyzerConfig struct {
	Oracle         datafetcher.PriceOracle
	Sources        []datafetcher.MarketDataSource
	ReferenceFeeds []string
	Params         types.RiskParameters
	Timeout        time.Duration    // per-fetch bound; 0 uses the params adapter timeout
	Now            func() time.Time // injectable clock; nil uses time.Now
}

// NewMarketAnalyzer validates dependencies and builds the analyzer.
func NewMarketAnalyzer(cfg MarketAnalyzerConfig) (*MarketAnalyzer, error) {
	if cfg.Oracle == nil {
		return nil, errors.New("price oracle cannot be nil")
	}
	if len(cfg.ReferenceFeeds) == 0 {
		return nil, errors.New("at least one reference feed is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = cfg.Params.AdapterCallTimeout
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MarketAnalyzer{
		oracle:         cfg.Oracle,
		sources:        cfg.Sources,
		referenceFeeds: cfg.ReferenceFeeds,
		params:         cfg.Params,
		timeout:        timeout,
		now:            now,
		log:            marketLogger,
	}, nil
}

type sourceData struct {
	markets []types.LendingMarket
	pools   []types.LiquidityPool
	farms   []types.FarmInfo
}

// Snapshot fetches and fuses all market inputs. It fails with
// ErrInsufficientData only when price data for the reference asset is
// entirely unavailable; a missing lending/farm source degrades trend and TVL
// accuracy but does not abort the call.
func (m *MarketAnalyzer) Snapshot(ctx context.Context) (types.MarketSnapshot, error) {
	var (
		wg       sync.WaitGroup
		prices   []types.PricePoint
		priceErr error
		mu       sync.Mutex
		fused    sourceData
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()
		prices, priceErr = m.oracle.GetLatestPrices(callCtx, m.referenceFeeds)
	}()

	for _, src := range m.sources {
		wg.Add(1)
		go func(src datafetcher.MarketDataSource) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			markets, err := src.LendingMarkets(callCtx)
			if err != nil {
				m.log.Warn().Err(err).Str("platform", src.Platform()).Msg("Lending markets unavailable, degrading trend accuracy")
			}
			pools, err := src.LiquidityPools(callCtx)
			if err != nil {
				m.log.Warn().Err(err).Str("platform", src.Platform()).Msg("Pool data unavailable, degrading TVL accuracy")
			}
			farms, err := src.Farms(callCtx)
			if err != nil {
				m.log.Warn().Err(err).Str("platform", src.Platform()).Msg("Farm data unavailable")
			}

			mu.Lock()
			fused.markets = append(fused.markets, markets...)
			fused.pools = append(fused.pools, pools...)
			fused.farms = append(fused.farms, farms...)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	if priceErr != nil {
		return types.MarketSnapshot{}, fmt.Errorf("%w: reference asset price unavailable: %w", types.ErrInsufficientData, priceErr)
	}
	if len(prices) == 0 {
		return types.MarketSnapshot{}, fmt.Errorf("%w: oracle returned no reference prices", types.ErrInsufficientData)
	}

	referencePrice := 0.0
	for _, p := range prices {
		if p.FeedID == m.referenceFeeds[0] {
			referencePrice = p.Price
			break
		}
	}
	if referencePrice <= 0 {
		return types.MarketSnapshot{}, fmt.Errorf("%w: no quote for primary reference feed %s", types.ErrInsufficientData, m.referenceFeeds[0])
	}

	snapshot := types.MarketSnapshot{
		ReferencePriceUSD:   referencePrice,
		Trend:               deriveTrend(fused.markets, m.params),
		VolatilityIndex:     deriveVolatilityIndex(prices),
		LendingRatePercent:  meanSupplyRate(fused.markets),
		TotalValueLockedUSD: sumPoolTVL(fused.pools),
		Timestamp:           m.now().UTC(),
	}

	m.log.Debug().
		Str("trend", string(snapshot.Trend)).
		Float64("volatilityIndex", snapshot.VolatilityIndex).
		Float64("referencePrice", snapshot.ReferencePriceUSD).
		Float64("tvl", snapshot.TotalValueLockedUSD).
		Msg("Market snapshot computed")

	return snapshot, nil
}

// deriveTrend classifies the market from the mean supply lending rate across
// all platforms and tokens. The thresholds are tunable simplifications.
func deriveTrend(markets []types.LendingMarket, params types.RiskParameters) types.MarketTrend {
	if len(markets) == 0 {
		return types.TrendNeutral
	}
	mean := meanSupplyRate(markets)
	switch {
	case mean > params.BullRateThresholdPercent:
		return types.TrendBull
	case mean < params.BearRateThresholdPercent:
		return types.TrendBear
	default:
		return types.TrendNeutral
	}
}

func meanSupplyRate(markets []types.LendingMarket) float64 {
	if len(markets) == 0 {
		return 0
	}
	var sum float64
	for _, mk := range markets {
		sum += mk.SupplyRatePercent
	}
	return sum / float64(len(markets))
}

// deriveVolatilityIndex maps mean oracle uncertainty (confidence relative to
// price) onto a 0-10 index.
func deriveVolatilityIndex(prices []types.PricePoint) float64 {
	var sum float64
	var n int
	for _, p := range prices {
		if p.Price <= 0 {
			continue
		}
		sum += p.Confidence / p.Price
		n++
	}
	if n == 0 {
		return 0
	}
	index := sum / float64(n) * 10.0
	return math.Min(10.0, math.Max(0.0, index))
}

func sumPoolTVL(pools []types.LiquidityPool) float64 {
	var sum float64
	for _, p := range pools {
		sum += p.TVLUSD
	}
	return sum
}
