/*
This file is the reference HTTP client for per-protocol market data sources.
Each platform's REST endpoint returns parsed lending rates, farm APYs and
pool state; one client instance wraps one platform.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var marketLogger = logger.GetForComponent("market_data")

const marketDataTimeout = 15 * time.Second

// RESTMarketSource implements MarketDataSource over a platform's REST API.
type RESTMarketSource struct {
	platform string
	baseURL  string
	client   *http.Client
}

// NewRESTMarketSource builds a market data client for one platform.
func NewRESTMarketSource(platform, baseURL string) *RESTMarketSource {
	return &RESTMarketSource{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: marketDataTimeout},
	}
}

func (s *RESTMarketSource) Platform() string { return s.platform }

func (s *RESTMarketSource) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %w", types.ErrUpstreamUnavailable, s.platform, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %w", types.ErrUpstreamUnavailable, s.platform, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", types.ErrUpstreamUnavailable, s.platform, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", types.ErrUpstreamUnavailable, s.platform, err)
	}
	return nil
}

// LendingMarkets returns the platform's per-token lending market state.
func (s *RESTMarketSource) LendingMarkets(ctx context.Context) ([]types.LendingMarket, error) {
	var decoded struct {
		Markets []types.LendingMarket `json:"markets"`
	}
	if err := s.getJSON(ctx, "/v1/markets", &decoded); err != nil {
		return nil, err
	}
	for i := range decoded.Markets {
		decoded.Markets[i].Platform = s.platform
	}
	return decoded.Markets, nil
}

// LiquidityPools returns the platform's AMM pool state.
func (s *RESTMarketSource) LiquidityPools(ctx context.Context) ([]types.LiquidityPool, error) {
	var decoded struct {
		Pools []types.LiquidityPool `json:"pools"`
	}
	if err := s.getJSON(ctx, "/v1/pools", &decoded); err != nil {
		return nil, err
	}
	for i := range decoded.Pools {
		decoded.Pools[i].Platform = s.platform
	}
	return decoded.Pools, nil
}

// Farms returns the platform's yield farm state.
func (s *RESTMarketSource) Farms(ctx context.Context) ([]types.FarmInfo, error) {
	var decoded struct {
		Farms []types.FarmInfo `json:"farms"`
	}
	if err := s.getJSON(ctx, "/v1/farms", &decoded); err != nil {
		return nil, err
	}
	for i := range decoded.Farms {
		decoded.Farms[i].Platform = s.platform
	}
	return decoded.Farms, nil
}

// TokenAPYs returns the per-token yield view used by protocol adapters.
func (s *RESTMarketSource) TokenAPYs(ctx context.Context) (map[string]float64, error) {
	var decoded struct {
		APYs map[string]float64 `json:"apys"`
	}
	if err := s.getJSON(ctx, "/v1/apys", &decoded); err != nil {
		return nil, err
	}
	marketLogger.Debug().Str("platform", s.platform).Int("tokens", len(decoded.APYs)).Msg("Fetched token APYs")
	return decoded.APYs, nil
}
