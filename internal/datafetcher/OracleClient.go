/*
This file is the reference HTTP client for the price oracle source. The
oracle endpoint returns already-parsed price/confidence/publish-time tuples
per feed ID; no wire-protocol parsing happens here.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var oracleLogger = logger.GetForComponent("oracle_client")

var ErrInvalidPriceData = errors.New("invalid price data received")

const oracleTimeout = 15 * time.Second

// OracleClient fetches latest quotes from the oracle HTTP API.
type OracleClient struct {
	baseURL string
	client  *http.Client
}

// NewOracleClient builds a client against the given base URL.
func NewOracleClient(baseURL string) *OracleClient {
	return &OracleClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: oracleTimeout},
	}
}

type oracleResponse struct {
	Prices []struct {
		ID          string  `json:"id"`
		Price       float64 `json:"price"`
		Confidence  float64 `json:"conf"`
		PublishTime int64   `json:"publish_time"`
	} `json:"prices"`
}

// GetLatestPrices implements PriceOracle. Unknown feeds are omitted from the
// result; transport and decode failures surface as ErrUpstreamUnavailable.
func (c *OracleClient) GetLatestPrices(ctx context.Context, feedIDs []string) ([]types.PricePoint, error) {
	if len(feedIDs) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/prices/latest?ids=%s", c.baseURL, url.QueryEscape(strings.Join(feedIDs, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building oracle request: %w", types.ErrUpstreamUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: oracle request failed: %w", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: oracle returned status %d", types.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var decoded oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding oracle response: %w", types.ErrUpstreamUnavailable, err)
	}

	points := make([]types.PricePoint, 0, len(decoded.Prices))
	for _, p := range decoded.Prices {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			oracleLogger.Warn().Str("feedID", p.ID).Float64("price", p.Price).Msg("Skipping non-positive oracle price")
			continue
		}
		if p.Confidence < 0 || math.IsNaN(p.Confidence) || math.IsInf(p.Confidence, 0) {
			return nil, fmt.Errorf("%w: feed %s has invalid confidence %f", ErrInvalidPriceData, p.ID, p.Confidence)
		}
		points = append(points, types.PricePoint{
			FeedID:     p.ID,
			Price:      p.Price,
			Confidence: p.Confidence,
			Timestamp:  time.Unix(p.PublishTime, 0).UTC(),
		})
	}

	return points, nil
}
