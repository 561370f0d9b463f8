/*
This file is the reference HTTP client for the chain indexer: position
lookups, transaction history, historical prices and transaction submission
all go through one indexer endpoint.
*/

package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var chainLogger = logger.GetForComponent("chain_client")

const chainClientTimeout = 30 * time.Second

// ChainClient implements TransactionReader, HistoricalPriceReader and
// TransactionSubmitter over the chain indexer's REST API.
type ChainClient struct {
	baseURL string
	client  *http.Client
}

// NewChainClient builds an indexer client.
func NewChainClient(baseURL string) *ChainClient {
	return &ChainClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: chainClientTimeout},
	}
}

func (c *ChainClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: building indexer request: %w", types.ErrUpstreamUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: indexer request failed: %w", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: indexer returned status %d", types.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding indexer response: %w", types.ErrUpstreamUnavailable, err)
	}
	return nil
}

// GetSignaturesForAddress returns up to limit transaction signatures for a
// position account, newest first.
func (c *ChainClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]string, error) {
	var decoded struct {
		Signatures []string `json:"signatures"`
	}
	path := fmt.Sprintf("/v1/accounts/%s/signatures?limit=%d", url.PathEscape(address), limit)
	if err := c.getJSON(ctx, path, &decoded); err != nil {
		return nil, err
	}
	return decoded.Signatures, nil
}

// GetTransaction returns one parsed transaction record.
func (c *ChainClient) GetTransaction(ctx context.Context, signature string) (types.TransactionRecord, error) {
	var record types.TransactionRecord
	path := "/v1/transactions/" + url.PathEscape(signature)
	if err := c.getJSON(ctx, path, &record); err != nil {
		return types.TransactionRecord{}, err
	}
	return record, nil
}

// HistoricalPrices returns quotes for one feed over a window, oldest first.
func (c *ChainClient) HistoricalPrices(ctx context.Context, feedID string, from, to time.Time) ([]types.PricePoint, error) {
	var decoded struct {
		Prices []types.PricePoint `json:"prices"`
	}
	path := fmt.Sprintf("/v1/prices/%s/history?from=%d&to=%d",
		url.PathEscape(feedID), from.Unix(), to.Unix())
	if err := c.getJSON(ctx, path, &decoded); err != nil {
		return nil, err
	}
	return decoded.Prices, nil
}

// Submit performs exactly one transaction submission attempt.
func (c *ChainClient) Submit(ctx context.Context, req TxRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding transaction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: building submit request: %w", types.ErrUpstreamUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: transaction submission failed: %w", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	var decoded struct {
		TxRef string `json:"tx_ref"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: decoding submit response: %w", types.ErrUpstreamUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		chainLogger.Info().Str("action", req.Action).Str("platform", req.Platform).Str("txRef", decoded.TxRef).Msg("Transaction submitted")
		return decoded.TxRef, nil
	case http.StatusPaymentRequired:
		return "", fmt.Errorf("%w: %s", types.ErrInsufficientFunds, decoded.Error)
	case http.StatusConflict:
		return "", fmt.Errorf("%w: %s", types.ErrSlippageExceeded, decoded.Error)
	case http.StatusNotImplemented:
		return "", fmt.Errorf("%w: %s", types.ErrUnsupported, decoded.Error)
	default:
		return "", fmt.Errorf("%w: indexer returned status %d: %s", types.ErrUpstreamUnavailable, resp.StatusCode, decoded.Error)
	}
}

// PlatformPositions scopes the indexer's position endpoint to one platform.
type PlatformPositions struct {
	client   *ChainClient
	platform string
}

// PositionsFor returns a per-platform position reader backed by the indexer.
func (c *ChainClient) PositionsFor(platform string) *PlatformPositions {
	return &PlatformPositions{client: c, platform: platform}
}

// Positions returns the owner's open positions on the platform. An owner
// with no positions gets an empty list, never an error.
func (p *PlatformPositions) Positions(ctx context.Context, owner string) ([]types.Position, error) {
	var decoded struct {
		Positions []types.Position `json:"positions"`
	}
	path := fmt.Sprintf("/v1/accounts/%s/positions?platform=%s",
		url.PathEscape(owner), url.QueryEscape(p.platform))
	if err := p.client.getJSON(ctx, path, &decoded); err != nil {
		return nil, err
	}
	return decoded.Positions, nil
}
