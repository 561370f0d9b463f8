/*
This file contains the cache warming pass the refresh scheduler runs: each
platform's token APYs and the reference feed prices are written to the
last-known-good store so adapter degradation paths have recent values.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonicnav/riskengine/internal/cache"
)

// WarmCache performs one refresh pass. A failing source does not stop the
// others; all failures are joined into the returned error.
func WarmCache(ctx context.Context, store *cache.Store, oracle PriceOracle, feeds []string, sources []MarketDataSource) error {
	var errs []error

	for _, source := range sources {
		apys, err := source.TokenAPYs(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("refreshing %s APYs: %w", source.Platform(), err))
			continue
		}
		if err := store.SetAPYs(ctx, source.Platform(), apys); err != nil {
			errs = append(errs, fmt.Errorf("caching %s APYs: %w", source.Platform(), err))
		}
	}

	prices, err := oracle.GetLatestPrices(ctx, feeds)
	if err != nil {
		errs = append(errs, fmt.Errorf("refreshing prices: %w", err))
	}
	for _, price := range prices {
		if err := store.SetPrice(ctx, price.FeedID, price.Price); err != nil {
			errs = append(errs, fmt.Errorf("caching price for %s: %w", price.FeedID, err))
		}
	}

	return errors.Join(errs...)
}
