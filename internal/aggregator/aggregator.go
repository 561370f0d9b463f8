/*

This file contains the position aggregator: it fans out to every registered
protocol adapter for an owner, merges the results into one canonical list and
collects per-platform failures so callers can flag data-freshness degradation
instead of losing the whole view.

*/

package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/protocol"
	"github.com/sonicnav/riskengine/internal/types"
)

const defaultCallTimeout = 10 * time.Second

// AggregateResult is the merged position view. Ordering of Positions is
// unspecified; callers must not assume stability.
type AggregateResult struct {
	Positions []types.Position `json:"positions"`
	Failures  map[string]error `json:"-"`
}

// Degraded reports whether any adapter failed during aggregation.
func (r AggregateResult) Degraded() bool {
	return len(r.Failures) > 0
}

// Aggregator merges per-adapter position queries.
type Aggregator struct {
	registry *protocol.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// New builds an aggregator over the adapter registry. A non-positive timeout
// uses the default per-call bound.
func New(registry *protocol.Registry, timeout time.Duration) (*Aggregator, error) {
	if registry == nil {
		return nil, errors.New("adapter registry cannot be nil")
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Aggregator{
		registry: registry,
		timeout:  timeout,
		log:      logger.GetForComponent("position_aggregator"),
	}, nil
}

// Aggregate queries every adapter concurrently with a per-call timeout and
// returns the merged positions plus per-platform failures. A slow or
// unavailable adapter never blocks its siblings beyond the bound.
func (a *Aggregator) Aggregate(ctx context.Context, owner string) AggregateResult {
	adapters := a.registry.All()

	type fetchResult struct {
		platform  string
		positions []types.Position
		err       error
	}

	results := make(chan fetchResult, len(adapters))
	var wg sync.WaitGroup
	for _, adapter := range adapters {
		wg.Add(1)
		go func(adapter protocol.Adapter) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			positions, err := adapter.GetUserPositions(callCtx, owner)
			results <- fetchResult{platform: adapter.Platform(), positions: positions, err: err}
		}(adapter)
	}
	wg.Wait()
	close(results)

	merged := AggregateResult{Failures: make(map[string]error)}
	for res := range results {
		if res.err != nil {
			a.log.Warn().Err(res.err).Str("platform", res.platform).Str("owner", owner).
				Msg("Adapter position query failed, continuing with partial result")
			merged.Failures[res.platform] = res.err
			continue
		}
		merged.Positions = append(merged.Positions, res.positions...)
	}

	a.log.Debug().Str("owner", owner).
		Int("positions", len(merged.Positions)).
		Int("failedAdapters", len(merged.Failures)).
		Msg("Aggregation complete")

	return merged
}
