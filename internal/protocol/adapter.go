/*

This file defines the protocol capability contract and the platform registry.
Each supported protocol registers one Adapter implementation; strategies
select their adapter through the platform field of their protocol config.
Adding a protocol means registering a new implementation, not editing a
switch statement.

*/

package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sonicnav/riskengine/internal/types"
)

// ActionParams carries the inputs of one execute action.
type ActionParams struct {
	Owner      string           `json:"owner"`
	StrategyID types.StrategyID `json:"strategy_id"`
	Address    string           `json:"address,omitempty"` // on-chain position account
	AmountUSD  float64          `json:"amount_usd,omitempty"`
}

// Adapter is the per-protocol capability interface.
//
// GetAPY and GetUserPositions fail with ErrUpstreamUnavailable when the
// protocol's data source cannot be reached; an owner with no position gets
// an empty list, never an error. The execute methods perform exactly one
// attempt and surface failures as typed errors; retry policy belongs to the
// caller and only ErrUpstreamUnavailable may be retried.
type Adapter interface {
	Platform() string
	GetAPY(ctx context.Context) (map[string]float64, error)
	GetUserPositions(ctx context.Context, owner string) ([]types.Position, error)
	ExecuteDeposit(ctx context.Context, params ActionParams) (string, error)
	ExecuteWithdraw(ctx context.Context, params ActionParams) (string, error)
	ExecuteHarvest(ctx context.Context, params ActionParams) (string, error)
	ExecuteRebalance(ctx context.Context, params ActionParams) (string, error)
}

// PositionReader is the external per-protocol position query surface the
// reference adapters wrap.
type PositionReader interface {
	Positions(ctx context.Context, owner string) ([]types.Position, error)
}

// Registry maps platform identifiers to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its platform key, replacing any previous
// registration for the same platform.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

// Get resolves a platform to its adapter. Unknown platforms are
// ErrUnsupported, never a crash.
func (r *Registry) Get(platform string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: unknown platform %q", types.ErrUnsupported, platform)
	}
	return a, nil
}

// All returns every registered adapter in stable platform order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	platforms := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	out := make([]Adapter, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, r.adapters[p])
	}
	return out
}
