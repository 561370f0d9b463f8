/*

This file contains the in-memory strategy catalog. Strategies are registered
by issuers and read-only to the rest of the engine except for the subscriber
count and TVL bookkeeping adjusted on subscribe/unsubscribe.

*/

package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sonicnav/riskengine/internal/types"
)

var (
	ErrDuplicateStrategy = errors.New("strategy already registered")
	ErrNotCreator        = errors.New("caller is not the strategy creator")
)

const (
	maxFeeBps     = 1000 // 10%
	maxLockupDays = 365
)

// Catalog is the concurrent strategy registry.
type Catalog struct {
	mu         sync.RWMutex
	strategies map[types.StrategyID]types.Strategy
	now        func() time.Time
}

// New builds an empty catalog. A nil clock uses time.Now.
func New(now func() time.Time) *Catalog {
	if now == nil {
		now = time.Now
	}
	return &Catalog{
		strategies: make(map[types.StrategyID]types.Strategy),
		now:        now,
	}
}

// Register validates and stores a new strategy.
func (c *Catalog) Register(strategy types.Strategy) error {
	if err := strategy.Validate(); err != nil {
		return err
	}
	if strategy.FeeBps > maxFeeBps {
		return fmt.Errorf("%w: fee %d bps exceeds the %d bps cap", types.ErrInvalidStrategy, strategy.FeeBps, maxFeeBps)
	}
	if strategy.LockupPeriodDays > maxLockupDays {
		return fmt.Errorf("%w: lockup %d days exceeds the %d day cap", types.ErrInvalidStrategy, strategy.LockupPeriodDays, maxLockupDays)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.strategies[strategy.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, strategy.ID)
	}
	strategy.UserCount = 0
	strategy.Verified = false
	strategy.UpdatedAt = c.now().UTC()
	c.strategies[strategy.ID] = strategy
	return nil
}

// StrategyUpdate carries the issuer-editable fields for Update. Nil fields
// are left unchanged.
type StrategyUpdate struct {
	Name            *string
	Description     *string
	EstimatedAPYBps *uint32
	FeeBps          *uint16
	MinInvestment   *float64
}

// Update applies issuer edits to a strategy and bumps UpdatedAt. Only the
// registered creator may update.
func (c *Catalog) Update(id types.StrategyID, creator string, update StrategyUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	strategy, exists := c.strategies[id]
	if !exists {
		return fmt.Errorf("%w: strategy %s", types.ErrNotFound, id)
	}
	if strategy.Creator != creator {
		return fmt.Errorf("%w: %s", ErrNotCreator, creator)
	}
	if update.FeeBps != nil && *update.FeeBps > maxFeeBps {
		return fmt.Errorf("%w: fee %d bps exceeds the %d bps cap", types.ErrInvalidStrategy, *update.FeeBps, maxFeeBps)
	}

	if update.Name != nil {
		strategy.Name = *update.Name
	}
	if update.Description != nil {
		strategy.Description = *update.Description
	}
	if update.EstimatedAPYBps != nil {
		strategy.EstimatedAPYBps = *update.EstimatedAPYBps
	}
	if update.FeeBps != nil {
		strategy.FeeBps = *update.FeeBps
	}
	if update.MinInvestment != nil {
		strategy.MinInvestmentUSD = *update.MinInvestment
	}
	strategy.UpdatedAt = c.now().UTC()
	c.strategies[id] = strategy
	return nil
}

// Verify marks a strategy as reviewed.
func (c *Catalog) Verify(id types.StrategyID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	strategy, exists := c.strategies[id]
	if !exists {
		return fmt.Errorf("%w: strategy %s", types.ErrNotFound, id)
	}
	strategy.Verified = true
	strategy.UpdatedAt = c.now().UTC()
	c.strategies[id] = strategy
	return nil
}

// Get returns one strategy, ErrNotFound when unknown.
func (c *Catalog) Get(id types.StrategyID) (types.Strategy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	strategy, exists := c.strategies[id]
	if !exists {
		return types.Strategy{}, fmt.Errorf("%w: strategy %s", types.ErrNotFound, id)
	}
	return strategy, nil
}

// List returns every registered strategy sorted by id. An empty catalog
// yields an empty list, not an error.
func (c *Catalog) List() []types.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Strategy, 0, len(c.strategies))
	for _, strategy := range c.strategies {
		out = append(out, strategy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordSubscribe bumps the subscriber count and TVL for a new position.
func (c *Catalog) RecordSubscribe(id types.StrategyID, amountUSD float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	strategy, exists := c.strategies[id]
	if !exists {
		return fmt.Errorf("%w: strategy %s", types.ErrNotFound, id)
	}
	strategy.UserCount++
	strategy.TVLUSD += amountUSD
	c.strategies[id] = strategy
	return nil
}

// RecordUnsubscribe reverses the subscribe bookkeeping on a full exit. TVL
// never goes below zero even if valuations moved since subscription.
func (c *Catalog) RecordUnsubscribe(id types.StrategyID, amountUSD float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	strategy, exists := c.strategies[id]
	if !exists {
		return fmt.Errorf("%w: strategy %s", types.ErrNotFound, id)
	}
	if strategy.UserCount > 0 {
		strategy.UserCount--
	}
	strategy.TVLUSD -= amountUSD
	if strategy.TVLUSD < 0 {
		strategy.TVLUSD = 0
	}
	c.strategies[id] = strategy
	return nil
}
