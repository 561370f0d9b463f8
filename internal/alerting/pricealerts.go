/*

This file contains user-defined price alerts: one-shot threshold triggers on
a token price. Each owner may hold a bounded number of active alerts; an
alert fires at most once and stays visible as triggered until deleted.

*/

package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonicnav/riskengine/internal/datafetcher"
	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var (
	ErrTooManyPriceAlerts = errors.New("price alert limit reached for owner")
	ErrInvalidPriceAlert  = errors.New("invalid price alert")
)

// PriceAlertService stores and evaluates user price alerts.
type PriceAlertService struct {
	oracle datafetcher.PriceOracle
	sink   datafetcher.NotificationSink // optional
	now    func() time.Time
	log    zerolog.Logger

	mu      sync.Mutex
	byOwner map[string][]types.PriceAlert
}

// NewPriceAlertService builds the service. A nil clock uses time.Now.
func NewPriceAlertService(oracle datafetcher.PriceOracle, sink datafetcher.NotificationSink, now func() time.Time) (*PriceAlertService, error) {
	if oracle == nil {
		return nil, errors.New("price oracle cannot be nil")
	}
	if now == nil {
		now = time.Now
	}
	return &PriceAlertService{
		oracle:  oracle,
		sink:    sink,
		now:     now,
		log:     logger.GetForComponent("price_alerts"),
		byOwner: make(map[string][]types.PriceAlert),
	}, nil
}

// Create registers a new alert for the owner. Owners are capped at
// MaxPriceAlertsPerOwner active alerts.
func (s *PriceAlertService) Create(owner, tokenSymbol, feedID string, thresholdUSD float64, above bool) (types.PriceAlert, error) {
	if owner == "" || tokenSymbol == "" || feedID == "" {
		return types.PriceAlert{}, fmt.Errorf("%w: owner, token and feed are required", ErrInvalidPriceAlert)
	}
	if thresholdUSD <= 0 {
		return types.PriceAlert{}, fmt.Errorf("%w: threshold must be positive", ErrInvalidPriceAlert)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.byOwner[owner]) >= types.MaxPriceAlertsPerOwner {
		return types.PriceAlert{}, fmt.Errorf("%w: max %d", ErrTooManyPriceAlerts, types.MaxPriceAlertsPerOwner)
	}

	alert := types.PriceAlert{
		ID:           uuid.New().String(),
		Owner:        owner,
		TokenSymbol:  tokenSymbol,
		FeedID:       feedID,
		ThresholdUSD: thresholdUSD,
		Above:        above,
		CreatedAt:    s.now().UTC(),
	}
	s.byOwner[owner] = append(s.byOwner[owner], alert)
	return alert, nil
}

// List returns a copy of the owner's alerts, oldest first.
func (s *PriceAlertService) List(owner string) []types.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PriceAlert, len(s.byOwner[owner]))
	copy(out, s.byOwner[owner])
	return out
}

// Delete removes one alert; ErrNotFound when the id is unknown.
func (s *PriceAlertService) Delete(owner, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alerts := s.byOwner[owner]
	for i, alert := range alerts {
		if alert.ID == alertID {
			s.byOwner[owner] = append(alerts[:i], alerts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: price alert %s", types.ErrNotFound, alertID)
}

// Evaluate fetches current prices for all watched feeds and fires any alert
// whose threshold is crossed. Fired alerts are marked triggered and notified
// once; oracle failures leave the alerts pending for the next run.
func (s *PriceAlertService) Evaluate(ctx context.Context) error {
	feeds := s.pendingFeeds()
	if len(feeds) == 0 {
		return nil
	}

	prices, err := s.oracle.GetLatestPrices(ctx, feeds)
	if err != nil {
		return fmt.Errorf("fetching prices for alert evaluation: %w", err)
	}
	priceByFeed := make(map[string]float64, len(prices))
	for _, p := range prices {
		priceByFeed[p.FeedID] = p.Price
	}

	for _, fired := range s.trigger(priceByFeed) {
		if s.sink == nil {
			continue
		}
		direction := "below"
		if fired.Above {
			direction = "above"
		}
		message := fmt.Sprintf("%s is now %s your $%.2f target (current: $%.2f)",
			fired.TokenSymbol, direction, fired.ThresholdUSD, priceByFeed[fired.FeedID])
		if err := s.sink.Notify(ctx, fired.Owner, "Price alert", message, types.SeverityLow); err != nil {
			s.log.Warn().Err(err).Str("owner", fired.Owner).Msg("Price alert notification failed")
		}
	}
	return nil
}

func (s *PriceAlertService) pendingFeeds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var feeds []string
	for _, alerts := range s.byOwner {
		for _, alert := range alerts {
			if !alert.Triggered && !seen[alert.FeedID] {
				seen[alert.FeedID] = true
				feeds = append(feeds, alert.FeedID)
			}
		}
	}
	return feeds
}

// trigger flips the triggered flag on every crossed alert and returns the
// fired set. No lock is held across the oracle call.
func (s *PriceAlertService) trigger(priceByFeed map[string]float64) []types.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []types.PriceAlert
	for owner, alerts := range s.byOwner {
		for i := range alerts {
			alert := &alerts[i]
			if alert.Triggered {
				continue
			}
			price, ok := priceByFeed[alert.FeedID]
			if !ok || price <= 0 {
				continue
			}
			crossed := (alert.Above && price >= alert.ThresholdUSD) || (!alert.Above && price <= alert.ThresholdUSD)
			if !crossed {
				continue
			}
			alert.Triggered = true
			fired = append(fired, *alert)
			s.log.Info().Str("owner", owner).Str("token", alert.TokenSymbol).Float64("price", price).Msg("Price alert triggered")
		}
	}
	return fired
}
