/*

This file contains the in-memory alert store. State is partitioned by owner
with one lock per owner so monitoring ticks for different owners never
contend. All writes for one owner are linearized through that owner's lock.

*/

package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sonicnav/riskengine/internal/types"
)

type ownerAlerts struct {
	mu     sync.Mutex
	alerts []types.RiskAlert
}

// Store holds raised alerts per owner and enforces the deduplication
// invariant: at most one unread alert per (owner, type, strategy) key.
type Store struct {
	mu     sync.RWMutex
	owners map[string]*ownerAlerts
	now    func() time.Time
}

// NewStore builds an empty alert store. A nil clock uses time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		owners: make(map[string]*ownerAlerts),
		now:    now,
	}
}

func (s *Store) forOwner(owner string) *ownerAlerts {
	s.mu.RLock()
	oa, ok := s.owners[owner]
	s.mu.RUnlock()
	if ok {
		return oa
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if oa, ok = s.owners[owner]; ok {
		return oa
	}
	oa = &ownerAlerts{}
	s.owners[owner] = oa
	return oa
}

var severityRank = map[types.AlertSeverity]int{
	types.SeverityLow:      0,
	types.SeverityMedium:   1,
	types.SeverityHigh:     2,
	types.SeverityCritical: 3,
}

// Raise appends a new alert unless an unread alert with the same
// (type, strategy) key already exists for the owner. A duplicate with a
// strictly higher severity supersedes the unread alert: the old one is
// marked read and the new one is stored. Returns the stored alert and
// whether it was actually created.
func (s *Store) Raise(owner string, alert types.RiskAlert) (types.RiskAlert, bool) {
	oa := s.forOwner(owner)
	oa.mu.Lock()
	defer oa.mu.Unlock()

	for i, existing := range oa.alerts {
		if !existing.Read && existing.Type == alert.Type && existing.StrategyID == alert.StrategyID {
			if severityRank[alert.Severity] <= severityRank[existing.Severity] {
				return existing, false
			}
			oa.alerts[i].Read = true
			break
		}
	}

	alert.ID = uuid.New().String()
	alert.Owner = owner
	alert.CreatedAt = s.now().UTC()
	alert.Read = false
	oa.alerts = append(oa.alerts, alert)
	return alert, true
}

// Alerts returns a copy of all alerts for the owner, newest first.
func (s *Store) Alerts(owner string) []types.RiskAlert {
	oa := s.forOwner(owner)
	oa.mu.Lock()
	defer oa.mu.Unlock()

	out := make([]types.RiskAlert, len(oa.alerts))
	for i, alert := range oa.alerts {
		out[len(oa.alerts)-1-i] = alert
	}
	return out
}

// MarkRead flips the read flag on one alert. Unknown or already-read ids are
// a no-op; the return value reports whether a flag actually flipped.
func (s *Store) MarkRead(owner, alertID string) bool {
	oa := s.forOwner(owner)
	oa.mu.Lock()
	defer oa.mu.Unlock()

	for i := range oa.alerts {
		if oa.alerts[i].ID == alertID && !oa.alerts[i].Read {
			oa.alerts[i].Read = true
			return true
		}
	}
	return false
}

// UnreadCount returns the number of unread alerts for the owner.
func (s *Store) UnreadCount(owner string) int {
	oa := s.forOwner(owner)
	oa.mu.Lock()
	defer oa.mu.Unlock()

	count := 0
	for _, alert := range oa.alerts {
		if !alert.Read {
			count++
		}
	}
	return count
}

// ClearAll removes every alert for the owner.
func (s *Store) ClearAll(owner string) {
	oa := s.forOwner(owner)
	oa.mu.Lock()
	defer oa.mu.Unlock()
	oa.alerts = nil
}
