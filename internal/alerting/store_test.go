package alerting

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicnav/riskengine/internal/types"
)

func TestRaiseDeduplicatesUnreadAlerts(t *testing.T) {
	store := NewStore(nil)

	first, created := store.Raise("owner1", types.RiskAlert{
		Type: types.AlertLiquidation, StrategyID: "s1", Severity: types.SeverityHigh,
	})
	require.True(t, created)

	dup, created := store.Raise("owner1", types.RiskAlert{
		Type: types.AlertLiquidation, StrategyID: "s1", Severity: types.SeverityHigh,
	})
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)
	assert.Equal(t, 1, store.UnreadCount("owner1"))

	// Lower severity does not reopen the key either.
	_, created = store.Raise("owner1", types.RiskAlert{
		Type: types.AlertLiquidation, StrategyID: "s1", Severity: types.SeverityMedium,
	})
	assert.False(t, created)
	assert.Equal(t, 1, store.UnreadCount("owner1"))
}

func TestRaiseSeverityUpgradeSupersedesUnread(t *testing.T) {
	store := NewStore(nil)

	first, created := store.Raise("owner1", types.RiskAlert{
		Type: types.AlertLiquidation, StrategyID: "s1", Severity: types.SeverityMedium,
	})
	require.True(t, created)

	upgraded, created := store.Raise("owner1", types.RiskAlert{
		Type: types.AlertLiquidation, StrategyID: "s1", Severity: types.SeverityCritical,
	})
	require.True(t, created)
	assert.NotEqual(t, first.ID, upgraded.ID)
	assert.Equal(t, types.SeverityCritical, upgraded.Severity)

	// The superseded alert is marked read, so the one-unread-per-key
	// invariant holds.
	assert.Equal(t, 1, store.UnreadCount("owner1"))
	alerts := store.Alerts("owner1")
	require.Len(t, alerts, 2)
	assert.Equal(t, upgraded.ID, alerts[0].ID)
	assert.False(t, alerts[0].Read)
	assert.True(t, alerts[1].Read)
}

func TestRaiseAllowsNewAlertAfterRead(t *testing.T) {
	store := NewStore(nil)

	first, _ := store.Raise("owner1", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s1"})
	require.True(t, store.MarkRead("owner1", first.ID))

	_, created := store.Raise("owner1", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s1"})
	assert.True(t, created)
	assert.Equal(t, 1, store.UnreadCount("owner1"))
	assert.Len(t, store.Alerts("owner1"), 2)
}

func TestDifferentKeysDoNotDeduplicate(t *testing.T) {
	store := NewStore(nil)

	_, created := store.Raise("owner1", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s1"})
	require.True(t, created)
	_, created = store.Raise("owner1", types.RiskAlert{Type: types.AlertPositionDecline, StrategyID: "s1"})
	assert.True(t, created)
	_, created = store.Raise("owner1", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s2"})
	assert.True(t, created)
	_, created = store.Raise("owner2", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s1"})
	assert.True(t, created)

	assert.Equal(t, 3, store.UnreadCount("owner1"))
	assert.Equal(t, 1, store.UnreadCount("owner2"))
}

func TestMarkReadDecrementsUnreadCountExactlyOnce(t *testing.T) {
	store := NewStore(nil)
	alert, _ := store.Raise("owner1", types.RiskAlert{Type: types.AlertMarketVolatility})
	store.Raise("owner1", types.RiskAlert{Type: types.AlertProtocolRisk, StrategyID: "s1"})

	require.Equal(t, 2, store.UnreadCount("owner1"))
	assert.True(t, store.MarkRead("owner1", alert.ID))
	assert.Equal(t, 1, store.UnreadCount("owner1"))

	// Repeat and unknown-id calls are no-ops.
	assert.False(t, store.MarkRead("owner1", alert.ID))
	assert.False(t, store.MarkRead("owner1", "missing"))
	assert.Equal(t, 1, store.UnreadCount("owner1"))
}

func TestClearAllRemovesEverything(t *testing.T) {
	store := NewStore(nil)
	store.Raise("owner1", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s1"})
	store.Raise("owner1", types.RiskAlert{Type: types.AlertPositionDecline, StrategyID: "s1"})

	store.ClearAll("owner1")
	assert.Empty(t, store.Alerts("owner1"))
	assert.Zero(t, store.UnreadCount("owner1"))
}

func TestAlertsNewestFirst(t *testing.T) {
	store := NewStore(nil)
	store.Raise("owner1", types.RiskAlert{Type: types.AlertLiquidation, StrategyID: "s1"})
	store.Raise("owner1", types.RiskAlert{Type: types.AlertPositionDecline, StrategyID: "s1"})

	alerts := store.Alerts("owner1")
	require.Len(t, alerts, 2)
	assert.Equal(t, types.AlertPositionDecline, alerts[0].Type)
}

func TestConcurrentOwnersDoNotInterfere(t *testing.T) {
	store := NewStore(nil)
	var wg sync.WaitGroup
	owners := []string{"a", "b", "c", "d"}
	for _, owner := range owners {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Raise(owner, types.RiskAlert{Type: types.AlertMarketVolatility})
				store.UnreadCount(owner)
			}
		}(owner)
	}
	wg.Wait()

	for _, owner := range owners {
		assert.Equal(t, 1, store.UnreadCount(owner), "dedup must hold under concurrency for %s", owner)
	}
}
