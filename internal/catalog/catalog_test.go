package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicnav/riskengine/internal/types"
)

func validStrategy(id types.StrategyID) types.Strategy {
	return types.Strategy{
		ID:           id,
		Name:         "SOL Lending",
		Creator:      "issuer1",
		ProtocolType: types.ProtocolLending,
		RiskLevel:    types.RiskConservative,
		Tokens: []types.TokenAllocation{
			{Symbol: "SOL", Percent: 60},
			{Symbol: "USDC", Percent: 40},
		},
		EstimatedAPYBps: 500,
		FeeBps:          30,
	}
}

func TestRegisterAndGet(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Register(validStrategy("s1")))

	got, err := c.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, types.StrategyID("s1"), got.ID)
	assert.False(t, got.Verified)
	assert.Zero(t, got.UserCount)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestRegisterRejectsBadAllocations(t *testing.T) {
	strategy := validStrategy("s1")
	strategy.Tokens = []types.TokenAllocation{{Symbol: "SOL", Percent: 70}}

	err := New(nil).Register(strategy)
	require.ErrorIs(t, err, types.ErrInvalidAllocation)
}

func TestRegisterRejectsExcessiveFee(t *testing.T) {
	strategy := validStrategy("s1")
	strategy.FeeBps = 2000

	err := New(nil).Register(strategy)
	require.ErrorIs(t, err, types.ErrInvalidStrategy)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Register(validStrategy("s1")))
	require.ErrorIs(t, c.Register(validStrategy("s1")), ErrDuplicateStrategy)
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	_, err := New(nil).Get("missing")
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestListSortedAndEmptyNotError(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.List())

	require.NoError(t, c.Register(validStrategy("zeta")))
	require.NoError(t, c.Register(validStrategy("alpha")))

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, types.StrategyID("alpha"), list[0].ID)
}

func TestUpdateRequiresCreator(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Register(validStrategy("s1")))

	name := "Renamed"
	err := c.Update("s1", "intruder", StrategyUpdate{Name: &name})
	require.ErrorIs(t, err, ErrNotCreator)
}

func TestUpdateBumpsUpdatedAt(t *testing.T) {
	current := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	c := New(func() time.Time { return current })
	require.NoError(t, c.Register(validStrategy("s1")))

	current = current.Add(time.Hour)
	apy := uint32(700)
	require.NoError(t, c.Update("s1", "issuer1", StrategyUpdate{EstimatedAPYBps: &apy}))

	got, err := c.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, uint32(700), got.EstimatedAPYBps)
	assert.Equal(t, current, got.UpdatedAt)
}

func TestVerify(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Register(validStrategy("s1")))
	require.NoError(t, c.Verify("s1"))

	got, _ := c.Get("s1")
	assert.True(t, got.Verified)

	require.ErrorIs(t, c.Verify("missing"), types.ErrNotFound)
}

func TestSubscribeBookkeeping(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Register(validStrategy("s1")))

	require.NoError(t, c.RecordSubscribe("s1", 1000))
	require.NoError(t, c.RecordSubscribe("s1", 500))

	got, _ := c.Get("s1")
	assert.Equal(t, uint32(2), got.UserCount)
	assert.Equal(t, 1500.0, got.TVLUSD)

	require.NoError(t, c.RecordUnsubscribe("s1", 2000))
	got, _ = c.Get("s1")
	assert.Equal(t, uint32(1), got.UserCount)
	assert.Zero(t, got.TVLUSD) // TVL floors at zero
}
