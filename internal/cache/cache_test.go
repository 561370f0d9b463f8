package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWithClient(client)
}

func TestAPYRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	apys := map[string]float64{"SOL": 6.5, "USDC": 4.1}
	require.NoError(t, store.SetAPYs(ctx, "solend", apys))

	got, ok := store.GetAPYs(ctx, "solend")
	require.True(t, ok)
	require.Equal(t, apys, got)
}

func TestAPYMiss(t *testing.T) {
	store := newTestStore(t)

	got, ok := store.GetAPYs(context.Background(), "unknown")
	require.False(t, ok)
	require.Nil(t, got)
}

func TestPriceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetPrice(ctx, "feed-sol", 142.25))

	price, ok := store.GetPrice(ctx, "feed-sol")
	require.True(t, ok)
	require.Equal(t, 142.25, price)

	_, ok = store.GetPrice(ctx, "feed-other")
	require.False(t, ok)
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	ctx := context.Background()

	require.NoError(t, store.SetAPYs(ctx, "solend", map[string]float64{"SOL": 1}))
	_, ok := store.GetAPYs(ctx, "solend")
	require.False(t, ok)
	_, ok = store.GetPrice(ctx, "feed")
	require.False(t, ok)
	require.NoError(t, store.Close())
}
