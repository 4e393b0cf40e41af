package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-refunds/internal/cache"
)

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.New(client, time.Minute, "toko")
	key := c.Key("price", "p1")
	require.Equal(t, "toko:price:p1", key)

	ctx := context.Background()
	var got map[string]string
	ok, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetJSON(ctx, key, map[string]string{"net": "1.00"}))
	ok, err = c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1.00", got["net"])

	mr.FastForward(2 * time.Minute)
	ok, err = c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNilClientAlwaysMisses(t *testing.T) {
	c := cache.New(nil, time.Minute, "")
	require.False(t, c.Enabled())
	require.NoError(t, c.SetJSON(context.Background(), "k", 1))
	var v int
	ok, err := c.GetJSON(context.Background(), "k", &v)
	require.NoError(t, err)
	require.False(t, ok)
}
