package pricing_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-refunds/internal/cache"
	"github.com/noah-isme/toko-refunds/internal/pricing"
)

type countingPrices struct {
	calls int
	price pricing.UnitPrice
}

func (c *countingPrices) GetUnitPrice(context.Context, string) (pricing.UnitPrice, error) {
	c.calls++
	return c.price, nil
}

func TestCachedPriceLookupHitsRedisOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingPrices{price: pricing.UnitPrice{Net: "8.00", Vat: "2.00", Gross: "10.00", VatPercentage: 25}}
	lookup := pricing.CachedPriceLookup{Inner: inner, Cache: cache.New(client, time.Minute, "toko"), Logger: zerolog.Nop()}

	for i := 0; i < 3; i++ {
		p, err := lookup.GetUnitPrice(context.Background(), "p1")
		require.NoError(t, err)
		require.Equal(t, "10.00", p.Gross)
		require.Equal(t, 25, p.VatPercentage)
	}
	require.Equal(t, 1, inner.calls)
	require.True(t, mr.Exists("toko:unit_price:p1"))
}

func TestCachedPriceLookupFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	inner := &countingPrices{price: pricing.UnitPrice{Net: "1.00", Vat: "0.00", Gross: "1.00"}}
	lookup := pricing.CachedPriceLookup{Inner: inner, Cache: cache.New(client, time.Minute, ""), Logger: zerolog.Nop()}
	p, err := lookup.GetUnitPrice(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "1.00", p.Net)
	require.Equal(t, 1, inner.calls)
}
