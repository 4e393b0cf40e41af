package pricing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-refunds/internal/cache"
)

// CachedPriceLookup serves unit prices from Redis before asking Inner.
// Cache failures never fail a lookup.
type CachedPriceLookup struct {
	Inner  PriceLookup
	Cache  *cache.Cache
	Logger zerolog.Logger
}

// GetUnitPrice implements PriceLookup.
func (l CachedPriceLookup) GetUnitPrice(ctx context.Context, productID string) (UnitPrice, error) {
	key := l.Cache.Key("unit_price", productID)
	var cached UnitPrice
	hit, err := l.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		l.Logger.Warn().Err(err).Str("product_id", productID).Msg("price_cache_read_failed")
	} else if hit {
		return cached, nil
	}

	price, err := l.Inner.GetUnitPrice(ctx, productID)
	if err != nil {
		return UnitPrice{}, err
	}
	if err := l.Cache.SetJSON(ctx, key, price); err != nil {
		l.Logger.Warn().Err(err).Str("product_id", productID).Msg("price_cache_write_failed")
	}
	return price, nil
}
