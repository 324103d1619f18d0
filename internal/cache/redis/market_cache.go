package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketarb/internal/domain"
	"github.com/alanyoungcy/basketarb/internal/universe"
)

// MarketCache stores the full active-market listing as one JSON blob so a
// restart shortly after a refresh can rebuild its universe without re-paging
// the listing API.
//
// Key schema:
//
//	markets:active - JSON array of market records
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client. ttl <= 0
// defaults to 5 minutes.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MarketCache{rdb: c.rdb, ttl: ttl}
}

const marketsKey = "markets:active"

// GetMarkets returns the cached listing, or domain.ErrNotFound when the key
// is absent or expired.
func (mc *MarketCache) GetMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	data, err := mc.rdb.Get(ctx, marketsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get markets: %w", err)
	}

	var markets []domain.MarketInfo
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal markets: %w", err)
	}
	return markets, nil
}

// SetMarkets replaces the cached listing.
func (mc *MarketCache) SetMarkets(ctx context.Context, markets []domain.MarketInfo) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal markets: %w", err)
	}
	if err := mc.rdb.Set(ctx, marketsKey, data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set markets: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ universe.MarketCache = (*MarketCache)(nil)
