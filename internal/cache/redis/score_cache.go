package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketarb/internal/wallets"
)

// ScoreCache stores per-condition wallet scores so that a condition shared by
// several baskets, or revisited across refresh cycles, is only scored once
// per TTL window.
//
// Key schema:
//
//	walletscore:{conditionID} - JSON wallets.ConditionScore
type ScoreCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewScoreCache creates a ScoreCache backed by the given Client. ttl <= 0
// defaults to 30 minutes.
func NewScoreCache(c *Client, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ScoreCache{rdb: c.rdb, ttl: ttl}
}

func scoreKey(conditionID string) string { return "walletscore:" + conditionID }

// GetScore returns a cached score. The second return reports whether the key
// was present; Redis errors are returned so the caller can log them, but a
// miss is not an error.
func (sc *ScoreCache) GetScore(ctx context.Context, conditionID string) (wallets.ConditionScore, bool, error) {
	data, err := sc.rdb.Get(ctx, scoreKey(conditionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return wallets.ConditionScore{}, false, nil
		}
		return wallets.ConditionScore{}, false, fmt.Errorf("redis: get score %s: %w", conditionID, err)
	}

	var score wallets.ConditionScore
	if err := json.Unmarshal(data, &score); err != nil {
		return wallets.ConditionScore{}, false, fmt.Errorf("redis: unmarshal score %s: %w", conditionID, err)
	}
	return score, true, nil
}

// SetScore stores a score under the cache TTL.
func (sc *ScoreCache) SetScore(ctx context.Context, conditionID string, score wallets.ConditionScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("redis: marshal score %s: %w", conditionID, err)
	}
	if err := sc.rdb.Set(ctx, scoreKey(conditionID), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set score %s: %w", conditionID, err)
	}
	return nil
}

// Compile-time interface check.
var _ wallets.ConditionCache = (*ScoreCache)(nil)
