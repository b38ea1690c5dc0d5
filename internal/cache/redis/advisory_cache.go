package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devlongs/trade-guardian/internal/advisor"
)

// DefaultAdvisoryTTL bounds how long generated advice is reused
const DefaultAdvisoryTTL = 10 * time.Minute

var _ advisor.Cache = (*AdvisoryCache)(nil)

// AdvisoryCache stores advisory text as plain strings.
//
// Key schema:
//
//	advice:{pair}:{health}:{impactBucket}
type AdvisoryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAdvisoryCache creates a cache; a non-positive ttl uses DefaultAdvisoryTTL
func NewAdvisoryCache(c *Client, ttl time.Duration) *AdvisoryCache {
	if ttl <= 0 {
		ttl = DefaultAdvisoryTTL
	}
	return &AdvisoryCache{rdb: c.Underlying(), ttl: ttl}
}

// Get returns cached advice for the summary's bucket
func (ac *AdvisoryCache) Get(ctx context.Context, s advisor.Summary) (string, bool, error) {
	key := advisor.CacheKey(s)
	text, err := ac.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return text, true, nil
}

// Set stores advice with the cache TTL
func (ac *AdvisoryCache) Set(ctx context.Context, s advisor.Summary, text string) error {
	key := advisor.CacheKey(s)
	if err := ac.rdb.Set(ctx, key, text, ac.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}
