// AngelaMos | 2026
// cache.go

package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

const tierKeyPrefix = "access:tier:"

type TierCache interface {
	Get(ctx context.Context, userID string) (access.Tier, bool, error)
	Set(ctx context.Context, userID string, tier access.Tier) error
	Delete(ctx context.Context, userID string) error
}

type redisTierCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTierCache(client *redis.Client, ttl time.Duration) TierCache {
	return &redisTierCache{client: client, ttl: ttl}
}

func tierKey(userID string) string {
	return tierKeyPrefix + userID
}

func (c *redisTierCache) Get(
	ctx context.Context,
	userID string,
) (access.Tier, bool, error) {
	val, err := c.client.Get(ctx, tierKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cached tier: %w", err)
	}
	return access.NormalizeTier(val), true, nil
}

func (c *redisTierCache) Set(
	ctx context.Context,
	userID string,
	tier access.Tier,
) error {
	if err := c.client.Set(ctx, tierKey(userID), string(tier), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache tier: %w", err)
	}
	return nil
}

func (c *redisTierCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, tierKey(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached tier: %w", err)
	}
	return nil
}

type noopTierCache struct{}

func (noopTierCache) Get(context.Context, string) (access.Tier, bool, error) {
	return "", false, nil
}

func (noopTierCache) Set(context.Context, string, access.Tier) error { return nil }

func (noopTierCache) Delete(context.Context, string) error { return nil }
