// Package cache stores computed compliance views. Entries are JSON documents
// keyed by organization and year; writers invalidate them on change.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"amlstat/internal/compliance/models"
	id "amlstat/pkg/domain"
)

const (
	keyPrefix         = "compliance:"
	orgKeyPrefix      = keyPrefix + "org:"
	overviewKeyPrefix = keyPrefix + "overview:"
	generationKey     = keyPrefix + "generation"

	// scanCount is the SCAN batch hint used by pattern invalidation.
	scanCount = 100

	DefaultTTL = 5 * time.Minute
)

func OrganizationKey(orgID id.OrganizationID, year int) string {
	return fmt.Sprintf("%s%s:%d", orgKeyPrefix, orgID, year)
}

func OverviewKey(year int) string {
	return fmt.Sprintf("%s%d", overviewKeyPrefix, year)
}

// setIfGeneration writes ARGV[2] to KEYS[2] with a PX of ARGV[3] only while
// the generation counter in KEYS[1] still equals ARGV[1]. A missing counter
// reads as 0.
var setIfGeneration = redis.NewScript(`
local current = redis.call("GET", KEYS[1]) or "0"
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisCache is the Redis-backed cache shared by all instances. Every
// invalidation bumps a generation counter; a view computed under an older
// generation is dropped instead of stored.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds the cache. A non-positive ttl falls back to DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Generation returns the current invalidation generation. Callers read it
// before loading the data a view is computed from.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetOrganization returns the cached view, or ok=false on a miss.
func (c *RedisCache) GetOrganization(ctx context.Context, orgID id.OrganizationID, year int) (*models.OrganizationCompliance, bool, error) {
	var view models.OrganizationCompliance
	ok, err := c.get(ctx, OrganizationKey(orgID, year), &view)
	if err != nil || !ok {
		return nil, false, err
	}
	return &view, true, nil
}

func (c *RedisCache) SetOrganization(ctx context.Context, view *models.OrganizationCompliance, gen int64) error {
	return c.set(ctx, OrganizationKey(view.OrganizationID, view.Year), view, gen)
}

func (c *RedisCache) GetOverview(ctx context.Context, year int) (*models.Overview, bool, error) {
	var overview models.Overview
	ok, err := c.get(ctx, OverviewKey(year), &overview)
	if err != nil || !ok {
		return nil, false, err
	}
	return &overview, true, nil
}

func (c *RedisCache) SetOverview(ctx context.Context, overview *models.Overview, gen int64) error {
	return c.set(ctx, OverviewKey(overview.Year), overview, gen)
}

// Invalidate drops the organization's view for year and that year's overview.
func (c *RedisCache) Invalidate(ctx context.Context, orgID id.OrganizationID, year int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, OrganizationKey(orgID, year), OverviewKey(year))
		return nil
	})
	return err
}

// InvalidateOrganization drops every year of the organization's views and
// every overview.
func (c *RedisCache) InvalidateOrganization(ctx context.Context, orgID id.OrganizationID) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump generation: %w", err)
	}
	for _, pattern := range []string{orgKeyPrefix + orgID.String() + ":*", overviewKeyPrefix + "*"} {
		if err := c.deleteMatching(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete %s: %w", pattern, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *RedisCache) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A stale or foreign document is treated as a miss.
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, v any, gen int64) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	keys := []string{generationKey, key}
	return setIfGeneration.Run(ctx, c.client, keys, strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds()).Err()
}
