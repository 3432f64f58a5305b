package lockout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"amlstat/internal/auth/models"
	"amlstat/pkg/platform/sentinel"
)

const (
	keyPrefix = "auth:lockout:"

	fieldFailures    = "failures"
	fieldWindowStart = "window_start"
	fieldLockedUntil = "locked_until"
)

// RedisStore keeps one hash per key so every instance shares the counters.
// The key expires with its window, or with its lock when that is later.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.Lockout, error) {
	fields, err := s.client.HGetAll(ctx, keyPrefix+key).Result()
	if err != nil {
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseLockout(key, fields)
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*models.Lockout, error) {
	var fields *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, keyPrefix+key, fieldWindowStart, now.UnixMilli())
		p.HIncrBy(ctx, keyPrefix+key, fieldFailures, 1)
		p.ExpireNX(ctx, keyPrefix+key, window)
		fields = p.HGetAll(ctx, keyPrefix+key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record lockout failure: %w", err)
	}
	return parseLockout(key, fields.Val())
}

func (s *RedisStore) Lock(ctx context.Context, key string, until time.Time) error {
	exists, err := s.client.Exists(ctx, keyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("lock lockout: %w", err)
	}
	if exists == 0 {
		return sentinel.ErrNotFound
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, keyPrefix+key, fieldLockedUntil, until.UnixMilli())
		p.ExpireGT(ctx, keyPrefix+key, time.Until(until))
		return nil
	})
	if err != nil {
		return fmt.Errorf("lock lockout: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

func parseLockout(key string, fields map[string]string) (*models.Lockout, error) {
	failures, err := strconv.Atoi(fields[fieldFailures])
	if err != nil {
		return nil, fmt.Errorf("parse lockout failures: %w", err)
	}
	start, err := strconv.ParseInt(fields[fieldWindowStart], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lockout window: %w", err)
	}
	rec := &models.Lockout{
		Key:          key,
		FailureCount: failures,
		WindowStart:  time.UnixMilli(start).UTC(),
	}
	if raw, ok := fields[fieldLockedUntil]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse lockout lock: %w", err)
		}
		until := time.UnixMilli(ms).UTC()
		rec.LockedUntil = &until
	}
	return rec, nil
}
