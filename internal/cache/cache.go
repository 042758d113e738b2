// Package cache implements read-through caching decorators over the
// repositories. Each decorator satisfies the matching repository interface,
// so services are wired against the store contracts and never see Redis
// directly. Keys live in a single flat namespace keyed by the entity's
// natural key: user.<id>, project.<clientID>, session.<refreshToken>.
//
// The cache is an optimization, never an authority: every mutating operation
// invalidates the affected key, a miss always re-queries the store, and
// misses are never cached.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// entry get/set/del helpers shared by the decorators. Values are stored as
// JSON; an unreadable cached value is treated as a miss.

func get[T any](ctx context.Context, rdb *redis.Client, key string) (*T, bool) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func set(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Best effort: a failed SET only costs a future cache miss.
	_ = rdb.Set(ctx, key, raw, ttl).Err()
}

func del(ctx context.Context, rdb *redis.Client, key string) error {
	err := rdb.Del(ctx, key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
