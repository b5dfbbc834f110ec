// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache implements the Redis-backed read-through cache shared by the
book catalogue, reading progress, and description pipeline.

Architecture:

  - Write-around: only [Cache.Set] populates an entry, always called after
    a fresh read from the source of record. No method here ever reads
    from Postgres itself.
  - Graceful absence: a disconnected or erroring Redis is treated as an
    empty cache, never as a request failure. Every method swallows
    connectivity errors and returns the documented zero value.
  - Pattern eviction walks the keyspace with SCAN, never KEYS, so a large
    cache never blocks the Redis event loop during invalidation.

Hit/miss counters are process-local (sync/atomic), not read from Redis
INFO, so [Stats] reflects this instance's traffic, not the whole cluster.
*/
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatchSize bounds how many keys SCAN returns per cursor iteration.
const scanBatchSize = 200

// Cache is the read-through interface used by the orchestrator and its
// collaborators. All methods are safe for concurrent use.
type Cache interface {
	// Get returns the cached bytes for key and true on a hit. A miss,
	// absent entry, or Redis error all return (nil, false).
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set writes value under key with the given ttl. Errors are logged
	// and swallowed: a failed write degrades to a cache miss next read,
	// it never fails the caller's request.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Absence is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching pattern (a Redis glob) and
	// returns the number of keys removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Stats reports this process's view of cache health and hit rate.
	Stats(ctx context.Context) Stats
}

// Stats summarizes cache health and effectiveness for the admin endpoint.
type Stats struct {
	// Available reports whether the last operation reached Redis.
	Available bool `json:"available"`
	// KeysCount is the number of keys in the active Redis database, or 0
	// if unavailable.
	KeysCount int64 `json:"keysCount"`
	// HitRate is Hits / (Hits + Misses), or 0 if there has been no traffic.
	HitRate float64 `json:"hitRate"`
	// Hits is the number of Get calls that found a value.
	Hits int64 `json:"hits"`
	// Misses is the number of Get calls that did not find a value.
	Misses int64 `json:"misses"`
}

// redisCache is the Redis-backed [Cache] implementation.
type redisCache struct {
	client *redis.Client
	log    *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	available atomic.Bool
}

// New constructs a [Cache] backed by an already-connected Redis client.
func New(client *redis.Client, log *slog.Logger) Cache {
	c := &redisCache{client: client, log: log}
	c.available.Store(true)
	return c
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			c.available.Store(true)
			c.misses.Add(1)
			return nil, false
		}
		c.recordFailure("get", key, err)
		c.misses.Add(1)
		return nil, false
	}
	c.available.Store(true)
	c.hits.Add(1)
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.recordFailure("set", key, err)
		return nil
	}
	c.available.Store(true)
	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.recordFailure("delete", key, err)
		return nil
	}
	c.available.Store(true)
	return nil
}

func (c *redisCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			c.recordFailure("scan", pattern, err)
			return removed, nil
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.recordFailure("delete-pattern", pattern, err)
				return removed, nil
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.available.Store(true)
	return removed, nil
}

func (c *redisCache) Stats(ctx context.Context) Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	stats := Stats{
		Available: c.available.Load(),
		Hits:      hits,
		Misses:    misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	if count, err := c.client.DBSize(ctx).Result(); err != nil {
		c.recordFailure("dbsize", "", err)
		stats.Available = false
	} else {
		stats.KeysCount = count
		c.available.Store(true)
	}
	return stats
}

// recordFailure marks the cache unavailable and logs at debug level. Cache
// errors never propagate to callers; they are a degraded-mode signal only.
func (c *redisCache) recordFailure(op, key string, err error) {
	c.available.Store(false)
	c.log.Debug("cache operation failed, degrading to miss",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
