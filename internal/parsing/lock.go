// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package parsing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "parsing:lock:"

// leaseLock is a single-owner, time-bounded distributed lock keyed by book
// ID, backed by a Redis SET NX EX. It never blocks: acquire either succeeds
// immediately or reports that another worker already holds the book.
type leaseLock struct {
	client *redis.Client
}

func newLeaseLock(client *redis.Client) *leaseLock {
	return &leaseLock{client: client}
}

func (l *leaseLock) acquire(ctx context.Context, bookID, ownerUserID string, lease time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKeyPrefix+bookID, ownerUserID, lease).Result()
}

func (l *leaseLock) release(ctx context.Context, bookID string) error {
	return l.client.Del(ctx, lockKeyPrefix+bookID).Err()
}

func (l *leaseLock) renew(ctx context.Context, bookID string, lease time.Duration) error {
	return l.client.Expire(ctx, lockKeyPrefix+bookID, lease).Err()
}
