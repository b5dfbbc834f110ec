// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// blacklistKeyPrefix namespaces revoked-token entries away from other keys
// stored in the same Redis database.
const blacklistKeyPrefix = "token_blacklist:"

// BlacklistRepository records revoked access tokens until their natural
// expiration, so a logged-out or rotated token cannot be replayed.
//
// Tokens are stored with TTL = time until their original 'exp' claim, so
// Redis reclaims the entry exactly when the token would have stopped being
// valid anyway — the blacklist never outlives the token it blocks.
type BlacklistRepository struct {
	client *redis.Client
	log    *slog.Logger

	// failClosed controls behavior when Redis is unreachable during
	// IsBlacklisted. false (the default) fails open: an unreachable
	// blacklist never blocks a request on its own. true fails closed:
	// every token is treated as revoked until Redis recovers.
	failClosed bool
}

// NewBlacklistRepository constructs a [BlacklistRepository].
func NewBlacklistRepository(client *redis.Client, log *slog.Logger, failClosed bool) *BlacklistRepository {
	return &BlacklistRepository{client: client, log: log, failClosed: failClosed}
}

// Add revokes token until expiresAt. If the token has already expired,
// Add is a no-op: there is nothing left to protect against replay.
func (r *BlacklistRepository) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	key := blacklistKeyPrefix + token
	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist: add failed: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether token has been revoked.
//
// On Redis connectivity failure, the result is governed by failClosed:
// fail-open (default) returns false so authentication degrades to
// "blacklist unknown, allow", fail-closed returns true so authentication
// degrades to "blacklist unknown, deny".
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, token string) bool {
	key := blacklistKeyPrefix + token

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.log.Warn("blacklist check failed, degrading per fail-open/closed policy",
			slog.Bool("fail_closed", r.failClosed),
			slog.String("error", err.Error()),
		)
		return r.failClosed
	}

	return exists > 0
}

// Remove un-revokes token, used for administrative token re-issuance.
func (r *BlacklistRepository) Remove(ctx context.Context, token string) error {
	key := blacklistKeyPrefix + token
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("blacklist: remove failed: %w", err)
	}
	return nil
}
