// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/users/auth"
)

func newTestBlacklist(t *testing.T, failClosed bool) (*auth.BlacklistRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return auth.NewBlacklistRepository(client, log, failClosed), mr
}

func TestBlacklist_AddAndCheck(t *testing.T) {
	repo, _ := newTestBlacklist(t, false)
	ctx := context.Background()

	assert.False(t, repo.IsBlacklisted(ctx, "token-a"))

	require.NoError(t, repo.Add(ctx, "token-a", time.Now().Add(time.Minute)))

	assert.True(t, repo.IsBlacklisted(ctx, "token-a"))
}

func TestBlacklist_AddExpiredTokenIsNoop(t *testing.T) {
	repo, _ := newTestBlacklist(t, false)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "token-expired", time.Now().Add(-time.Minute)))

	assert.False(t, repo.IsBlacklisted(ctx, "token-expired"))
}

func TestBlacklist_Remove(t *testing.T) {
	repo, _ := newTestBlacklist(t, false)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "token-a", time.Now().Add(time.Minute)))
	require.NoError(t, repo.Remove(ctx, "token-a"))

	assert.False(t, repo.IsBlacklisted(ctx, "token-a"))
}

func TestBlacklist_FailOpenOnDisconnect(t *testing.T) {
	repo, mr := newTestBlacklist(t, false)
	ctx := context.Background()

	mr.Close()

	assert.False(t, repo.IsBlacklisted(ctx, "token-a"))
}

func TestBlacklist_FailClosedOnDisconnect(t *testing.T) {
	repo, mr := newTestBlacklist(t, true)
	ctx := context.Background()

	mr.Close()

	assert.True(t, repo.IsBlacklisted(ctx, "token-a"))
}
