// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache_test

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

	"github.com/taibuivan/yomira/internal/platform/cache"
)

func newTestCache(t *testing.T) (cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cache.New(client, log), mr
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "yomira:book:missing")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "yomira:book:1", []byte("payload"), time.Minute))

	val, ok := c.Get(ctx, "yomira:book:1")
	require.True(t, ok)
	assert.Equal(t, "payload", string(val))
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "yomira:book:1", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "yomira:book:1"))

	_, ok := c.Get(ctx, "yomira:book:1")
	assert.False(t, ok)
}

func TestCache_DeletePattern(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "yomira:chapter:1:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "yomira:chapter:1:2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "yomira:chapter:2:1", []byte("c"), time.Minute))

	removed, err := c.DeletePattern(ctx, "yomira:chapter:1:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok := c.Get(ctx, "yomira:chapter:2:1")
	assert.True(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "yomira:book:1", []byte("x"), time.Minute))
	_, _ = c.Get(ctx, "yomira:book:1")
	_, _ = c.Get(ctx, "yomira:book:missing")

	stats := c.Stats(ctx)
	assert.True(t, stats.Available)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
}

func TestCache_GracefulAbsenceOnDisconnect(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	_, ok := c.Get(ctx, "yomira:book:1")
	assert.False(t, ok)

	err := c.Set(ctx, "yomira:book:1", []byte("x"), time.Minute)
	assert.NoError(t, err)

	stats := c.Stats(ctx)
	assert.False(t, stats.Available)
}
