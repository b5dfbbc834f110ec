// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package flags_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/flags"
	"github.com/taibuivan/yomira/internal/platform/apperr"
)

type fakeStore struct {
	rows map[string]flags.FeatureFlag
}

func newFakeStore() *fakeStore { return &fakeStore{rows: make(map[string]flags.FeatureFlag)} }

func (s *fakeStore) Get(_ context.Context, name string) (*flags.FeatureFlag, error) {
	row, ok := s.rows[name]
	if !ok {
		return nil, apperr.NotFound("FeatureFlag")
	}
	return &row, nil
}

func (s *fakeStore) List(_ context.Context) ([]flags.FeatureFlag, error) {
	out := make([]flags.FeatureFlag, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeStore) Upsert(_ context.Context, flag flags.FeatureFlag) (*flags.FeatureFlag, error) {
	s.rows[flag.Name] = flag
	return &flag, nil
}

func (s *fakeStore) SetEnabled(_ context.Context, name string, enabled bool) error {
	row, ok := s.rows[name]
	if !ok {
		return apperr.NotFound("FeatureFlag")
	}
	row.Enabled = enabled
	s.rows[name] = row
	return nil
}

func newTestRegistry() (*flags.Registry, *fakeStore) {
	store := newFakeStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return flags.NewRegistry(store, log), store
}

func TestRegistry_IsEnabled_FallsBackToDefault(t *testing.T) {
	registry, _ := newTestRegistry()
	assert.True(t, registry.IsEnabled(context.Background(), "UNKNOWN_FLAG", true))
	assert.False(t, registry.IsEnabled(context.Background(), "UNKNOWN_FLAG", false))
}

func TestRegistry_IsEnabled_EnvFallback(t *testing.T) {
	registry, _ := newTestRegistry()
	t.Setenv("SOME_FLAG", "true")
	assert.True(t, registry.IsEnabled(context.Background(), "SOME_FLAG", false))
}

func TestRegistry_IsEnabled_StoreDominatesEnv(t *testing.T) {
	registry, store := newTestRegistry()
	t.Setenv("SOME_FLAG", "true")
	_, err := store.Upsert(context.Background(), flags.FeatureFlag{Name: "SOME_FLAG", Enabled: false})
	require.NoError(t, err)

	assert.False(t, registry.IsEnabled(context.Background(), "SOME_FLAG", true))
}

func TestRegistry_SetFlag_InvalidatesCache(t *testing.T) {
	registry, store := newTestRegistry()
	_, err := store.Upsert(context.Background(), flags.FeatureFlag{Name: "SOME_FLAG", Enabled: false})
	require.NoError(t, err)

	assert.False(t, registry.IsEnabled(context.Background(), "SOME_FLAG", false))

	require.NoError(t, registry.SetFlag(context.Background(), "SOME_FLAG", true))
	assert.True(t, registry.IsEnabled(context.Background(), "SOME_FLAG", false))
}

func TestRegistry_BulkUpdate_ContinuesPastFailures(t *testing.T) {
	registry, store := newTestRegistry()
	_, err := store.Upsert(context.Background(), flags.FeatureFlag{Name: "FLAG_A", Enabled: false})
	require.NoError(t, err)

	results := registry.BulkUpdate(context.Background(), map[string]bool{
		"FLAG_A":      true,
		"MISSING_FLAG": true,
	})

	assert.NoError(t, results["FLAG_A"])
	assert.Error(t, results["MISSING_FLAG"])
	assert.True(t, registry.IsEnabled(context.Background(), "FLAG_A", false))
}

func TestRegistry_Initialize_IsIdempotent(t *testing.T) {
	registry, store := newTestRegistry()
	require.NoError(t, registry.Initialize(context.Background()))
	require.NoError(t, registry.Initialize(context.Background()))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, len(flags.DefaultFlags()))
}
