// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package canary_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/canary"
	"github.com/taibuivan/yomira/internal/platform/apperr"
)

type fakeStore struct {
	records []canary.StageRecord
	nextID  int64
}

func (s *fakeStore) Latest(context.Context) (*canary.StageRecord, error) {
	if len(s.records) == 0 {
		return nil, apperr.NotFound("StageRecord")
	}
	latest := s.records[len(s.records)-1]
	return &latest, nil
}

func (s *fakeStore) Insert(_ context.Context, record canary.StageRecord) (*canary.StageRecord, error) {
	s.nextID++
	record.ID = s.nextID
	s.records = append(s.records, record)
	return &record, nil
}

func (s *fakeStore) History(_ context.Context, limit int) ([]canary.StageRecord, error) {
	out := make([]canary.StageRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

type fakeFlags struct{ enabled bool }

func (f fakeFlags) IsEnabled(context.Context, string, bool) bool { return f.enabled }

func newController(flagEnabled bool) (*canary.Controller, *fakeStore) {
	store := &fakeStore{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return canary.NewController(store, fakeFlags{enabled: flagEnabled}, log), store
}

func TestController_UseV2_FlagDisabled(t *testing.T) {
	ctrl, store := newController(false)
	_, err := store.Insert(context.Background(), canary.StageRecord{Stage: canary.StageFullRollout})
	require.NoError(t, err)

	use, err := ctrl.UseV2(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, use)
}

func TestController_UseV2_NoRecordYet(t *testing.T) {
	ctrl, _ := newController(true)
	use, err := ctrl.UseV2(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, use)
}

func TestController_UseV2_MembershipIsStableWithinStage(t *testing.T) {
	ctrl, store := newController(true)
	_, err := store.Insert(context.Background(), canary.StageRecord{Stage: canary.StageHalfRollout, RolloutPercent: 50})
	require.NoError(t, err)

	first, err := ctrl.UseV2(context.Background(), "user-42")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := ctrl.UseV2(context.Background(), "user-42")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestController_Advance_ErrorsAtFullRollout(t *testing.T) {
	ctrl, store := newController(true)
	_, err := store.Insert(context.Background(), canary.StageRecord{Stage: canary.StageFullRollout, RolloutPercent: 100})
	require.NoError(t, err)

	_, err = ctrl.Advance(context.Background(), "ops", "")
	require.Error(t, err)
}

func TestController_Advance_StepsThroughLadder(t *testing.T) {
	ctrl, _ := newController(true)

	record, err := ctrl.Advance(context.Background(), "ops", "begin testing")
	require.NoError(t, err)
	assert.Equal(t, canary.StageEarlyTesting, record.Stage)
	assert.Equal(t, 5, record.RolloutPercent)

	record, err = ctrl.Advance(context.Background(), "ops", "expand")
	require.NoError(t, err)
	assert.Equal(t, canary.StageExpanded, record.Stage)
	assert.Equal(t, 25, record.RolloutPercent)
}

func TestController_Rollback_AcceptsAnyValidStage(t *testing.T) {
	ctrl, store := newController(true)
	_, err := store.Insert(context.Background(), canary.StageRecord{Stage: canary.StageFullRollout, RolloutPercent: 100})
	require.NoError(t, err)

	record, err := ctrl.Rollback(context.Background(), canary.StageDisabled, "ops", "regression detected")
	require.NoError(t, err)
	assert.Equal(t, canary.StageDisabled, record.Stage)
	assert.Equal(t, 0, record.RolloutPercent)
}

func TestController_Rollback_RejectsOutOfRangeStage(t *testing.T) {
	ctrl, _ := newController(true)
	_, err := ctrl.Rollback(context.Background(), canary.Stage(99), "ops", "")
	require.Error(t, err)
}

func TestController_Status_NoRecordDefaultsToDisabled(t *testing.T) {
	ctrl, _ := newController(true)
	status, err := ctrl.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, canary.StageDisabled, status.Stage)
	assert.Equal(t, 0, status.RolloutPercent)
}

func TestController_History_ReturnsMostRecentFirst(t *testing.T) {
	ctrl, store := newController(true)
	_, err := store.Insert(context.Background(), canary.StageRecord{Stage: canary.StageEarlyTesting, RolloutPercent: 5})
	require.NoError(t, err)
	_, err = store.Insert(context.Background(), canary.StageRecord{Stage: canary.StageExpanded, RolloutPercent: 25})
	require.NoError(t, err)

	history, err := ctrl.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, canary.StageExpanded, history[0].Stage)
}
