// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package canary

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/taibuivan/yomira/internal/flags"
	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// FlagName is the feature flag gating v2 eligibility entirely.
const FlagName = "USE_NEW_NLP_ARCHITECTURE"

// FlagResolver is the subset of [flags.Registry] the controller depends on.
type FlagResolver interface {
	IsEnabled(ctx context.Context, name string, def bool) bool
}

// MetricsAggregator supplies per-cohort quality figures for the status
// endpoint. A nil aggregator means [Status.QualityMetrics] stays nil.
type MetricsAggregator interface {
	Aggregate(ctx context.Context) (*QualityMetrics, error)
}

// noopAggregator never reports metrics.
type noopAggregator struct{}

func (noopAggregator) Aggregate(context.Context) (*QualityMetrics, error) { return nil, nil }

// Controller manages the v2 pipeline rollout ladder and per-user cohort
// assignment.
type Controller struct {
	store   Store
	flags   FlagResolver
	metrics MetricsAggregator
	log     *slog.Logger

	mu     sync.Mutex
	cohort sync.Map // cohortKey{stageID, userID} -> bool
}

type cohortKey struct {
	stageID int64
	userID  string
}

// NewController constructs a [Controller] backed by store and flags.
func NewController(store Store, flagResolver FlagResolver, log *slog.Logger) *Controller {
	return &Controller{
		store:   store,
		flags:   flagResolver,
		metrics: noopAggregator{},
		log:     log,
	}
}

// WithMetrics attaches a [MetricsAggregator] and returns the controller for
// chaining.
func (c *Controller) WithMetrics(aggregator MetricsAggregator) *Controller {
	if aggregator != nil {
		c.metrics = aggregator
	}
	return c
}

// HashBucket maps userID to a stable bucket in [0, 100) using the first four
// bytes of its SHA-256 digest, matching the original deployment manager's
// consistent-hashing formula exactly.
func HashBucket(userID string) int {
	sum := sha256.Sum256([]byte(userID))
	v := binary.BigEndian.Uint32(sum[:4])
	return int(v % 100)
}

// UseV2 reports whether userID currently falls in the v2 pipeline cohort.
// A user's membership is decided once per stage: the result is memoized by
// (stageID, userID) so it never flaps within a single stage, and a stage
// change naturally invalidates every prior membership decision because the
// memoization key changes with it.
func (c *Controller) UseV2(ctx context.Context, userID string) (bool, error) {
	if !c.flags.IsEnabled(ctx, FlagName, false) {
		return false, nil
	}

	record, err := c.store.Latest(ctx)
	if err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.Code == "NOT_FOUND" {
			return false, nil
		}
		return false, err
	}

	key := cohortKey{stageID: record.ID, userID: userID}
	if v, ok := c.cohort.Load(key); ok {
		return v.(bool), nil
	}

	v := HashBucket(userID) < record.RolloutPercent
	c.cohort.Store(key, v)
	return v, nil
}

// Advance moves the rollout to the next stage in the ladder. It errors if
// the ladder is already at [StageFullRollout].
func (c *Controller) Advance(ctx context.Context, updatedBy, notes string) (StageRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.currentStage(ctx)
	if err != nil {
		return StageRecord{}, err
	}
	if current >= StageFullRollout {
		return StageRecord{}, apperr.Conflict("rollout is already at full stage")
	}

	next := current + 1
	record := StageRecord{
		Stage:          next,
		RolloutPercent: next.Percent(),
		UpdatedBy:      updatedBy,
		Notes:          notes,
	}
	inserted, err := c.store.Insert(ctx, record)
	if err != nil {
		return StageRecord{}, err
	}
	c.log.Info("canary stage advanced",
		slog.Int("stage", int(next)),
		slog.Int("rolloutPercent", next.Percent()),
		slog.String("updatedBy", updatedBy),
	)
	return *inserted, nil
}

// Rollback sets the rollout to target, which may be any stage in
// [StageDisabled, StageFullRollout], including a stage ahead of the current
// one (logged as a warning, since "rollback" to a higher stage is unusual
// but not invalid).
func (c *Controller) Rollback(ctx context.Context, target Stage, updatedBy, notes string) (StageRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if target < StageDisabled || target > StageFullRollout {
		return StageRecord{}, apperr.ValidationError("stage must be between 0 and 4")
	}

	current, err := c.currentStage(ctx)
	if err != nil {
		return StageRecord{}, err
	}
	if target > current {
		c.log.Warn("canary rollback target is ahead of current stage",
			slog.Int("current", int(current)),
			slog.Int("target", int(target)),
		)
	}

	record := StageRecord{
		Stage:          target,
		RolloutPercent: target.Percent(),
		UpdatedBy:      updatedBy,
		Notes:          notes,
	}
	inserted, err := c.store.Insert(ctx, record)
	if err != nil {
		return StageRecord{}, err
	}
	c.log.Info("canary stage rolled back",
		slog.Int("stage", int(target)),
		slog.String("updatedBy", updatedBy),
	)
	return *inserted, nil
}

// History returns up to limit prior stage transitions, most recent first.
func (c *Controller) History(ctx context.Context, limit int) ([]StageRecord, error) {
	return c.store.History(ctx, limit)
}

// Status reports the current rollout stage, flag state, and (if an
// aggregator is wired) cohort quality metrics.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	record, err := c.store.Latest(ctx)
	if err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.Code == "NOT_FOUND" {
			return Status{Stage: StageDisabled, RolloutPercent: 0}, nil
		}
		return Status{}, err
	}

	status := Status{
		Stage:          record.Stage,
		RolloutPercent: record.RolloutPercent,
		FlagEnabled:    c.flags.IsEnabled(ctx, FlagName, false),
		LastUpdatedAt:  record.UpdatedAt,
		LastUpdatedBy:  record.UpdatedBy,
	}

	if metrics, err := c.metrics.Aggregate(ctx); err == nil {
		status.QualityMetrics = metrics
	}

	return status, nil
}

func (c *Controller) currentStage(ctx context.Context) (Stage, error) {
	record, err := c.store.Latest(ctx)
	if err != nil {
		if appErr := apperr.As(err); appErr != nil && appErr.Code == "NOT_FOUND" {
			return StageDisabled, nil
		}
		return StageDisabled, err
	}
	return record.Stage, nil
}
