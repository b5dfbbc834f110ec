// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package canary manages the gradual rollout of the v2 description-pipeline
architecture, grounded on the original NLP canary deployment manager's
consistent-hashing cohort assignment.

A user's cohort is decided once by a stable hash of their user ID, never
by a coin flip per request — advancing or rolling back the stage changes
who falls under the current percentage, but a user already inside the
cohort at one stage never flaps back out simply because the process
re-evaluated membership; they fall out only when the stage itself drops
below their bucket.
*/
package canary

import "time"

// Stage is one step of the rollout ladder.
type Stage int

// The five rollout stages, matching the original deployment ladder.
const (
	StageDisabled Stage = iota
	StageEarlyTesting
	StageExpanded
	StageHalfRollout
	StageFullRollout
)

var stagePercents = [...]int{0, 5, 25, 50, 100}

// Percent returns the rollout percentage for s.
func (s Stage) Percent() int {
	if s < StageDisabled || s > StageFullRollout {
		return 0
	}
	return stagePercents[s]
}

// StageRecord is one audited transition of the rollout stage.
type StageRecord struct {
	ID             int64     `json:"id"`
	Stage          Stage     `json:"stage"`
	RolloutPercent int       `json:"rolloutPercent"`
	UpdatedAt      time.Time `json:"updatedAt"`
	UpdatedBy      string    `json:"updatedBy"`
	Notes          string    `json:"notes"`
}

// Status summarizes the current rollout state for the admin endpoint.
type Status struct {
	Stage          Stage           `json:"stage"`
	RolloutPercent int             `json:"rolloutPercent"`
	FlagEnabled    bool            `json:"flagEnabled"`
	LastUpdatedAt  time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy  string          `json:"lastUpdatedBy"`
	QualityMetrics *QualityMetrics `json:"qualityMetrics,omitempty"`
}

// QualityMetrics reports per-cohort sample sizes, supplied by a
// [MetricsAggregator]. Nil when no aggregator is wired.
type QualityMetrics struct {
	V1SampleSize int     `json:"v1SampleSize"`
	V2SampleSize int     `json:"v2SampleSize"`
	V1ErrorRate  float64 `json:"v1ErrorRate"`
	V2ErrorRate  float64 `json:"v2ErrorRate"`
}
