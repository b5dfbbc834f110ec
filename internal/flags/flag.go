// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package flags implements the platform-wide feature flag registry.

Flags gate rollout of new NLP/parsing architecture, LLM enrichment, and
image pipeline behavior without a deploy. Resolution always prefers the
database over any environment fallback, so an operator flipping a flag in
the admin UI takes effect without restarting a single process.

Architecture:

  - Store: Postgres repository, unique on name.
  - Registry: in-process cache (a map guarded by sync.RWMutex) in front of Store, with an
    environment-variable fallback and a caller-supplied default as the
    last resort.
*/
package flags

import "time"

// Category groups related flags for the admin UI.
type Category string

// Recognized flag categories.
const (
	CategoryNLP          Category = "nlp"
	CategoryParser       Category = "parser"
	CategoryImages       Category = "images"
	CategorySystem       Category = "system"
	CategoryExperimental Category = "experimental"
)

// FeatureFlag is a single named toggle.
type FeatureFlag struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Enabled      bool      `json:"enabled"`
	Category     Category  `json:"category"`
	Description  string    `json:"description"`
	DefaultValue bool      `json:"defaultValue"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultFlags enumerates the flags the platform ships with. Initialize
// inserts any of these not already present in the store.
func DefaultFlags() []FeatureFlag {
	return []FeatureFlag{
		{
			Name:         "USE_NEW_NLP_ARCHITECTURE",
			Enabled:      true,
			Category:     CategoryNLP,
			Description:  "Enable the strategy-pattern multi-NLP architecture (v2)",
			DefaultValue: true,
		},
		{
			Name:         "USE_ADVANCED_PARSER",
			Enabled:      false,
			Category:     CategoryParser,
			Description:  "Enable the advanced parser with dependency parsing",
			DefaultValue: false,
		},
		{
			Name:         "USE_LLM_ENRICHMENT",
			Enabled:      false,
			Category:     CategoryNLP,
			Description:  "Enable LLM-based semantic enrichment of descriptions",
			DefaultValue: false,
		},
		{
			Name:         "ENABLE_ENSEMBLE_VOTING",
			Enabled:      true,
			Category:     CategoryNLP,
			Description:  "Enable ensemble voting across NLP extractors",
			DefaultValue: true,
		},
		{
			Name:         "ENABLE_PARALLEL_PROCESSING",
			Enabled:      true,
			Category:     CategoryNLP,
			Description:  "Enable parallel NLP processor execution",
			DefaultValue: true,
		},
		{
			Name:         "ENABLE_IMAGE_CACHING",
			Enabled:      true,
			Category:     CategoryImages,
			Description:  "Enable image generation caching",
			DefaultValue: true,
		},
	}
}
