// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package flags

import "context"

// Store persists feature flags to the source of record.
type Store interface {
	// Get returns the flag named name, or an [apperr.AppError] NotFound.
	Get(ctx context.Context, name string) (*FeatureFlag, error)

	// List returns every flag, ordered by category then name.
	List(ctx context.Context) ([]FeatureFlag, error)

	// Upsert inserts flag or updates it by name, returning the stored row.
	Upsert(ctx context.Context, flag FeatureFlag) (*FeatureFlag, error)

	// SetEnabled flips the enabled bit for name, returning NotFound if the
	// flag does not exist.
	SetEnabled(ctx context.Context, name string, enabled bool) error
}
