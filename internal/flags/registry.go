// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package flags

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Registry resolves flag state with a cache-first strategy: in-process
// cache, then the database, then an environment variable, then the
// caller's default. The database always wins over the environment —
// an operator toggling a flag never has to wait for a redeploy.
type Registry struct {
	store Store
	log   *slog.Logger

	mu    sync.RWMutex
	cache map[string]bool
}

// NewRegistry constructs a [Registry] backed by store.
func NewRegistry(store Store, log *slog.Logger) *Registry {
	return &Registry{store: store, log: log, cache: make(map[string]bool)}
}

// IsEnabled resolves name's current value.
//
// Resolution order: in-process cache -> store (populates cache on hit) ->
// environment variable NAME (truthy/falsy, case-insensitive) -> def.
func (r *Registry) IsEnabled(ctx context.Context, name string, def bool) bool {
	r.mu.RLock()
	if v, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return v
	}
	r.mu.RUnlock()

	flag, err := r.store.Get(ctx, name)
	if err == nil {
		r.mu.Lock()
		r.cache[name] = flag.Enabled
		r.mu.Unlock()
		return flag.Enabled
	}

	if v, ok := parseEnvBool(os.Getenv(name)); ok {
		return v
	}

	return def
}

// SetFlag persists enabled for name and invalidates its cache entry.
func (r *Registry) SetFlag(ctx context.Context, name string, enabled bool) error {
	if err := r.store.SetEnabled(ctx, name, enabled); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
	return nil
}

// BulkUpdate applies every (name, enabled) pair in updates independently,
// continuing past individual failures, and reports one error per failed
// name. The entire in-process cache is cleared once at the end so a
// partial failure never leaves stale entries mixed with fresh ones.
func (r *Registry) BulkUpdate(ctx context.Context, updates map[string]bool) map[string]error {
	results := make(map[string]error, len(updates))
	for name, enabled := range updates {
		if err := r.store.SetEnabled(ctx, name, enabled); err != nil {
			results[name] = err
			r.log.Warn("bulk flag update failed",
				slog.String("flag", name),
				slog.String("error", err.Error()),
			)
		}
	}

	r.mu.Lock()
	r.cache = make(map[string]bool)
	r.mu.Unlock()

	return results
}

// Initialize idempotently inserts [DefaultFlags] into the store, skipping
// any flag that already exists.
func (r *Registry) Initialize(ctx context.Context) error {
	for _, flag := range DefaultFlags() {
		if _, err := r.store.Get(ctx, flag.Name); err == nil {
			continue
		}
		if _, err := r.store.Upsert(ctx, flag); err != nil {
			return err
		}
	}
	return nil
}

// List returns every flag currently in the store.
func (r *Registry) List(ctx context.Context) ([]FeatureFlag, error) {
	return r.store.List(ctx)
}

// parseEnvBool parses common truthy/falsy environment variable spellings.
// The second return is false when raw doesn't match any recognized form.
func parseEnvBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return false, false
	case "1", "true", "yes", "on", "enabled":
		return true, true
	case "0", "false", "no", "off", "disabled":
		return false, true
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v, true
	}
	return false, false
}
