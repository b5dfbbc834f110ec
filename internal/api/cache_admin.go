// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira/internal/platform/cache"
	"github.com/taibuivan/yomira/internal/platform/middleware"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/internal/platform/sec"
)

// CacheAdminHandler exposes read-only visibility into the cache layer's
// hit rate and availability for operators.
type CacheAdminHandler struct {
	cache cache.Cache
}

// NewCacheAdminHandler constructs a [CacheAdminHandler] over an existing
// [cache.Cache] instance.
func NewCacheAdminHandler(c cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// Routes mounts the admin-only cache inspection endpoint.
func (handler *CacheAdminHandler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	/* GET /admin/cache/stats. Description: reports this process's cache
	hit rate, key count, and Redis reachability. */
	router.Get("/stats", handler.stats)

	return router
}

func (handler *CacheAdminHandler) stats(writer http.ResponseWriter, request *http.Request) {
	stats := handler.cache.Stats(request.Context())
	respond.OK(writer, stats)
}
