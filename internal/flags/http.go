// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package flags

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira/internal/platform/request"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/internal/platform/sec"
)

// # Handler Implementation

// Handler exposes the feature flag registry to operators. Every route
// requires [sec.RoleAdmin].
type Handler struct {
	registry *Registry
}

// NewHandler constructs a flags admin [Handler].
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes returns a [chi.Router] for the flags admin surface.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/", handler.list)
	router.Put("/{name}", handler.setFlag)
	router.Post("/bulk", handler.bulkUpdate)

	return router
}

/*
GET /api/v1/admin/flags.

Description: Lists every feature flag and its current persisted value.

Response:
  - 200: []FeatureFlag
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	flags, err := handler.registry.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, flags)
}

// setFlagRequest is the inbound JSON schema for toggling one flag.
type setFlagRequest struct {
	Enabled bool `json:"enabled"`
}

/*
PUT /api/v1/admin/flags/{name}.

Description: Sets a single flag's enabled state and invalidates this
process's cached entry for it, so the registry here resolves it from the
store next time.

Request body:
  - enabled: bool

Response:
  - 200: {"name": string, "enabled": bool}
*/
func (handler *Handler) setFlag(writer http.ResponseWriter, request *http.Request) {
	name := requestutil.Param(request, "name")

	var body setFlagRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.registry.SetFlag(request.Context(), name, body.Enabled); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"name": name, "enabled": body.Enabled})
}

/*
POST /api/v1/admin/flags/bulk.

Description: Applies many flag updates in one call. Each name/enabled pair
is applied independently; a failure on one name never blocks the others.

Request body:
  - updates: map[string]bool (flag name -> enabled)

Response:
  - 200: {"failed": map[string]string} (empty if every update succeeded)
*/
func (handler *Handler) bulkUpdate(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Updates map[string]bool `json:"updates"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	failures := handler.registry.BulkUpdate(request.Context(), body.Updates)
	failed := make(map[string]string, len(failures))
	for name, err := range failures {
		failed[name] = err.Error()
	}
	respond.OK(writer, map[string]any{"failed": failed})
}
