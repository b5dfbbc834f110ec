// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package canary

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira/internal/platform/request"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/internal/platform/sec"
	"github.com/taibuivan/yomira/internal/platform/validate"
)

// # Handler Implementation

// Handler exposes the rollout ladder to operators. Every route requires
// [sec.RoleAdmin]: the canary controller changes what pipeline every new
// parsing submission uses, platform-wide.
type Handler struct {
	controller *Controller
}

// NewHandler constructs a canary admin [Handler].
func NewHandler(controller *Controller) *Handler {
	return &Handler{controller: controller}
}

// Routes returns a [chi.Router] for the canary admin surface. Routes
// applies the admin role gate itself, so the package is safe to mount
// under a group that has no gate of its own.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/status", handler.getStatus)
	router.Get("/history", handler.getHistory)
	router.Post("/advance", handler.advance)
	router.Post("/rollback", handler.rollback)

	return router
}

/*
GET /api/v1/admin/canary/status.

Description: Reports the current rollout stage, the gating flag's state,
and (if a metrics aggregator is wired) per-cohort quality figures.

Response:
  - 200: Status
*/
func (handler *Handler) getStatus(writer http.ResponseWriter, request *http.Request) {
	status, err := handler.controller.Status(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, status)
}

/*
GET /api/v1/admin/canary/history.

Description: Returns prior stage transitions, most recent first.

Request:
  - limit: int (default 20)

Response:
  - 200: []StageRecord
*/
func (handler *Handler) getHistory(writer http.ResponseWriter, request *http.Request) {
	limit := 20
	if raw := request.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := handler.controller.History(request.Context(), limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, history)
}

// advanceRequest is the inbound JSON schema for a stage advance.
type advanceRequest struct {
	Notes string `json:"notes"`
}

/*
POST /api/v1/admin/canary/advance.

Description: Moves the rollout to the next stage in the ladder
(disabled -> canary_5 -> canary_25 -> canary_50 -> full). Fails with 409
if already at full rollout.

Request body:
  - notes: string (optional)

Response:
  - 200: StageRecord
  - 409: ErrConflict: already at full rollout
*/
func (handler *Handler) advance(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body advanceRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.controller.Advance(request.Context(), claims.UserID, body.Notes)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, record)
}

// rollbackRequest is the inbound JSON schema for a stage rollback.
type rollbackRequest struct {
	Stage int    `json:"stage"`
	Notes string `json:"notes"`
}

/*
POST /api/v1/admin/canary/rollback.

Description: Force-sets the rollout to a target stage, disabling the v2
pipeline for any cohort above it. Used to abort a canary on a quality
regression.

Request body:
  - stage: int (0-4, required)
  - notes: string (optional)

Response:
  - 200: StageRecord
  - 400: ErrValidation: stage out of range
*/
func (handler *Handler) rollback(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body rollbackRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Range("stage", body.Stage, int(StageDisabled), int(StageFullRollout))
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.controller.Rollback(request.Context(), Stage(body.Stage), claims.UserID, body.Notes)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, record)
}
