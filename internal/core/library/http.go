// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package library

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/stampede"

	"github.com/taibuivan/yomira/internal/core/book"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/middleware"
	requestutil "github.com/taibuivan/yomira/internal/platform/request"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/pkg/pagination"
	"github.com/taibuivan/yomira/pkg/query"
)

// coalesceWindow bounds how long an in-flight GET's response is shared with
// requests for the same resource that arrive while it's still running — a
// second defense against the thundering-herd pattern the cache layer's own
// singleflight-less Get already mitigates at the Redis round-trip level.
const coalesceWindow = 2 * time.Second

// # Handler Implementation

// Handler is the HTTP interface to the library [Service]. Every route
// requires authentication; ownership of the addressed book is enforced by
// the service layer itself, scoped to the caller's user ID.
type Handler struct {
	service        *Service
	maxUploadBytes int64
}

// NewHandler constructs a library [Handler].
func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

// Routes returns a [chi.Router] for the library surface. RequireAuth is
// applied here, so the router is self-contained and needs no auth group
// around its mount point.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Post("/books", handler.uploadBook)
	router.Post("/books/{bookID}/images/batch", handler.batchGenerateImages)
	router.Post("/books/{bookID}/parsing", handler.submitParsing)
	router.Put("/books/{bookID}/progress", handler.updateProgress)
	router.Delete("/books/{bookID}", handler.deleteBook)

	// Reads are coalesced: concurrent identical GETs (the common case right
	// after a book finishes parsing and every open tab refreshes at once)
	// share one in-flight response instead of each round-tripping to the
	// cache/database independently.
	router.Group(func(reads chi.Router) {
		reads.Use(stampede.Handler(1024, coalesceWindow))

		reads.Get("/books", handler.listBooks)
		reads.Get("/books/{bookID}", handler.getBook)
		reads.Get("/books/{bookID}/chapters", handler.listChapters)
		reads.Get("/books/{bookID}/chapters/{number}", handler.getChapter)
		reads.Get("/books/{bookID}/descriptions", handler.listDescriptions)
		reads.Get("/books/{bookID}/parsing", handler.getParsingStatus)
		reads.Get("/books/{bookID}/progress", handler.getProgress)
	})

	return router
}

/*
POST /api/v1/library/books.

Description: Uploads a new book (EPUB or FB2), parses it into chapters,
and submits it to the parsing queue. Accepts multipart/form-data with a
single "file" field and an optional "genre" field.

Response:
  - 201: {"book": Book, "parsing": SubmissionResult}
  - 400: ErrCorrupted / ErrUnsupportedFormat / ErrEmptyFile / ErrFileTooLarge
*/
func (handler *Handler) uploadBook(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := request.ParseMultipartForm(handler.maxUploadBytes); err != nil {
		respond.Error(writer, request, apperr.ValidationError("request body is not a valid multipart upload"))
		return
	}

	file, header, err := request.FormFile("file")
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError("missing \"file\" field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	genre := book.Genre(request.FormValue("genre"))

	b, submission, err := handler.service.UploadBook(request.Context(), UploadInput{
		OwnerUserID: userID,
		Filename:    header.Filename,
		Data:        data,
		Genre:       genre,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, map[string]any{"book": b, "parsing": submission})
}

/*
GET /api/v1/library/books.

Description: Lists the caller's library, paginated and sorted.

Request:
  - page, limit: int
  - sort: string (created_desc, created_asc, title_asc, title_desc,
    author_asc, author_desc, accessed_desc)

Response:
  - 200: []BookWithStats
*/
func (handler *Handler) listBooks(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	sort := book.Sort(request.URL.Query().Get("sort"))
	if sort == "" {
		sort = book.SortCreatedDesc
	}

	books, total, err := handler.service.ListBooks(request.Context(), ListParams{
		OwnerUserID: userID,
		Skip:        params.Offset(),
		Limit:       params.Limit,
		Sort:        sort,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, books, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GET /api/v1/library/books/{bookID}.

Response:
  - 200: Book
  - 404: ErrNotFound
*/
func (handler *Handler) getBook(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	b, err := handler.service.GetBook(request.Context(), userID, requestutil.ID(request, "bookID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, b)
}

/*
DELETE /api/v1/library/books/{bookID}.

Response:
  - 204: no content
  - 404: ErrNotFound
*/
func (handler *Handler) deleteBook(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.DeleteBook(request.Context(), userID, requestutil.ID(request, "bookID")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

/*
GET /api/v1/library/books/{bookID}/chapters.

Response:
  - 200: []Chapter (content omitted; see GET .../chapters/{number})
*/
func (handler *Handler) listChapters(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	chapters, err := handler.service.ListChapters(request.Context(), userID, requestutil.ID(request, "bookID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, chapters)
}

/*
GET /api/v1/library/books/{bookID}/chapters/{number}.

Response:
  - 200: Chapter
  - 404: ErrNotFound
*/
func (handler *Handler) getChapter(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	number, err := strconv.Atoi(requestutil.Param(request, "number"))
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError("chapter number must be numeric"))
		return
	}

	chapter, err := handler.service.GetChapter(request.Context(), userID, requestutil.ID(request, "bookID"), number)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, chapter)
}

/*
GET /api/v1/library/books/{bookID}/descriptions.

Request:
  - type: string (optional, comma-separated; e.g. "location,character")

Response:
  - 200: []Description
*/
func (handler *Handler) listDescriptions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	rawTypes := query.StringSlice(request.URL.Query().Get("type"))
	types := make([]book.DescriptionType, len(rawTypes))
	for i, t := range rawTypes {
		types[i] = book.DescriptionType(t)
	}

	descriptions, err := handler.service.ListDescriptions(request.Context(), userID, requestutil.ID(request, "bookID"), types)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, descriptions)
}

/*
POST /api/v1/library/books/{bookID}/images/batch.

Description: Generates illustrations for up to "top" not-yet-imaged
descriptions, ordered by priority.

Request:
  - top: int (default 5)

Response:
  - 200: []pipeline.BatchResult
*/
func (handler *Handler) batchGenerateImages(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	topK := 5
	if raw := request.URL.Query().Get("top"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			topK = parsed
		}
	}

	results, err := handler.service.BatchGenerateImages(request.Context(), userID, requestutil.ID(request, "bookID"), topK)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, results)
}

/*
POST /api/v1/library/books/{bookID}/parsing.

Description: (Re)submits bookID to the parsing queue. Safe to call again
on a book already queued or processing; the coordinator returns that
entry's current status without disturbing the in-flight run.

Response:
  - 200: SubmissionResult (also for a book already queued or processing)
*/
func (handler *Handler) submitParsing(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.SubmitParsing(request.Context(), userID, requestutil.ID(request, "bookID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}

/*
GET /api/v1/library/books/{bookID}/parsing.

Response:
  - 200: ParsingStatus
*/
func (handler *Handler) getParsingStatus(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	status, err := handler.service.GetParsingStatus(request.Context(), userID, requestutil.ID(request, "bookID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, status)
}

// progressRequest is the inbound JSON schema for a reading position update.
type progressRequest struct {
	CurrentChapter      int     `json:"currentChapter"`
	CurrentPagePercent  float64 `json:"currentPagePercent"`
	LocationFingerprint string  `json:"locationFingerprint"`
	ScrollOffsetPercent float64 `json:"scrollOffsetPercent"`
	ReadingTimeMinutes  int     `json:"readingTimeMinutes"`
}

/*
PUT /api/v1/library/books/{bookID}/progress.

Response:
  - 200: ReadingProgress
  - 400: ErrValidation
*/
func (handler *Handler) updateProgress(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body progressRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	progress, err := handler.service.UpdateProgress(request.Context(), userID, requestutil.ID(request, "bookID"), ProgressInput{
		CurrentChapter:      body.CurrentChapter,
		CurrentPagePercent:  body.CurrentPagePercent,
		LocationFingerprint: body.LocationFingerprint,
		ScrollOffsetPercent: body.ScrollOffsetPercent,
		ReadingTimeMinutes:  body.ReadingTimeMinutes,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, progress)
}

/*
GET /api/v1/library/books/{bookID}/progress.

Response:
  - 200: ReadingProgress
  - 404: ErrNotFound
*/
func (handler *Handler) getProgress(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	progress, err := handler.service.GetProgress(request.Context(), userID, requestutil.ID(request, "bookID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, progress)
}
