// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package library is the public core API (the orchestrator): it composes the
book persistence layer, the Redis-backed cache, the parsing coordinator,
the description/image pipeline, and the canary controller into the single
entry point the HTTP delivery layer calls.

Architecture mirrors the teacher's comic [Service]: a struct holding every
collaborator interface it needs, constructed once by the composition root
in cmd/api/main.go. What's specific to this package is the read-through
cache wrapper and the write-then-invalidate discipline: every read first
tries [cache.Cache], every write mutates the store of record and then
evicts the key families the mutation can have staled, in that order, so a
caller never observes a success response before the invalidation that
makes its own next read correct has already happened.
*/
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taibuivan/yomira/internal/core/book"
	"github.com/taibuivan/yomira/internal/ingest"
	"github.com/taibuivan/yomira/internal/parsing"
	"github.com/taibuivan/yomira/internal/pipeline"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/cache"
	"github.com/taibuivan/yomira/internal/platform/cachekey"
	"github.com/taibuivan/yomira/internal/platform/config"
	"github.com/taibuivan/yomira/internal/platform/validate"
	"github.com/taibuivan/yomira/pkg/pointer"
	"github.com/taibuivan/yomira/pkg/slice"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// SubscriptionPriority resolves a user's queue admission weight. Defined
// here rather than imported from the auth package to avoid a
// library->auth->library import cycle; main.go supplies a closure over
// [auth.Subscription.Priority].
type SubscriptionPriority func(ctx context.Context, userID string) int

// CanaryResolver is the subset of [canary.Controller] the orchestrator
// depends on to pick a pipeline variant at submission time.
type CanaryResolver interface {
	UseV2(ctx context.Context, userID string) (bool, error)
}

// Service is the Orchestrator (C9): every Yomira book/chapter/progress/
// parsing operation passes through here.
type Service struct {
	books        book.BookStore
	chapters     book.ChapterStore
	progress     book.ProgressStore
	descriptions book.DescriptionStore
	images       book.ImageStore
	sessions     book.SessionStore

	cache  cache.Cache
	cfg    *config.Config
	parser *parsing.Coordinator
	driver *pipeline.Driver
	canary CanaryResolver
	ingest ingest.Parser

	priority SubscriptionPriority
	log      *slog.Logger
}

// Deps groups every collaborator [NewService] wires together.
type Deps struct {
	Books        book.BookStore
	Chapters     book.ChapterStore
	Progress     book.ProgressStore
	Descriptions book.DescriptionStore
	Images       book.ImageStore
	Sessions     book.SessionStore
	Cache        cache.Cache
	Config       *config.Config
	Parser       *parsing.Coordinator
	Pipeline     *pipeline.Driver
	Canary       CanaryResolver
	Ingest       ingest.Parser
	Priority     SubscriptionPriority
	Log          *slog.Logger
}

// NewService constructs the orchestrator from deps.
func NewService(deps Deps) *Service {
	return &Service{
		books:        deps.Books,
		chapters:     deps.Chapters,
		progress:     deps.Progress,
		descriptions: deps.Descriptions,
		images:       deps.Images,
		sessions:     deps.Sessions,
		cache:        deps.Cache,
		cfg:          deps.Config,
		parser:       deps.Parser,
		driver:       deps.Pipeline,
		canary:       deps.Canary,
		ingest:       deps.Ingest,
		priority:     deps.Priority,
		log:          deps.Log,
	}
}

// # Upload

// UploadInput is the raw material for one book upload.
type UploadInput struct {
	OwnerUserID string
	Filename    string
	Data        []byte
	Genre       book.Genre
}

// UploadBook parses filename/data into chapters, persists the book and its
// chapters, writes the original file under the configured storage root,
// invalidates the uploading user's library listing, and kicks off parsing.
func (s *Service) UploadBook(ctx context.Context, in UploadInput) (*book.Book, parsing.SubmissionResult, error) {
	format, err := ingest.DetectFormat(in.Filename, in.Data)
	if err != nil {
		return nil, parsing.SubmissionResult{}, err
	}

	parsed, err := s.ingest.Parse(format, in.Data)
	if err != nil {
		return nil, parsing.SubmissionResult{}, err
	}
	if len(parsed.Chapters) == 0 {
		return nil, parsing.SubmissionResult{}, apperr.Corrupted("no chapters recovered from upload")
	}

	genre := in.Genre
	if genre == "" {
		genre = book.GenreGeneral
	}

	relPath := filepath.Join("books", uuidv7.New()+fileExt(format))
	if err := s.writeStorageFile(relPath, in.Data); err != nil {
		return nil, parsing.SubmissionResult{}, apperr.Internal(fmt.Errorf("persist upload: %w", err))
	}

	title := parsed.Title
	if title == "" {
		title = strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename))
	}

	b := &book.Book{
		OwnerUserID: in.OwnerUserID,
		Title:       title,
		Author:      parsed.Author,
		Genre:       genre,
		Language:    parsed.Language,
		FileFormat:  format,
		FilePath:    relPath,
		FileSize:    int64(len(in.Data)),
	}
	if err := s.books.Create(ctx, b); err != nil {
		return nil, parsing.SubmissionResult{}, err
	}

	chapters := make([]book.Chapter, 0, len(parsed.Chapters))
	totalWords := 0
	for i, pc := range parsed.Chapters {
		wc := ingest.WordCount(pc.Content)
		totalWords += wc
		chapters = append(chapters, book.Chapter{
			BookID:        b.ID,
			ChapterNumber: i + 1,
			Title:         pc.Title,
			Content:       pc.Content,
			HTMLContent:   pc.HTMLContent,
			WordCount:     wc,
		})
	}
	if err := s.chapters.BulkCreate(ctx, chapters); err != nil {
		return nil, parsing.SubmissionResult{}, err
	}

	// ~200 words per minute is the teacher's reading-time estimate baseline.
	b.EstimatedReadMinutes = totalWords / 200
	b.TotalPages = len(chapters)

	s.invalidateBookList(ctx, in.OwnerUserID)

	result, err := s.SubmitParsing(ctx, in.OwnerUserID, b.ID)
	if err != nil {
		// Upload itself succeeded; parsing admission failure is reported
		// back to the caller but doesn't unwind the created book.
		return b, parsing.SubmissionResult{}, err
	}
	return b, result, nil
}

func fileExt(format book.FileFormat) string {
	if format == book.FormatFB2 {
		return ".fb2"
	}
	return ".epub"
}

func (s *Service) writeStorageFile(relPath string, data []byte) error {
	full := filepath.Join(s.cfg.StorageRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

// # Library listing

// ListParams narrows and paginates a library listing request.
type ListParams struct {
	OwnerUserID string
	Skip        int
	Limit       int
	Sort        book.Sort
}

// ListBooks returns a cached page of ownerUserID's library, populating the
// cache on miss with the short book_list TTL (parsing status changes fast).
func (s *Service) ListBooks(ctx context.Context, p ListParams) ([]book.BookWithStats, int, error) {
	key := cachekey.BookList(p.OwnerUserID, p.Skip, p.Limit, cachekey.Sort(p.Sort))

	type cached struct {
		Books []book.BookWithStats `json:"books"`
		Total int                  `json:"total"`
	}
	if raw, ok := s.cache.Get(ctx, key); ok {
		var c cached
		if err := json.Unmarshal(raw, &c); err == nil {
			return c.Books, c.Total, nil
		}
	}

	books, total, err := s.books.List(ctx, book.ListOptions{
		OwnerUserID: p.OwnerUserID,
		Skip:        p.Skip,
		Limit:       p.Limit,
		Sort:        p.Sort,
	})
	if err != nil {
		return nil, 0, err
	}

	if raw, err := json.Marshal(cached{Books: books, Total: total}); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.cfg.CacheTTL(config.CacheClassBookList))
	}
	return books, total, nil
}

// GetBook returns ownerUserID's book, cached under its metadata TTL.
func (s *Service) GetBook(ctx context.Context, ownerUserID, bookID string) (*book.Book, error) {
	key := cachekey.BookMetadata(bookID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var b book.Book
		if err := json.Unmarshal(raw, &b); err == nil && b.OwnerUserID == ownerUserID {
			return &b, nil
		}
	}

	b, err := s.books.GetByID(ctx, ownerUserID, bookID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(b); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.cfg.CacheTTL(config.CacheClassBookMetadata))
	}
	_ = s.books.Touch(ctx, bookID)
	return b, nil
}

// DeleteBook cascades the delete through the book's owned rows, best-effort
// removes its on-disk file and cover, and invalidates every cache family
// the book could appear in.
func (s *Service) DeleteBook(ctx context.Context, ownerUserID, bookID string) error {
	b, err := s.books.GetByID(ctx, ownerUserID, bookID)
	if err != nil {
		return err
	}

	if err := s.books.Delete(ctx, ownerUserID, bookID); err != nil {
		return err
	}

	s.removeStorageFileBestEffort(b.FilePath)
	s.removeStorageFileBestEffort(pointer.Val(b.CoverPath))

	s.invalidateBookList(ctx, ownerUserID)
	_ = s.cache.Delete(ctx, cachekey.BookMetadata(bookID))
	_ = s.cache.Delete(ctx, cachekey.BookChapters(bookID))
	_ = s.cache.Delete(ctx, cachekey.BookTOC(bookID))
	_, _ = s.cache.DeletePattern(ctx, cachekey.ChapterContentPattern(bookID))
	_, _ = s.cache.DeletePattern(ctx, cachekey.BookDescriptionsPattern(bookID))
	_, _ = s.cache.DeletePattern(ctx, cachekey.UserProgressPattern(ownerUserID))
	return nil
}

func (s *Service) removeStorageFileBestEffort(relPath string) {
	if relPath == "" {
		return
	}
	full := filepath.Join(s.cfg.StorageRoot, relPath)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		s.log.Warn("storage file removal failed", slog.String("path", full), slog.String("error", err.Error()))
	}
}

func (s *Service) invalidateBookList(ctx context.Context, ownerUserID string) {
	// The listing cache key is pagination/sort-specific; the simplest
	// invalidation correct under concurrent writers is to evict the whole
	// book_list namespace rather than try to enumerate every page any
	// client might have cached.
	_, _ = s.cache.DeletePattern(ctx, cachekey.BookListPattern())
	_ = ownerUserID
}

// # Chapters

// ListChapters returns bookID's chapters in number order, owner-scoped and
// cached.
func (s *Service) ListChapters(ctx context.Context, ownerUserID, bookID string) ([]book.Chapter, error) {
	if _, err := s.books.GetByID(ctx, ownerUserID, bookID); err != nil {
		return nil, err
	}

	key := cachekey.BookChapters(bookID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var chapters []book.Chapter
		if err := json.Unmarshal(raw, &chapters); err == nil {
			return chapters, nil
		}
	}

	chapters, err := s.chapters.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(chapters); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.cfg.CacheTTL(config.CacheClassBookChapters))
	}
	return chapters, nil
}

// GetChapter returns bookID's chapter at number, owner-scoped and cached at
// chapter granularity so a single chapter read never pulls the whole book.
func (s *Service) GetChapter(ctx context.Context, ownerUserID, bookID string, number int) (*book.Chapter, error) {
	if _, err := s.books.GetByID(ctx, ownerUserID, bookID); err != nil {
		return nil, err
	}

	key := cachekey.ChapterContent(bookID, number)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var c book.Chapter
		if err := json.Unmarshal(raw, &c); err == nil {
			return &c, nil
		}
	}

	chapter, err := s.chapters.GetByNumber(ctx, bookID, number)
	if err != nil {
		return nil, apperr.NotFound("Chapter")
	}
	if raw, err := json.Marshal(chapter); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.cfg.CacheTTL(config.CacheClassChapterContent))
	}
	return chapter, nil
}

// # Parsing

// SubmitParsing admits bookID into the parsing queue/lock and reports in
// the result the pipeline variant the canary controller picks for the
// owner ("v2" or "legacy"). The variant is not passed to the coordinator:
// the parsing run uses the same pipeline whichever variant is reported.
func (s *Service) SubmitParsing(ctx context.Context, ownerUserID, bookID string) (parsing.SubmissionResult, error) {
	if _, err := s.books.GetByID(ctx, ownerUserID, bookID); err != nil {
		return parsing.SubmissionResult{}, err
	}

	variant := "legacy"
	if s.canary != nil {
		if useV2, err := s.canary.UseV2(ctx, ownerUserID); err == nil && useV2 {
			variant = "v2"
		}
	}

	priority := 1
	if s.priority != nil {
		priority = s.priority(ctx, ownerUserID)
	}

	result, err := s.parser.Submit(ctx, bookID, ownerUserID, priority)
	if err != nil {
		return parsing.SubmissionResult{}, err
	}
	result.PipelineVariant = variant
	return result, nil
}

// GetParsingStatus returns bookID's current parsing status.
func (s *Service) GetParsingStatus(ctx context.Context, ownerUserID, bookID string) (parsing.ParsingStatus, error) {
	if _, err := s.books.GetByID(ctx, ownerUserID, bookID); err != nil {
		return parsing.ParsingStatus{}, err
	}
	return s.parser.GetStatus(ctx, bookID)
}

// # Reading progress

// ProgressInput is the caller-supplied position update.
type ProgressInput struct {
	CurrentChapter      int
	CurrentPagePercent  float64
	LocationFingerprint string
	ScrollOffsetPercent float64
	ReadingTimeMinutes  int
}

const maxFingerprintLen = 500

// UpdateProgress validates and persists userID's reading position on
// bookID, then invalidates the cached progress entry.
func (s *Service) UpdateProgress(ctx context.Context, userID, bookID string, in ProgressInput) (*book.ReadingProgress, error) {
	if _, err := s.books.GetByID(ctx, userID, bookID); err != nil {
		return nil, err
	}

	v := &validate.Validator{}
	v.Range("currentPagePercent", int(in.CurrentPagePercent), 0, 100)
	v.Range("scrollOffsetPercent", int(in.ScrollOffsetPercent), 0, 100)
	v.MaxLen("locationFingerprint", in.LocationFingerprint, maxFingerprintLen)
	if err := v.Err(); err != nil {
		return nil, err
	}

	p := &book.ReadingProgress{
		UserID:              userID,
		BookID:              bookID,
		CurrentChapter:      in.CurrentChapter,
		CurrentPagePercent:  in.CurrentPagePercent,
		LocationFingerprint: in.LocationFingerprint,
		ScrollOffsetPercent: in.ScrollOffsetPercent,
		ReadingTimeMinutes:  in.ReadingTimeMinutes,
		LastReadAt:          time.Now(),
	}
	if err := s.progress.Upsert(ctx, p); err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, cachekey.UserProgress(userID, bookID))
	return p, nil
}

// GetProgress returns userID's cached progress on bookID.
func (s *Service) GetProgress(ctx context.Context, userID, bookID string) (*book.ReadingProgress, error) {
	key := cachekey.UserProgress(userID, bookID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var p book.ReadingProgress
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
	}

	p, err := s.progress.Get(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = s.cache.Set(ctx, key, raw, s.cfg.CacheTTL(config.CacheClassUserProgress))
	}
	return p, nil
}

// # Descriptions & images

// BatchGenerateImages delegates to the pipeline driver for bookID's
// top-priority not-yet-illustrated descriptions.
func (s *Service) BatchGenerateImages(ctx context.Context, ownerUserID, bookID string, topK int) ([]pipeline.BatchResult, error) {
	b, err := s.books.GetByID(ctx, ownerUserID, bookID)
	if err != nil {
		return nil, err
	}
	return s.driver.BatchGenerate(ctx, bookID, ownerUserID, topK, b.Genre, b.Language)
}

// ListDescriptions returns bookID's extracted descriptions, owner-scoped.
// When types is non-empty, only descriptions whose Type is in that set are
// returned.
func (s *Service) ListDescriptions(ctx context.Context, ownerUserID, bookID string, types []book.DescriptionType) ([]book.Description, error) {
	if _, err := s.books.GetByID(ctx, ownerUserID, bookID); err != nil {
		return nil, err
	}
	descriptions, err := s.descriptions.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return descriptions, nil
	}
	wanted := make(map[book.DescriptionType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	return slice.Filter(descriptions, func(d book.Description) bool { return wanted[d.Type] }), nil
}

// # Canary-aware parsing coordinator adapters

// ChapterSource adapts [book.ChapterStore] to [parsing.ChapterSource].
type ChapterSource struct {
	Chapters book.ChapterStore
}

// ChaptersForParsing implements [parsing.ChapterSource].
func (a ChapterSource) ChaptersForParsing(ctx context.Context, bookID string) ([]parsing.ChapterTask, error) {
	chapters, err := a.Chapters.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return slice.Map(chapters, func(c book.Chapter) parsing.ChapterTask {
		return parsing.ChapterTask{ChapterID: c.ID, Number: c.ChapterNumber}
	}), nil
}

// BookStatusReader adapts [book.BookStore] to [parsing.BookStatusReader],
// supplying a persisted fallback status after a process restart wipes the
// coordinator's in-memory map.
type BookStatusReader struct {
	Books book.BookStore
}

// ParsingSnapshot implements [parsing.BookStatusReader].
func (a BookStatusReader) ParsingSnapshot(ctx context.Context, bookID string) (parsing.ParsingStatus, error) {
	b, err := a.Books.GetByIDAnyOwner(ctx, bookID)
	if err != nil {
		return parsing.ParsingStatus{}, err
	}

	switch {
	case b.IsParsed:
		return parsing.ParsingStatus{BookID: bookID, Phase: parsing.PhaseCompleted, Progress: 100}, nil
	case b.ParsingError != nil:
		return parsing.ParsingStatus{BookID: bookID, Phase: parsing.PhaseFailed, Message: pointer.Val(b.ParsingError)}, nil
	default:
		return parsing.ParsingStatus{BookID: bookID, Phase: parsing.PhaseQueued, Progress: b.ParsingProgress}, nil
	}
}

// BookProgressWriter adapts [book.BookStore] to [parsing.BookProgressWriter].
type BookProgressWriter struct {
	Books book.BookStore
}

// UpdateParsingProgress implements [parsing.BookProgressWriter].
func (a BookProgressWriter) UpdateParsingProgress(ctx context.Context, bookID string, progress int) error {
	return a.Books.UpdateParsingProgress(ctx, bookID, progress)
}

// MarkParsed implements [parsing.BookProgressWriter].
func (a BookProgressWriter) MarkParsed(ctx context.Context, bookID string) error {
	return a.Books.MarkParsed(ctx, bookID)
}

// MarkParsingFailed implements [parsing.BookProgressWriter].
func (a BookProgressWriter) MarkParsingFailed(ctx context.Context, bookID, reason string) error {
	return a.Books.MarkParsingFailed(ctx, bookID, reason)
}
