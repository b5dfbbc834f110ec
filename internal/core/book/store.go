// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	"context"
	"time"
)

// BookStore persists book rows and the owner-scoped library listing.
type BookStore interface {
	// Create inserts b, assigning its ID if empty.
	Create(ctx context.Context, b *Book) error

	// GetByID returns the book identified by bookID, scoped to ownerUserID.
	// Returns [dberr.ErrNotFound] if the book doesn't exist or belongs to
	// a different owner.
	GetByID(ctx context.Context, ownerUserID, bookID string) (*Book, error)

	// GetByIDAnyOwner returns the book identified by bookID without an
	// ownership check, for internal callers (the parsing coordinator, the
	// description pipeline) that only ever operate on a bookID they were
	// already handed by an owner-checked entry point.
	GetByIDAnyOwner(ctx context.Context, bookID string) (*Book, error)

	// List returns a page of books owned by opts.OwnerUserID, eagerly
	// loaded with chapter count and the caller's own reading progress so
	// the library view never issues a query per row.
	List(ctx context.Context, opts ListOptions) ([]BookWithStats, int, error)

	// Delete removes bookID and every row that depends on it (chapters,
	// descriptions, generated images, reading progress, reading sessions)
	// in a single transaction, scoped to ownerUserID.
	Delete(ctx context.Context, ownerUserID, bookID string) error

	// Touch updates LastAccessedAt to now.
	Touch(ctx context.Context, bookID string) error

	// UpdateParsingProgress sets ParsingProgress for bookID.
	UpdateParsingProgress(ctx context.Context, bookID string, progress int) error

	// MarkParsed sets IsParsed and clears ParsingError.
	MarkParsed(ctx context.Context, bookID string) error

	// MarkParsingFailed records reason in ParsingError and leaves IsParsed
	// false.
	MarkParsingFailed(ctx context.Context, bookID, reason string) error
}

// ChapterStore persists a book's chapters.
type ChapterStore interface {
	// BulkCreate inserts chapters in one statement, used by book ingestion
	// once the source file has been fully parsed into chapters.
	BulkCreate(ctx context.Context, chapters []Chapter) error

	// ListByBook returns every chapter of bookID, ordered by chapter
	// number ascending.
	ListByBook(ctx context.Context, bookID string) ([]Chapter, error)

	// GetByID returns the chapter identified by chapterID.
	GetByID(ctx context.Context, chapterID string) (*Chapter, error)

	// GetByNumber returns bookID's chapter at the given 1-based number.
	GetByNumber(ctx context.Context, bookID string, number int) (*Chapter, error)

	// Count returns the number of chapters belonging to bookID.
	Count(ctx context.Context, bookID string) (int, error)

	// MarkDescriptionParsed records that chapterID's description pass
	// completed, finding descriptionsFound candidates.
	MarkDescriptionParsed(ctx context.Context, chapterID string, descriptionsFound int) error
}

// ProgressStore persists per-user reading bookmarks.
type ProgressStore interface {
	// Upsert inserts or replaces the caller's progress on one book.
	Upsert(ctx context.Context, p *ReadingProgress) error

	// Get returns userID's progress on bookID, or [dberr.ErrNotFound] if
	// the user has never opened the book.
	Get(ctx context.Context, userID, bookID string) (*ReadingProgress, error)

	// ListForUser returns every progress row for userID, keyed by book,
	// used to eager-load the library listing's progress column.
	ListForUser(ctx context.Context, userID string) (map[string]ReadingProgress, error)
}

// DescriptionStore persists extracted descriptions.
type DescriptionStore interface {
	// Create inserts d, assigning its ID if empty.
	Create(ctx context.Context, d *Description) error

	// GetByID returns the description identified by descriptionID.
	GetByID(ctx context.Context, descriptionID string) (*Description, error)

	// ListByChapter returns every description found in chapterID.
	ListByChapter(ctx context.Context, chapterID string) ([]Description, error)

	// ListByBook returns every description found across bookID's chapters.
	ListByBook(ctx context.Context, bookID string) ([]Description, error)

	// TopKUnimaged returns up to k descriptions of bookID ordered by
	// priority score descending, among those with no [GeneratedImage] yet.
	TopKUnimaged(ctx context.Context, bookID string, k int) ([]Description, error)

	// ExistsSimilar reports whether chapterID already has a description
	// whose content begins with the same normalized prefix, used to
	// de-duplicate near-identical extractions across extractor retries.
	ExistsSimilar(ctx context.Context, chapterID, normalizedPrefix string) (bool, error)
}

// ImageStore persists generated illustrations.
type ImageStore interface {
	// Create inserts img, assigning its ID if empty.
	Create(ctx context.Context, img *GeneratedImage) error

	// ListByDescription returns every image generated for descriptionID.
	ListByDescription(ctx context.Context, descriptionID string) ([]GeneratedImage, error)

	// CountForBook returns how many images have been generated across
	// bookID's descriptions, used for admission control in batch generation.
	CountForBook(ctx context.Context, bookID string) (int, error)
}

// SessionStore persists reading-session activity.
type SessionStore interface {
	// StartSession opens a new active session for userID on bookID,
	// closing any prior still-active session on the same book first.
	StartSession(ctx context.Context, s *ReadingSession) error

	// EndActiveSession closes userID's active session on bookID, if any.
	EndActiveSession(ctx context.Context, userID, bookID, endPosition string) error

	// GetActive returns userID's open session on bookID, or nil if none.
	GetActive(ctx context.Context, userID, bookID string) (*ReadingSession, error)

	// SummaryForUser aggregates userID's closed sessions since the given
	// time into a [ReadingSummary].
	SummaryForUser(ctx context.Context, userID string, since time.Time) (ReadingSummary, error)
}
