// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cachekey centralizes the construction of Redis key strings used by
the cache layer.

Every cached value in Yomira is addressed through one of the constructors
here rather than through ad-hoc fmt.Sprintf calls scattered across the
service layer. This keeps the key namespace auditable in one place and
keeps invalidation patterns (DeletePattern globs) in sync with the keys
that were actually written.

Namespace convention: "yomira:<domain>:<id>[:<sub>]".
*/
package cachekey

import "fmt"

// Sort is the accepted set of library listing sort orders, mirrored here
// so BookList produces a stable key per distinct query shape.
type Sort string

// Recognized listing sort orders.
const (
	SortCreatedDesc  Sort = "created_desc"
	SortCreatedAsc   Sort = "created_asc"
	SortTitleAsc     Sort = "title_asc"
	SortTitleDesc    Sort = "title_desc"
	SortAuthorAsc    Sort = "author_asc"
	SortAuthorDesc   Sort = "author_desc"
	SortAccessedDesc Sort = "accessed_desc"
)

// # Namespace Roots

const (
	nsBook        = "yomira:book"
	nsBookList    = "yomira:booklist"
	nsProgress    = "yomira:progress"
	nsChapters    = "yomira:chapters"
	nsDescription = "yomira:descriptions"
	nsTOC         = "yomira:toc"
	nsChapter     = "yomira:chapter"
	nsFlag        = "yomira:flag"
)

// BookMetadata returns the key for a single book's metadata document.
func BookMetadata(bookID string) string {
	return fmt.Sprintf("%s:%s", nsBook, bookID)
}

// BookMetadataPattern returns the glob matching every book metadata key,
// used when no single bookID is known (e.g. bulk eviction tests).
func BookMetadataPattern() string {
	return nsBook + ":*"
}

// BookList returns the key for a page of the library listing, keyed by the
// requesting user, pagination window, and sort order so distinct queries
// never collide on the same cache entry.
func BookList(userID string, skip, limit int, sort Sort) string {
	return fmt.Sprintf("%s:%s:%d:%d:%s", nsBookList, userID, skip, limit, sort)
}

// BookListPattern returns the glob matching every cached listing page.
// Used to invalidate the whole listing cache whenever the book set changes.
func BookListPattern() string {
	return nsBookList + ":*"
}

// UserProgress returns the key for a user's reading progress on a book.
func UserProgress(userID, bookID string) string {
	return fmt.Sprintf("%s:%s:%s", nsProgress, userID, bookID)
}

// UserProgressPattern returns the glob matching every progress record for
// a single user, used when one of that user's books is deleted.
func UserProgressPattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", nsProgress, userID)
}

// BookChapters returns the key for a book's ordered chapter list.
func BookChapters(bookID string) string {
	return fmt.Sprintf("%s:%s", nsChapters, bookID)
}

// BookDescriptions returns the key for a book's generated chapter
// descriptions, keyed by pipeline variant so a v1/v2 rollout never serves
// a stale cross-variant hit.
func BookDescriptions(bookID, variant string) string {
	return fmt.Sprintf("%s:%s:%s", nsDescription, bookID, variant)
}

// BookDescriptionsPattern returns the glob matching every cached variant of
// a book's descriptions, used on re-generation.
func BookDescriptionsPattern(bookID string) string {
	return fmt.Sprintf("%s:%s:*", nsDescription, bookID)
}

// BookTOC returns the key for a book's table of contents.
func BookTOC(bookID string) string {
	return fmt.Sprintf("%s:%s", nsTOC, bookID)
}

// ChapterContent returns the key for a single chapter's rendered content.
func ChapterContent(bookID string, chapterNumber int) string {
	return fmt.Sprintf("%s:%s:%d", nsChapter, bookID, chapterNumber)
}

// ChapterContentPattern returns the glob matching every cached chapter of a
// book, used when the book is re-parsed or deleted.
func ChapterContentPattern(bookID string) string {
	return fmt.Sprintf("%s:%s:*", nsChapter, bookID)
}

// FeatureFlag returns the key for a single feature flag's mirrored value.
func FeatureFlag(name string) string {
	return fmt.Sprintf("%s:%s", nsFlag, name)
}

// FeatureFlagPattern returns the glob matching every mirrored flag, used to
// force a full reload after a bulk flag update.
func FeatureFlagPattern() string {
	return nsFlag + ":*"
}
