// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package book implements the persistence layer for ingested books, their
chapters, generated descriptions and images, and per-user reading state.

Architecture mirrors the teacher's comic domain package: plain entity
structs with no external dependencies, a repository interface per
aggregate, and a pgx-backed Postgres implementation keyed off the shared
[schema] column constants.
*/
package book

import (
	"time"

	"github.com/taibuivan/yomira/internal/platform/cachekey"
)

// Sort is the accepted library listing sort order. Re-exported from
// [cachekey] so the cache key a list query writes under always matches the
// query shape it was built from.
type Sort = cachekey.Sort

// Recognized listing sort orders.
const (
	SortCreatedDesc  = cachekey.SortCreatedDesc
	SortCreatedAsc   = cachekey.SortCreatedAsc
	SortTitleAsc     = cachekey.SortTitleAsc
	SortTitleDesc    = cachekey.SortTitleDesc
	SortAuthorAsc    = cachekey.SortAuthorAsc
	SortAuthorDesc   = cachekey.SortAuthorDesc
	SortAccessedDesc = cachekey.SortAccessedDesc
)

// Genre is the closed set of literary genres a book may be tagged with.
// The same set doubles as the image-prompt style-modifier key in the
// description pipeline.
type Genre string

// Recognized genres.
const (
	GenreFantasy    Genre = "fantasy"
	GenreDetective  Genre = "detective"
	GenreRomance    Genre = "romance"
	GenreSciFi      Genre = "sci-fi"
	GenreHorror     Genre = "horror"
	GenreHistorical Genre = "historical"
	GenreAdventure  Genre = "adventure"
	GenreGeneral    Genre = "general"
)

// FileFormat is the accepted set of upload container formats.
type FileFormat string

// Recognized upload formats.
const (
	FormatEPUB FileFormat = "epub"
	FormatFB2  FileFormat = "fb2"
)

// Book is one ingested work, owned by exactly one user account.
type Book struct {
	ID                   string         `json:"id"`
	OwnerUserID          string         `json:"ownerUserId"`
	Title                string         `json:"title"`
	Author               string         `json:"author"`
	Genre                Genre          `json:"genre"`
	Language             string         `json:"language"`
	FileFormat           FileFormat     `json:"fileFormat"`
	FilePath             string         `json:"filePath"`
	FileSize             int64          `json:"fileSize"`
	CoverPath            *string        `json:"coverPath,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	TotalPages           int            `json:"totalPages"`
	EstimatedReadMinutes int            `json:"estimatedReadMinutes"`
	IsParsed             bool           `json:"isParsed"`
	ParsingProgress      int            `json:"parsingProgress"`
	ParsingError         *string        `json:"parsingError,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
	LastAccessedAt       *time.Time     `json:"lastAccessedAt,omitempty"`
}

// Chapter is one numbered section of a book's text.
type Chapter struct {
	ID                  string `json:"id"`
	BookID              string `json:"bookId"`
	ChapterNumber       int    `json:"chapterNumber"`
	Title               string `json:"title"`
	Content             string `json:"content,omitempty"`
	HTMLContent         string `json:"htmlContent,omitempty"`
	WordCount           int    `json:"wordCount"`
	IsDescriptionParsed bool   `json:"isDescriptionParsed"`
	DescriptionsFound   int    `json:"descriptionsFound"`
}

// ReadingProgress is one user's bookmark within one book.
//
// LocationFingerprint, when non-empty, is the authoritative position
// (a reflow-resistant anchor into the rendered text); CurrentChapter and
// CurrentPagePercent are always kept as a legacy fallback for clients that
// predate fingerprint support, or for a book with no fingerprint yet.
type ReadingProgress struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"userId"`
	BookID              string    `json:"bookId"`
	CurrentChapter      int       `json:"currentChapter"`
	CurrentPagePercent  float64   `json:"currentPagePercent"`
	LocationFingerprint string    `json:"locationFingerprint,omitempty"`
	ScrollOffsetPercent float64   `json:"scrollOffsetPercent"`
	ReadingTimeMinutes  int       `json:"readingTimeMinutes"`
	LastReadAt          time.Time `json:"lastReadAt"`
}

// DescriptionType classifies what kind of passage a [Description] anchors.
type DescriptionType string

// Recognized description types.
const (
	DescriptionLocation   DescriptionType = "location"
	DescriptionCharacter  DescriptionType = "character"
	DescriptionAtmosphere DescriptionType = "atmosphere"
)

// Description is a vivid passage extracted from a chapter, a candidate for
// illustration.
type Description struct {
	ID                string          `json:"id"`
	BookID            string          `json:"bookId"`
	ChapterID         string          `json:"chapterId"`
	Type              DescriptionType `json:"type"`
	Content           string          `json:"content"`
	Context           string          `json:"context,omitempty"`
	ConfidenceScore   float64         `json:"confidenceScore"`
	PriorityScore     int             `json:"priorityScore"`
	PositionInChapter int             `json:"positionInChapter"`
	WordCount         int             `json:"wordCount"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// GeneratedImage is one rendered illustration of a [Description].
type GeneratedImage struct {
	ID                string    `json:"id"`
	DescriptionID     string    `json:"descriptionId"`
	UserID            string    `json:"userId"`
	ImageRef          string    `json:"imageRef"`
	LocalPath         *string   `json:"localPath,omitempty"`
	Prompt            string    `json:"prompt"`
	GenerationSeconds float64   `json:"generationSeconds"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ReadingSession tracks one contiguous stretch of reading activity, used to
// derive reading-streak and daily-goal statistics.
type ReadingSession struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	BookID          string     `json:"bookId"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	StartPosition   string     `json:"startPosition,omitempty"`
	EndPosition     string     `json:"endPosition,omitempty"`
	IsActive        bool       `json:"isActive"`
}

// BookWithStats is a [Book] enriched with the aggregate fields a library
// listing needs, fetched in the same query to avoid an N+1 round trip per
// row.
type BookWithStats struct {
	Book
	ChapterCount  int      `json:"chapterCount"`
	ProgressPct   *float64 `json:"progressPercent,omitempty"`
	HasBeenOpened bool     `json:"hasBeenOpened"`
}

// ListOptions narrows and orders a library listing query.
type ListOptions struct {
	OwnerUserID string
	Skip        int
	Limit       int
	Sort        Sort
}

// ReadingSummary aggregates a user's reading-session activity over a
// window, backing the supplemented reading-goals feature.
type ReadingSummary struct {
	UserID            string  `json:"userId"`
	TotalMinutes      int     `json:"totalMinutes"`
	SessionCount      int     `json:"sessionCount"`
	ActiveDaysInRange int     `json:"activeDaysInRange"`
	AverageMinutesDay float64 `json:"averageMinutesPerDay"`
}
