// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ingest turns an uploaded book file into the structured form the
orchestrator persists: a title, author, language, optional cover image,
and an ordered list of chapters.

It supports the two container formats the platform accepts, EPUB and
FB2, dispatching on [DetectFormat]'s sniff of the file extension and
magic bytes rather than trusting the client's declared content type.
EPUB chapter markup is run through [sanitizeHTML], which keeps only a
small allow-list of structural tags so a malicious upload can't smuggle
script or style content into a chapter's rendered HTML; FB2 paragraphs
are HTML-escaped and wrapped in <p> tags.
*/
package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/taibuivan/yomira/internal/core/book"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/pkg/slug"
)

// ParsedChapter is one chapter recovered from an uploaded book, before it
// is assigned a chapter number and persisted.
type ParsedChapter struct {
	Title       string
	Content     string
	HTMLContent string
}

// ParsedBook is the structured result of parsing an uploaded file.
type ParsedBook struct {
	Title      string
	Author     string
	Language   string
	CoverImage []byte
	Chapters   []ParsedChapter
}

// Slug derives a storage-path-safe identifier from the book's title,
// falling back to "untitled" for a title that slugs away to nothing
// (all-punctuation or non-Latin titles the stripper can't transliterate).
func (p *ParsedBook) Slug() string {
	if s := slug.From(p.Title); s != "" {
		return s
	}
	return "untitled"
}

// Parser extracts a [ParsedBook] from raw upload bytes already known to be
// in the given format.
type Parser interface {
	Parse(format book.FileFormat, data []byte) (*ParsedBook, error)
}

// Driver implements [Parser] for every container format the platform
// accepts.
type Driver struct {
	maxBytes int64
}

// NewDriver constructs the ingest driver. maxBytes bounds the accepted
// upload size; uploads over this limit are rejected before any parsing is
// attempted.
func NewDriver(maxBytes int64) *Driver {
	return &Driver{maxBytes: maxBytes}
}

// DetectFormat sniffs filename and the file's leading bytes to decide its
// container format, never trusting a client-supplied content type.
//
// EPUB containers are ZIP archives (magic "PK\x03\x04"); FB2 files are
// plain XML documents starting with an XML declaration or the root
// <FictionBook> element.
func DetectFormat(filename string, data []byte) (book.FileFormat, error) {
	ext := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(ext, ".epub"):
		if !bytes.HasPrefix(data, []byte("PK\x03\x04")) {
			return "", apperr.Corrupted("file does not start with a ZIP signature")
		}
		return book.FormatEPUB, nil
	case strings.HasSuffix(ext, ".fb2"):
		if !looksLikeXML(data) {
			return "", apperr.Corrupted("file does not start with a recognizable XML header")
		}
		return book.FormatFB2, nil
	default:
		return "", apperr.UnsupportedFormat(extOf(filename))
	}
}

// Parse validates size and emptiness, then dispatches to the format's
// dedicated reader.
func (d *Driver) Parse(format book.FileFormat, data []byte) (*ParsedBook, error) {
	if len(data) == 0 {
		return nil, apperr.EmptyFile()
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, apperr.FileTooLarge(d.maxBytes)
	}

	switch format {
	case book.FormatEPUB:
		return parseEPUB(data)
	case book.FormatFB2:
		return parseFB2(data)
	default:
		return nil, apperr.UnsupportedFormat(string(format))
	}
}

func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n﻿")
	return bytes.HasPrefix(trimmed, []byte("<?xml")) || bytes.HasPrefix(trimmed, []byte("<FictionBook"))
}

func extOf(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

// WordCount mirrors the pipeline package's field-splitting word count so a
// chapter's word count is consistent however it was produced.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

func chapterTitle(n int, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("Chapter %d", n)
}
