// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config

import "time"

// CacheClass identifies a family of cached entries that share a TTL policy.
type CacheClass string

// Recognized cache classes, one per cachekey namespace.
const (
	CacheClassBookMetadata    CacheClass = "book_metadata"
	CacheClassBookChapters    CacheClass = "book_chapters"
	CacheClassBookList        CacheClass = "book_list"
	CacheClassChapterContent  CacheClass = "chapter_content"
	CacheClassUserProgress    CacheClass = "user_progress"
	CacheClassBookDescription CacheClass = "book_descriptions"
	CacheClassBookTOC         CacheClass = "book_toc"
)

// cacheTTLByClass mirrors the original service's CACHE_TTL table. book_list
// is kept short because the library listing changes on every ingestion.
var cacheTTLByClass = map[CacheClass]time.Duration{
	CacheClassBookMetadata:    1 * time.Hour,
	CacheClassBookChapters:    1 * time.Hour,
	CacheClassBookList:        10 * time.Second,
	CacheClassChapterContent:  1 * time.Hour,
	CacheClassUserProgress:    5 * time.Minute,
	CacheClassBookDescription: 1 * time.Hour,
	CacheClassBookTOC:         1 * time.Hour,
}

// CacheTTL returns the configured TTL for class, falling back to
// [Config.CacheDefaultTTL] for any class not in the table.
func (c *Config) CacheTTL(class CacheClass) time.Duration {
	if ttl, ok := cacheTTLByClass[class]; ok {
		return ttl
	}
	return c.CacheDefaultTTL
}
