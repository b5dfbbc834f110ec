// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package adapters

import "strings"

// SplitIntoChunks splits text on paragraph boundaries ("\n\n") into chunks
// of about maxChars. Each chunk after the first starts with the last
// overlapPct percent of maxChars characters of the previous chunk, so a
// description straddling a chunk boundary appears in both chunks.
//
// Only paragraph boundaries are used: a paragraph longer than maxChars is
// kept whole in one chunk, and a chunk can exceed maxChars by the carried
// overlap.
//
// A zero or negative maxChars disables chunking and returns text whole.
func SplitIntoChunks(text string, maxChars, overlapPct int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	overlapChars := maxChars * overlapPct / 100

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, current.String())
		current.Reset()
	}

	for _, p := range paragraphs {
		if current.Len()+len(p)+2 > maxChars && current.Len() > 0 {
			finished := current.String()
			flush()
			if overlapChars > 0 && len(finished) > overlapChars {
				current.WriteString(finished[len(finished)-overlapChars:])
				current.WriteString("\n\n")
			}
		}
		current.WriteString(p)
		current.WriteString("\n\n")
	}
	flush()

	return chunks
}
