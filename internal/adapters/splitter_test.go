// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package adapters

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitIntoChunks_ShortTextReturnedWhole(t *testing.T) {
	text := "a short chapter"
	chunks := SplitIntoChunks(text, 8000, 10)
	require.Equal(t, []string{text}, chunks)
}

func TestSplitIntoChunks_EmptyTextReturnsNil(t *testing.T) {
	require.Nil(t, SplitIntoChunks("", 100, 10))
	require.Nil(t, SplitIntoChunks("   ", 100, 10))
}

func TestSplitIntoChunks_RespectsMaxChars(t *testing.T) {
	paragraph := strings.Repeat("word ", 20) // ~100 chars
	text := strings.Join([]string{paragraph, paragraph, paragraph, paragraph}, "\n\n")

	chunks := SplitIntoChunks(text, 150, 10)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 150+30) // allows for the overlap carried forward
	}
}

func TestSplitIntoChunks_OverlapsBetweenChunks(t *testing.T) {
	paragraph := strings.Repeat("word ", 30)
	text := strings.Join([]string{paragraph, paragraph, paragraph}, "\n\n")

	chunks := SplitIntoChunks(text, 120, 25)
	require.GreaterOrEqual(t, len(chunks), 2)

	tail := strings.TrimSpace(chunks[0])
	start := len(tail) - 10
	if start < 0 {
		start = 0
	}
	tail = tail[start:]
	require.Contains(t, chunks[1], tail)
}
