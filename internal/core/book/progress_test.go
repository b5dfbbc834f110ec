// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/yomira/internal/core/book"
)

func TestComputeProgressPercent(t *testing.T) {
	cases := []struct {
		name         string
		progress     book.ReadingProgress
		chapterCount int
		want         float64
	}{
		{
			name:         "zero chapter book always reports zero",
			progress:     book.ReadingProgress{CurrentChapter: 1, CurrentPagePercent: 50},
			chapterCount: 0,
			want:         0,
		},
		{
			name:         "chapter beyond count reports complete",
			progress:     book.ReadingProgress{CurrentChapter: 99},
			chapterCount: 10,
			want:         100,
		},
		{
			name:         "first chapter halfway",
			progress:     book.ReadingProgress{CurrentChapter: 1, CurrentPagePercent: 50},
			chapterCount: 10,
			want:         5,
		},
		{
			name:         "midway through book",
			progress:     book.ReadingProgress{CurrentChapter: 6, CurrentPagePercent: 0},
			chapterCount: 10,
			want:         50,
		},
		{
			name:         "fingerprint mode is authoritative",
			progress:     book.ReadingProgress{LocationFingerprint: "cfi:/6/4", CurrentPagePercent: 73.5, CurrentChapter: 1},
			chapterCount: 10,
			want:         73.5,
		},
		{
			name:         "fingerprint percent clamps to 100",
			progress:     book.ReadingProgress{LocationFingerprint: "cfi:/6/4", CurrentPagePercent: 140},
			chapterCount: 10,
			want:         100,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := book.ComputeProgressPercent(tc.progress, tc.chapterCount)
			assert.InDelta(t, tc.want, got, 0.0001)
		})
	}
}
