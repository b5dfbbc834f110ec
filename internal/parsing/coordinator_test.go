// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package parsing_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/parsing"
)

type fakeChapterSource struct {
	chapters map[string][]parsing.ChapterTask
}

func (f *fakeChapterSource) ChaptersForParsing(_ context.Context, bookID string) ([]parsing.ChapterTask, error) {
	return f.chapters[bookID], nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeExtractor) EnsureDescriptions(_ context.Context, _ string) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return 2, nil
}

type fakeBookWriter struct {
	mu       sync.Mutex
	parsed   map[string]bool
	failed   map[string]string
	progress map[string]int
}

func newFakeBookWriter() *fakeBookWriter {
	return &fakeBookWriter{
		parsed:   make(map[string]bool),
		failed:   make(map[string]string),
		progress: make(map[string]int),
	}
}

func (f *fakeBookWriter) UpdateParsingProgress(_ context.Context, bookID string, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[bookID] = progress
	return nil
}

func (f *fakeBookWriter) MarkParsed(_ context.Context, bookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parsed[bookID] = true
	return nil
}

func (f *fakeBookWriter) MarkParsingFailed(_ context.Context, bookID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[bookID] = reason
	return nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return redis.NewClient(&redis.Options{Addr: server.Addr()})
}

func newTestCoordinator(t *testing.T, maxConcurrent int) (*parsing.Coordinator, *fakeBookWriter, *fakeExtractor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	chapters := &fakeChapterSource{chapters: map[string][]parsing.ChapterTask{
		"book-1": {{ChapterID: "ch-2", Number: 2}, {ChapterID: "ch-1", Number: 1}},
	}}
	extractor := &fakeExtractor{}
	writer := newFakeBookWriter()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	coordinator := parsing.NewCoordinator(
		ctx,
		parsing.Config{MaxConcurrent: maxConcurrent, LeaseSeconds: 30 * time.Second, AvgProcessingSeconds: 10},
		newTestRedis(t),
		chapters,
		extractor,
		writer,
		nil,
		log,
	)
	return coordinator, writer, extractor
}

func TestCoordinator_Submit_AdmitsWhenCapacityAvailable(t *testing.T) {
	coordinator, writer, _ := newTestCoordinator(t, 2)

	result, err := coordinator.Submit(context.Background(), "book-1", "user-1", 5)
	require.NoError(t, err)
	assert.True(t, result.Admitted)

	require.Eventually(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()
		return writer.parsed["book-1"]
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCoordinator_Submit_QueuesWhenAtCapacity(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 0)

	result, err := coordinator.Submit(context.Background(), "book-1", "user-1", 5)
	require.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.Equal(t, 1, result.QueuePosition)
}

func TestCoordinator_Submit_DuplicateReturnsCurrentStatus(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 0)

	_, err := coordinator.Submit(context.Background(), "book-1", "user-1", 5)
	require.NoError(t, err)

	result, err := coordinator.Submit(context.Background(), "book-1", "user-1", 5)
	require.NoError(t, err)
	assert.False(t, result.Admitted)
	assert.Equal(t, 1, result.QueuePosition)
}

func TestCoordinator_ProgressUpdate_QueuedBookNotFound(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 0)

	result, err := coordinator.Submit(context.Background(), "book-2", "user-1", 1)
	require.NoError(t, err)
	_ = result

	// Queued jobs are not "processing" yet, so ProgressUpdate against a
	// queued-only book must report NotFound.
	err = coordinator.ProgressUpdate(context.Background(), "book-2", 50, "", 0)
	require.Error(t, err)
}

func TestCoordinator_GetStatus_UnknownBookNotFound(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 1)
	_, err := coordinator.GetStatus(context.Background(), "never-submitted")
	require.Error(t, err)
}

func TestCoordinator_CanStartImmediately_ReflectsCapacity(t *testing.T) {
	coordinator, _, _ := newTestCoordinator(t, 1)
	ok, _ := coordinator.CanStartImmediately(context.Background())
	assert.True(t, ok)
}
