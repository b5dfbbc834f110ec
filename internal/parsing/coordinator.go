// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package parsing

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// ChapterTask is the minimal chapter reference the coordinator needs to
// drive a parsing run in reading order.
type ChapterTask struct {
	ChapterID string
	Number    int
}

// ChapterSource supplies a book's chapters for parsing.
type ChapterSource interface {
	ChaptersForParsing(ctx context.Context, bookID string) ([]ChapterTask, error)
}

// DescriptionExtractor runs the description pipeline for one chapter and
// reports how many descriptions were found.
type DescriptionExtractor interface {
	EnsureDescriptions(ctx context.Context, chapterID string) (descriptionsFound int, err error)
}

// BookProgressWriter persists parsing progress and terminal state on the
// book row so it survives process restarts.
type BookProgressWriter interface {
	UpdateParsingProgress(ctx context.Context, bookID string, progress int) error
	MarkParsed(ctx context.Context, bookID string) error
	MarkParsingFailed(ctx context.Context, bookID string, reason string) error
}

// BookStatusReader supplies a persisted fallback status when no transient
// in-memory record exists for a book (e.g. after a process restart).
type BookStatusReader interface {
	ParsingSnapshot(ctx context.Context, bookID string) (ParsingStatus, error)
}

// Config tunes the coordinator's admission and lease behavior.
type Config struct {
	MaxConcurrent        int
	LeaseSeconds         time.Duration
	AvgProcessingSeconds int
}

type processingEntry struct {
	userID         string
	startedAt      time.Time
	leaseExpiresAt time.Time
}

// Coordinator is the single-process owner of the parsing queue and the
// distributed lease lock.
type Coordinator struct {
	cfg   Config
	lock  *leaseLock
	log   *slog.Logger

	chapters   ChapterSource
	extractor  DescriptionExtractor
	bookWriter BookProgressWriter
	bookReader BookStatusReader

	mu         sync.Mutex
	queue      priorityQueue
	processing map[string]*processingEntry
	highWater  map[string]int
	statuses   map[string]ParsingStatus

	group singleflight.Group
}

// NewCoordinator constructs a [Coordinator] and starts its reaper goroutine,
// which runs until ctx is cancelled.
func NewCoordinator(
	ctx context.Context,
	cfg Config,
	redisClient *redis.Client,
	chapters ChapterSource,
	extractor DescriptionExtractor,
	bookWriter BookProgressWriter,
	bookReader BookStatusReader,
	log *slog.Logger,
) *Coordinator {
	if cfg.AvgProcessingSeconds <= 0 {
		cfg.AvgProcessingSeconds = 45
	}

	c := &Coordinator{
		cfg:        cfg,
		lock:       newLeaseLock(redisClient),
		log:        log,
		chapters:   chapters,
		extractor:  extractor,
		bookWriter: bookWriter,
		bookReader: bookReader,
		processing: make(map[string]*processingEntry),
		highWater:  make(map[string]int),
		statuses:   make(map[string]ParsingStatus),
	}
	heap.Init(&c.queue)
	c.startReaper(ctx)
	return c
}

// CanStartImmediately reports whether admission capacity is available right
// now, along with a human-readable reason when it is not.
func (c *Coordinator) CanStartImmediately(context.Context) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.processing) >= c.cfg.MaxConcurrent {
		return false, fmt.Sprintf("parser at capacity (%d/%d in progress)", len(c.processing), c.cfg.MaxConcurrent)
	}
	return true, ""
}

// Submit admits bookID into processing immediately if capacity allows and
// the distributed lock is free, otherwise enqueues it at priority.
// Concurrent Submit calls for the same book arriving on this instance before
// either reaches the Redis lock are coalesced into one attempt.
func (c *Coordinator) Submit(ctx context.Context, bookID, userID string, priority int) (SubmissionResult, error) {
	v, err, _ := c.group.Do(bookID, func() (any, error) {
		return c.submitLocked(ctx, bookID, userID, priority)
	})
	if err != nil {
		return SubmissionResult{}, err
	}
	return v.(SubmissionResult), nil
}

func (c *Coordinator) submitLocked(ctx context.Context, bookID, userID string, priority int) (SubmissionResult, error) {
	c.mu.Lock()
	// A book already processing or queued returns its current status rather
	// than an error: submission is idempotent.
	if _, exists := c.processing[bookID]; exists {
		c.mu.Unlock()
		return SubmissionResult{BookID: bookID, Admitted: true}, nil
	}
	for _, entry := range c.queue {
		if entry.BookID == bookID {
			status := c.statuses[bookID]
			c.mu.Unlock()
			return SubmissionResult{
				BookID:               bookID,
				Admitted:             false,
				QueuePosition:        status.QueuePosition,
				EstimatedWaitSeconds: status.QueuePosition * c.cfg.AvgProcessingSeconds,
			}, nil
		}
	}
	hasCapacity := len(c.processing) < c.cfg.MaxConcurrent
	c.mu.Unlock()

	if hasCapacity {
		acquired, err := c.lock.acquire(ctx, bookID, userID, c.cfg.LeaseSeconds)
		if err != nil {
			return SubmissionResult{}, apperr.DBUnavailable(err)
		}
		if acquired {
			c.admit(bookID, userID)
			return SubmissionResult{BookID: bookID, Admitted: true}, nil
		}
	}

	entry := &QueueEntry{BookID: bookID, UserID: userID, Priority: priority, EnqueuedAt: time.Now()}
	c.mu.Lock()
	heap.Push(&c.queue, entry)
	position := len(c.queue)
	c.statuses[bookID] = ParsingStatus{
		BookID: bookID, Phase: PhaseQueued, QueuePosition: position, UpdatedAt: time.Now(),
	}
	c.mu.Unlock()

	return SubmissionResult{
		BookID:               bookID,
		Admitted:             false,
		QueuePosition:        position,
		EstimatedWaitSeconds: position * c.cfg.AvgProcessingSeconds,
	}, nil
}

// admit marks bookID as processing and spawns its execution goroutine. The
// caller must already hold the distributed lock.
func (c *Coordinator) admit(bookID, userID string) {
	c.mu.Lock()
	c.processing[bookID] = &processingEntry{
		userID:         userID,
		startedAt:      time.Now(),
		leaseExpiresAt: time.Now().Add(c.cfg.LeaseSeconds),
	}
	c.statuses[bookID] = ParsingStatus{
		BookID: bookID, Phase: PhaseProcessing, Progress: 0, Message: "Starting book parsing…", UpdatedAt: time.Now(),
	}
	c.mu.Unlock()

	go c.run(bookID, userID)
}

// ProgressUpdate records progress for an in-flight job. progress is clamped
// to [0, 100] and never allowed to regress within one run.
func (c *Coordinator) ProgressUpdate(ctx context.Context, bookID string, progress int, message string, descriptionsFound int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	c.mu.Lock()
	if _, ok := c.processing[bookID]; !ok {
		c.mu.Unlock()
		return apperr.NotFound("ParsingJob")
	}
	if prior, ok := c.highWater[bookID]; ok && progress < prior {
		progress = prior
	}
	c.highWater[bookID] = progress
	c.statuses[bookID] = ParsingStatus{
		BookID:            bookID,
		Phase:             PhaseProcessing,
		Progress:          progress,
		Message:           message,
		DescriptionsFound: descriptionsFound,
		UpdatedAt:         time.Now(),
	}
	c.mu.Unlock()

	return c.bookWriter.UpdateParsingProgress(ctx, bookID, progress)
}

// Complete idempotently transitions bookID to completed, releases its lock,
// and attempts to admit the next queued entry.
func (c *Coordinator) Complete(ctx context.Context, bookID string) error {
	c.mu.Lock()
	if _, ok := c.processing[bookID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.processing, bookID)
	delete(c.highWater, bookID)
	c.statuses[bookID] = ParsingStatus{BookID: bookID, Phase: PhaseCompleted, Progress: 100, UpdatedAt: time.Now()}
	c.mu.Unlock()

	c.releaseLock(ctx, bookID)

	if err := c.bookWriter.MarkParsed(ctx, bookID); err != nil {
		return err
	}
	c.admitNext(ctx)
	return nil
}

// Fail idempotently transitions bookID to failed, releases its lock, and
// attempts to admit the next queued entry.
func (c *Coordinator) Fail(ctx context.Context, bookID, reason string) error {
	c.mu.Lock()
	if _, ok := c.processing[bookID]; !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.processing, bookID)
	delete(c.highWater, bookID)
	c.statuses[bookID] = ParsingStatus{BookID: bookID, Phase: PhaseFailed, Message: reason, UpdatedAt: time.Now()}
	c.mu.Unlock()

	c.releaseLock(ctx, bookID)

	if err := c.bookWriter.MarkParsingFailed(ctx, bookID, reason); err != nil {
		return err
	}
	c.admitNext(ctx)
	return nil
}

func (c *Coordinator) releaseLock(ctx context.Context, bookID string) {
	if err := c.lock.release(ctx, bookID); err != nil {
		c.log.Warn("parsing lock release failed", slog.String("bookId", bookID), slog.String("error", err.Error()))
	}
}

// admitNext pops the highest-priority queued entry and attempts admission.
// If the lock cannot be acquired the entry is pushed back for a later try.
func (c *Coordinator) admitNext(ctx context.Context) {
	c.mu.Lock()
	if len(c.queue) == 0 || len(c.processing) >= c.cfg.MaxConcurrent {
		c.mu.Unlock()
		return
	}
	entry := heap.Pop(&c.queue).(*QueueEntry)
	c.mu.Unlock()

	acquired, err := c.lock.acquire(ctx, entry.BookID, entry.UserID, c.cfg.LeaseSeconds)
	if err != nil || !acquired {
		c.mu.Lock()
		heap.Push(&c.queue, entry)
		c.mu.Unlock()
		return
	}

	c.admit(entry.BookID, entry.UserID)
}

// GetStatus returns the transient status for bookID, falling back to the
// persisted book row when no in-memory record exists.
func (c *Coordinator) GetStatus(ctx context.Context, bookID string) (ParsingStatus, error) {
	c.mu.Lock()
	status, ok := c.statuses[bookID]
	c.mu.Unlock()
	if ok {
		return status, nil
	}
	if c.bookReader != nil {
		return c.bookReader.ParsingSnapshot(ctx, bookID)
	}
	return ParsingStatus{}, apperr.NotFound("ParsingJob")
}

const reaperMinInterval = 5 * time.Second

// startReaper scans in-flight leases for expiry and marks orphaned books
// failed, mirroring the teacher's self-cleaning rate-limit ticker goroutine.
func (c *Coordinator) startReaper(ctx context.Context) {
	interval := c.cfg.LeaseSeconds / 4
	if interval < reaperMinInterval {
		interval = reaperMinInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reapExpiredLeases(context.Background())
			}
		}
	}()
}

func (c *Coordinator) reapExpiredLeases(ctx context.Context) {
	now := time.Now()
	var expired []string

	c.mu.Lock()
	for bookID, entry := range c.processing {
		if now.After(entry.leaseExpiresAt) {
			expired = append(expired, bookID)
		}
	}
	c.mu.Unlock()

	for _, bookID := range expired {
		c.log.Warn("parsing lease expired, marking job failed", slog.String("bookId", bookID))
		if err := c.Fail(ctx, bookID, "lease_expired"); err != nil {
			c.log.Error("failed to mark expired lease as failed", slog.String("bookId", bookID), slog.String("error", err.Error()))
		}
	}
}

// run is the execution body of one admitted parsing job. Chapter failures
// are logged and skipped; the run always reaches Complete or Fail.
func (c *Coordinator) run(bookID, userID string) {
	ctx := context.Background()
	c.log.Info("parsing run started", slog.String("bookId", bookID), slog.String("userId", userID))

	chapters, err := c.chapters.ChaptersForParsing(ctx, bookID)
	if err != nil {
		c.log.Error("parsing run failed to list chapters", slog.String("bookId", bookID), slog.String("error", err.Error()))
		_ = c.Fail(ctx, bookID, "failed to list chapters")
		return
	}

	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })

	total := len(chapters)
	descriptionsFound := 0
	for i, chapter := range chapters {
		count, err := c.extractor.EnsureDescriptions(ctx, chapter.ChapterID)
		if err != nil {
			c.log.Warn("chapter description extraction failed, continuing",
				slog.String("bookId", bookID),
				slog.String("chapterId", chapter.ChapterID),
				slog.String("error", err.Error()),
			)
			continue
		}
		descriptionsFound += count

		progress := 100
		if total > 0 {
			progress = (i + 1) * 100 / total
		}
		if err := c.ProgressUpdate(ctx, bookID, progress, "", descriptionsFound); err != nil {
			c.log.Warn("parsing progress update failed", slog.String("bookId", bookID), slog.String("error", err.Error()))
		}
	}

	if err := c.Complete(ctx, bookID); err != nil {
		c.log.Error("parsing completion failed", slog.String("bookId", bookID), slog.String("error", err.Error()))
	}
}
