// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pipeline drives the description-extraction and illustration-
generation workflow for one parsed chapter or book. It sits between the
parsing coordinator (which decides *when* a chapter runs) and the
adapters package (which talks to the external LLM services), persisting
every result through the book package's stores.

Composition mirrors the teacher's service layer: a struct holding
repository and adapter interfaces, with no HTTP or queue concerns of its
own.
*/
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/yomira/internal/adapters"
	"github.com/taibuivan/yomira/internal/core/book"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// maxPromptChars bounds the final prompt sent to the image generator,
// regardless of how verbose the underlying description/context ended up.
const maxPromptChars = 1800

// promptTemplates maps each description type to its base illustration
// prompt shape.
var promptTemplates = map[book.DescriptionType]string{
	book.DescriptionLocation:   "A detailed illustration of the setting: %s",
	book.DescriptionCharacter:  "A detailed character portrait: %s",
	book.DescriptionAtmosphere: "A mood illustration capturing the atmosphere: %s",
}

// genreStyleModifiers is the closed set of per-genre style suffixes
// appended to every prompt, matching [book.Genre]'s recognized values.
var genreStyleModifiers = map[book.Genre]string{
	book.GenreFantasy:    "painterly fantasy art style, dramatic lighting",
	book.GenreDetective:  "noir ink illustration, high contrast shadows",
	book.GenreRomance:    "soft pastel watercolor style, warm tones",
	book.GenreSciFi:      "sleek digital concept art, cool neon lighting",
	book.GenreHorror:     "desaturated gothic illustration, unsettling mood",
	book.GenreHistorical: "period-accurate oil painting style",
	book.GenreAdventure:  "vivid adventure concept art, dynamic composition",
	book.GenreGeneral:    "clean digital illustration",
}

// BatchResult is one description's outcome within a [Driver.BatchGenerate]
// fan-out; Image and Err are mutually exclusive.
type BatchResult struct {
	DescriptionID string
	Image         *book.GeneratedImage
	Err           error
}

// Driver implements the chapter description pipeline and the
// illustration-generation pipeline on top of the book persistence layer
// and the external-service adapters.
type Driver struct {
	chapters     book.ChapterStore
	descriptions book.DescriptionStore
	images       book.ImageStore
	books        book.BookStore

	extractor  adapters.ExtractorAdapter
	generator  adapters.ImageAdapter
	translator adapters.Translator

	imagenMaxConcurrent int
	imagenAspectRatio   string

	log *slog.Logger

	// dedupMu serializes the read-then-write dedup check in EnsureDescriptions
	// against concurrent retries for the same chapter.
	dedupMu sync.Mutex
}

// Config tunes the pipeline driver.
type Config struct {
	ImagenMaxConcurrent int
	ImagenAspectRatio   string
}

// NewDriver constructs the pipeline driver.
func NewDriver(
	chapters book.ChapterStore,
	descriptions book.DescriptionStore,
	images book.ImageStore,
	books book.BookStore,
	extractor adapters.ExtractorAdapter,
	generator adapters.ImageAdapter,
	cfg Config,
	log *slog.Logger,
) *Driver {
	if cfg.ImagenMaxConcurrent <= 0 {
		cfg.ImagenMaxConcurrent = 4
	}
	return &Driver{
		chapters:            chapters,
		descriptions:        descriptions,
		images:              images,
		books:               books,
		extractor:           extractor,
		generator:           generator,
		imagenMaxConcurrent: cfg.ImagenMaxConcurrent,
		imagenAspectRatio:   cfg.ImagenAspectRatio,
		log:                 log,
	}
}

// WithTranslator attaches a [adapters.Translator] that a non-English
// description is passed through before it is turned into an image prompt,
// and returns the driver for chaining. The prompt uses whatever text the
// translator returns.
func (d *Driver) WithTranslator(translator adapters.Translator) *Driver {
	if translator != nil {
		d.translator = translator
	}
	return d
}

// EnsureDescriptions implements [parsing.DescriptionExtractor]. It
// short-circuits chapters already parsed, otherwise extracts candidate
// descriptions, dedups them against what the chapter already has, persists
// the new ones, and marks the chapter parsed.
func (d *Driver) EnsureDescriptions(ctx context.Context, chapterID string) (int, error) {
	chapter, err := d.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return 0, err
	}

	d.dedupMu.Lock()
	defer d.dedupMu.Unlock()

	if chapter.IsDescriptionParsed {
		existing, err := d.descriptions.ListByChapter(ctx, chapterID)
		if err != nil {
			return 0, err
		}
		if len(existing) > 0 {
			return len(existing), nil
		}
	}

	extracted, err := d.extractor.Extract(ctx, chapterID, chapter.Content)
	if err != nil {
		return 0, err
	}

	found := 0
	for _, e := range extracted {
		prefix := normalizedPrefix(e.Content)
		exists, err := d.descriptions.ExistsSimilar(ctx, chapterID, prefix)
		if err != nil {
			return found, err
		}
		if exists {
			continue
		}

		desc := &book.Description{
			BookID:            chapter.BookID,
			ChapterID:         chapterID,
			Type:              book.DescriptionType(e.Type),
			Content:           e.Content,
			Context:           e.Context,
			ConfidenceScore:   e.ConfidenceScore,
			PriorityScore:     priorityScore(e.ConfidenceScore, len(e.Content)),
			PositionInChapter: e.PositionInChapter,
			WordCount:         len(strings.Fields(e.Content)),
		}
		if err := d.descriptions.Create(ctx, desc); err != nil {
			return found, err
		}
		found++
	}

	if err := d.chapters.MarkDescriptionParsed(ctx, chapterID, found); err != nil {
		return found, err
	}
	return found, nil
}

// GenerateImage looks up descriptionID, builds a prompt from its type and
// genre, calls the image adapter, and persists the resulting
// [book.GeneratedImage]. sourceLanguage is the book's original language;
// for a non-English value the description is passed through the attached
// translator, if any, before prompting.
func (d *Driver) GenerateImage(ctx context.Context, descriptionID, userID string, genre book.Genre, sourceLanguage string) (*book.GeneratedImage, error) {
	desc, err := d.descriptions.GetByID(ctx, descriptionID)
	if err != nil {
		return nil, err
	}
	return d.generateImageFor(ctx, *desc, userID, genre, sourceLanguage)
}

// generateImageFor builds a prompt for desc and calls the image adapter,
// persisting the resulting [book.GeneratedImage]. Exposed at description
// granularity so [Driver.BatchGenerate] can reuse it without refetching
// rows it already has in hand.
func (d *Driver) generateImageFor(ctx context.Context, desc book.Description, userID string, genre book.Genre, sourceLanguage string) (*book.GeneratedImage, error) {
	if d.translator != nil && sourceLanguage != "" && sourceLanguage != "en" {
		if translated, err := d.translator.Translate(ctx, desc.Content, sourceLanguage); err == nil {
			desc.Content = translated
		} else {
			d.log.Warn("description translation failed, using original text",
				slog.String("descriptionId", desc.ID), slog.String("error", err.Error()))
		}
	}

	prompt := buildPrompt(desc, genre)

	result, err := d.generator.Generate(ctx, prompt, d.imagenAspectRatio)
	if err != nil {
		return nil, err
	}

	img := &book.GeneratedImage{
		ID:            uuidv7.New(),
		DescriptionID: desc.ID,
		UserID:        userID,
		ImageRef:      fmt.Sprintf("inline:%s", img8(desc.ID)),
		Prompt:        prompt,
		Width:         result.Width,
		Height:        result.Height,
	}
	if err := d.images.Create(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// BatchGenerate selects up to topK not-yet-imaged descriptions of bookID
// ordered by priority, and fans out image generation bounded by
// imagenMaxConcurrent. Each description's outcome is independent: one
// failure never aborts the others.
func (d *Driver) BatchGenerate(ctx context.Context, bookID, userID string, topK int, genre book.Genre, sourceLanguage string) ([]BatchResult, error) {
	candidates, err := d.descriptions.TopKUnimaged(ctx, bookID, topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]BatchResult, len(candidates))
	sem := make(chan struct{}, d.imagenMaxConcurrent)

	group, groupCtx := errgroup.WithContext(ctx)
	for i, desc := range candidates {
		i, desc := i, desc
		group.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			img, err := d.generateImageFor(groupCtx, desc, userID, genre, sourceLanguage)
			results[i] = BatchResult{DescriptionID: desc.ID, Image: img, Err: err}
			// Per-description failures never abort the batch.
			return nil
		})
	}
	_ = group.Wait()

	return results, nil
}

func buildPrompt(desc book.Description, genre book.Genre) string {
	template, ok := promptTemplates[desc.Type]
	if !ok {
		template = "An illustration depicting: %s"
	}
	body := desc.Content
	if desc.Context != "" {
		body = body + " (" + desc.Context + ")"
	}
	prompt := fmt.Sprintf(template, body)

	if modifier, ok := genreStyleModifiers[genre]; ok {
		prompt = prompt + ", " + modifier
	}

	if len(prompt) > maxPromptChars {
		prompt = prompt[:maxPromptChars]
	}
	return prompt
}

// normalizedPrefix lowercases and collapses whitespace in content, then
// takes its first 40 runes, matching the extractor adapter's own
// de-duplication key so persisted descriptions and in-flight extraction
// results never diverge on what counts as "the same" passage.
func normalizedPrefix(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	joined := strings.Join(fields, " ")
	runes := []rune(joined)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}

// priorityScore ranks a description for batch image-generation ordering:
// higher confidence and longer passages surface first.
func priorityScore(confidence float64, contentLen int) int {
	score := int(confidence*100) + contentLen/10
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func img8(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
