// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package adapters wraps the external LLM services used to enrich parsed
chapters: a description extractor and an illustration generator. Neither
adapter holds authoritative state — every result they return flows
through the description pipeline into the book persistence layer.

The HTTP clients here talk to a generic JSON completion endpoint (shaped
after the configured Gemini-style model IDs) rather than a vendor SDK,
wrapped in the same retry/timeout discipline the teacher's platform
packages use elsewhere.
*/
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// ExtractedDescription is one vivid passage an extractor call surfaced
// from a chapter's text, before it is persisted as a [book.Description].
type ExtractedDescription struct {
	Type              string
	Content           string
	Context           string
	ConfidenceScore   float64
	PositionInChapter int
}

// ExtractorAdapter extracts candidate illustration descriptions from a
// chapter's raw text.
type ExtractorAdapter interface {
	Extract(ctx context.Context, chapterID, chapterText string) ([]ExtractedDescription, error)
}

// ExtractorConfig configures the HTTP-backed description extractor.
type ExtractorConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	MinConfidence float64
	MaxChunkChars int
	OverlapPct    int
	RetryAttempts uint
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// httpExtractorAdapter implements [ExtractorAdapter] against a generic
// JSON completion endpoint, chunking long chapters and merging results.
type httpExtractorAdapter struct {
	cfg    ExtractorConfig
	client *http.Client
}

// NewExtractorAdapter constructs the LLM-backed description extractor.
func NewExtractorAdapter(cfg ExtractorConfig) ExtractorAdapter {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	return &httpExtractorAdapter{cfg: cfg, client: client}
}

// Extract splits chapterText into overlapping chunks, calls the model
// independently on each, and merges/dedups the results by content prefix.
//
// Each chunk call is wrapped in [retry.Do] with exponential backoff
// bounded by cfg.RetryAttempts, and a per-call [context.WithTimeout].
func (a *httpExtractorAdapter) Extract(ctx context.Context, chapterID, chapterText string) ([]ExtractedDescription, error) {
	chunks := SplitIntoChunks(chapterText, a.cfg.MaxChunkChars, a.cfg.OverlapPct)

	var merged []ExtractedDescription
	seen := make(map[string]struct{})

	for _, chunk := range chunks {
		found, err := a.extractChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if d.ConfidenceScore < a.cfg.MinConfidence {
				continue
			}
			key := dedupKey(d.Content)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, d)
		}
	}
	return merged, nil
}

func (a *httpExtractorAdapter) extractChunk(ctx context.Context, chunk string) ([]ExtractedDescription, error) {
	var result []ExtractedDescription

	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()

			res, err := a.call(callCtx, chunk)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(a.cfg.RetryAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.ExtractorTimeout()
		}
		return nil, apperr.ExtractorRetriesExhausted(err)
	}
	return result, nil
}

type extractorRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type extractorResponse struct {
	Descriptions []struct {
		Type       string  `json:"type"`
		Content    string  `json:"content"`
		Context    string  `json:"context"`
		Confidence float64 `json:"confidence"`
		Position   int     `json:"position"`
	} `json:"descriptions"`
}

func (a *httpExtractorAdapter) call(ctx context.Context, text string) ([]ExtractedDescription, error) {
	body, err := json.Marshal(extractorRequest{Model: a.cfg.Model, Text: text})
	if err != nil {
		return nil, fmt.Errorf("adapters: marshal extractor request: %w", err)
	}

	endpoint := strings.TrimRight(a.cfg.Endpoint, "/") + "/describe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("adapters: build extractor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.ExtractorUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperr.ExtractorUnavailable(fmt.Errorf("extractor returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("adapters: extractor rejected request: %d: %s", resp.StatusCode, raw)
	}

	var parsed extractorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("adapters: decode extractor response: %w", err)
	}

	out := make([]ExtractedDescription, 0, len(parsed.Descriptions))
	for _, d := range parsed.Descriptions {
		out = append(out, ExtractedDescription{
			Type:              d.Type,
			Content:           d.Content,
			Context:           d.Context,
			ConfidenceScore:   d.Confidence,
			PositionInChapter: d.Position,
		})
	}
	return out, nil
}

// dedupKey normalizes content to its first 40 runes, lowercased with
// whitespace collapsed, matching the pipeline's chapter-level dedup rule
// so chunk overlap never produces duplicate descriptions.
func dedupKey(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	joined := strings.Join(fields, " ")
	runes := []rune(joined)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	return string(runes)
}
