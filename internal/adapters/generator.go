// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// ImageResult is the raw output of one image-generation call.
type ImageResult struct {
	ImageBytes  []byte
	ContentType string
	Width       int
	Height      int
}

// ImageAdapter renders a prompt into an illustration.
type ImageAdapter interface {
	Generate(ctx context.Context, prompt, aspectRatio string) (ImageResult, error)
}

// GeneratorConfig configures the HTTP-backed image generator.
type GeneratorConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	SafetyLevel   string
	RetryAttempts uint
	Timeout       time.Duration
	HTTPClient    *http.Client
}

type httpGeneratorAdapter struct {
	cfg    GeneratorConfig
	client *http.Client
}

// NewGeneratorAdapter constructs the image-generation adapter.
func NewGeneratorAdapter(cfg GeneratorConfig) ImageAdapter {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	return &httpGeneratorAdapter{cfg: cfg, client: client}
}

type generatorRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspectRatio"`
	SafetyLevel string `json:"safetyLevel"`
}

type generatorResponse struct {
	ImageBase64 string `json:"imageBase64"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Generate calls the image model and decodes its inline base64 payload.
// The call is retried with exponential backoff up to cfg.RetryAttempts
// times before surfacing [apperr.GeneratorRetriesExhausted].
func (a *httpGeneratorAdapter) Generate(ctx context.Context, prompt, aspectRatio string) (ImageResult, error) {
	var result ImageResult

	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()

			res, err := a.call(callCtx, prompt, aspectRatio)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(a.cfg.RetryAttempts),
		retry.Delay(1*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ImageResult{}, apperr.GeneratorTimeout()
		}
		return ImageResult{}, apperr.GeneratorRetriesExhausted(err)
	}
	return result, nil
}

func (a *httpGeneratorAdapter) call(ctx context.Context, prompt, aspectRatio string) (ImageResult, error) {
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}

	body, err := json.Marshal(generatorRequest{
		Model:       a.cfg.Model,
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		SafetyLevel: a.cfg.SafetyLevel,
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("adapters: marshal generator request: %w", err)
	}

	endpoint := strings.TrimRight(a.cfg.Endpoint, "/") + "/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ImageResult{}, fmt.Errorf("adapters: build generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return ImageResult{}, apperr.GeneratorUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ImageResult{}, apperr.GeneratorUnavailable(fmt.Errorf("generator returned status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return ImageResult{}, fmt.Errorf("adapters: generator rejected request: %d: %s", resp.StatusCode, raw)
	}

	var parsed generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ImageResult{}, fmt.Errorf("adapters: decode generator response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.ImageBase64)
	if err != nil {
		return ImageResult{}, fmt.Errorf("adapters: decode generator image payload: %w", err)
	}

	return ImageResult{
		ImageBytes:  raw,
		ContentType: parsed.ContentType,
		Width:       parsed.Width,
		Height:      parsed.Height,
	}, nil
}
