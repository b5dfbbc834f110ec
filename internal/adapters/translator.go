// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// Translator translates extracted text into the reader's preferred
// language before it is used to build an illustration prompt.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string) (string, error)
}

// translatorMemoLimit bounds the in-process memoization cache. Once
// exceeded, the whole cache is cleared — a counting eviction simple
// enough that a single extra round trip after a clear is an acceptable
// cost against the complexity of a true LRU.
const translatorMemoLimit = 4096

type memoEntry struct {
	value string
}

// httpTranslator applies the same retry discipline as the other adapters
// around its call step, memoizing repeat calls. Its call step makes no
// network request and returns the text unchanged.
type httpTranslator struct {
	cfg    ExtractorConfig // reuses the LLM endpoint/model configuration shape
	client *http.Client
	cache  sync.Map // string(hash) -> memoEntry
	size   atomic.Int64
}

// NewTranslator constructs the translation adapter.
func NewTranslator(cfg ExtractorConfig) Translator {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	return &httpTranslator{cfg: cfg, client: client}
}

// Translate returns the result of call for text and sourceLang, using a
// process-local memo keyed by content hash so repeated prompts (common
// across chapters sharing stock phrases) skip the call. Because call is a
// passthrough, the returned text is the input text, untranslated.
func (t *httpTranslator) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	key := memoKey(sourceLang, text)
	if cached, ok := t.cache.Load(key); ok {
		return cached.(memoEntry).value, nil
	}

	var translated string
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
			defer cancel()
			out, err := t.call(callCtx, text, sourceLang)
			if err != nil {
				return err
			}
			translated = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(t.cfg.RetryAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperr.ExtractorTimeout()
		}
		return "", apperr.ExtractorRetriesExhausted(err)
	}

	if t.size.Load() >= translatorMemoLimit {
		t.cache = sync.Map{}
		t.size.Store(0)
	}
	t.cache.Store(key, memoEntry{value: translated})
	t.size.Add(1)

	return translated, nil
}

// call returns text unchanged, or ctx's error if ctx is already done. It
// sends no request to the configured endpoint.
func (t *httpTranslator) call(ctx context.Context, text, sourceLang string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return text, nil
}

func memoKey(sourceLang, text string) string {
	sum := sha256.Sum256([]byte(sourceLang + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
