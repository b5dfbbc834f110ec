// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPExtractorAdapter_ExtractMergesAndDedups(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := extractorResponse{}
		resp.Descriptions = append(resp.Descriptions, struct {
			Type       string  `json:"type"`
			Content    string  `json:"content"`
			Context    string  `json:"context"`
			Confidence float64 `json:"confidence"`
			Position   int     `json:"position"`
		}{Type: "location", Content: "A misty mountain pass at dawn", Confidence: 0.9, Position: 1})
		resp.Descriptions = append(resp.Descriptions, struct {
			Type       string  `json:"type"`
			Content    string  `json:"content"`
			Context    string  `json:"context"`
			Confidence float64 `json:"confidence"`
			Position   int     `json:"position"`
		}{Type: "location", Content: "a misty  MOUNTAIN pass at dawn", Confidence: 0.8, Position: 2})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := NewExtractorAdapter(ExtractorConfig{
		Endpoint:      server.URL,
		Model:         "gemini-2.0-flash",
		MinConfidence: 0.5,
		MaxChunkChars: 8000,
		OverlapPct:    10,
		RetryAttempts: 2,
		Timeout:       2 * time.Second,
	})

	out, err := adapter.Extract(context.Background(), "chapter-1", "a short chapter body")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "location", out[0].Type)
}

func TestHTTPExtractorAdapter_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewExtractorAdapter(ExtractorConfig{
		Endpoint:      server.URL,
		Model:         "gemini-2.0-flash",
		MinConfidence: 0.5,
		MaxChunkChars: 8000,
		OverlapPct:    10,
		RetryAttempts: 3,
		Timeout:       2 * time.Second,
	})

	_, err := adapter.Extract(context.Background(), "chapter-1", "body")
	require.Error(t, err)
	require.EqualValues(t, 3, calls.Load())
}

func TestHTTPExtractorAdapter_FiltersLowConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := extractorResponse{}
		resp.Descriptions = append(resp.Descriptions, struct {
			Type       string  `json:"type"`
			Content    string  `json:"content"`
			Context    string  `json:"context"`
			Confidence float64 `json:"confidence"`
			Position   int     `json:"position"`
		}{Type: "character", Content: "a barely-confident guess", Confidence: 0.1, Position: 1})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := NewExtractorAdapter(ExtractorConfig{
		Endpoint:      server.URL,
		MinConfidence: 0.5,
		MaxChunkChars: 8000,
		RetryAttempts: 1,
		Timeout:       2 * time.Second,
	})

	out, err := adapter.Extract(context.Background(), "chapter-1", "body")
	require.NoError(t, err)
	require.Empty(t, out)
}
