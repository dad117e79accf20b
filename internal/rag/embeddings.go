// Package rag implements similarity search over a single page. The page
// text is split into overlapping chunks, each chunk is embedded through
// Ollama, and questions are answered with the chunks nearest to them.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEmbedModel produces 768-dimensional vectors and runs locally.
	DefaultEmbedModel = "nomic-embed-text"

	embedPath    = "/api/embeddings"
	embedTimeout = 30 * time.Second
)

// Embedder turns text into a vector. EmbedClient is the production
// implementation; tests supply their own.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedClient generates vector embeddings via Ollama's API.
type EmbedClient struct {
	model      string
	apiURL     string
	httpClient *http.Client
}

// NewEmbedClient creates an embedding client for the Ollama server at
// endpoint.
func NewEmbedClient(endpoint, model string) *EmbedClient {
	if model == "" {
		model = DefaultEmbedModel
	}
	return &EmbedClient{
		model:      model,
		apiURL:     strings.TrimRight(endpoint, "/") + embedPath,
		httpClient: &http.Client{Timeout: embedTimeout},
	}
}

// Model returns the embedding model name.
func (e *EmbedClient) Model() string {
	return e.model
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed converts a single text string into a vector of floats.
func (e *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach %s for embeddings, is it running? (%w)", e.apiURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API error (status %d): %s\nHint: run 'ollama pull %s' if the model is missing", resp.StatusCode, strings.TrimSpace(string(respBody)), e.model)
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse embed response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned, %s may not support embeddings", e.model)
	}

	return result.Embedding, nil
}
