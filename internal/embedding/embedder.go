// Package embedding converts newly stored news text into fixed-length vectors
// and keeps the vector index consistent with the relational store.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Embedder turns a batch of texts into fixed-length vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint (the
// sentence-transformers model is served behind one). The vector dimension is
// fixed by the model; a response with a different dimension is a
// configuration error, not a retryable one.
type HTTPEmbedder struct {
	url    string
	model  string
	dim    int
	client *http.Client
}

// NewHTTPEmbedder creates an embedder for the given endpoint and model.
func NewHTTPEmbedder(url, model string, dim int) *HTTPEmbedder {
	return &HTTPEmbedder{
		url:    url,
		model:  model,
		dim:    dim,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Dimension returns the fixed vector dimension the model produces.
func (e *HTTPEmbedder) Dimension() int {
	return e.dim
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request returned status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embed response has %d vectors, want %d", len(parsed.Data), len(texts))
	}

	sort.Slice(parsed.Data, func(a, b int) bool { return parsed.Data[a].Index < parsed.Data[b].Index })

	vectors := make([][]float32, len(parsed.Data))
	for n, d := range parsed.Data {
		if len(d.Embedding) != e.dim {
			return nil, fmt.Errorf("embed response vector has dimension %d, want %d", len(d.Embedding), e.dim)
		}
		vectors[n] = d.Embedding
	}
	return vectors, nil
}
