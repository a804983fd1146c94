package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEmbedderOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if len(req.Input) != 2 {
			t.Errorf("Expected 2 inputs, got %d", len(req.Input))
		}
		// Out of order on purpose.
		fmt.Fprint(w, `{"data": [
			{"index": 1, "embedding": [3, 4]},
			{"index": 0, "embedding": [1, 2]}
		]}`)
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, "all-MiniLM-L6-v2", 2)

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 3 {
		t.Errorf("Expected vectors in input order, got %v", vectors)
	}
}

func TestHTTPEmbedderRejectsWrongDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": [{"index": 0, "embedding": [1, 2, 3]}]}`)
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, "all-MiniLM-L6-v2", 2)

	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Error("Expected error for vector of the wrong dimension")
	}
}

func TestHTTPEmbedderRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": [{"index": 0, "embedding": [1, 2]}]}`)
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, "all-MiniLM-L6-v2", 2)

	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("Expected error when the response has fewer vectors than inputs")
	}
}

func TestHTTPEmbedderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	embedder := NewHTTPEmbedder(server.URL, "all-MiniLM-L6-v2", 2)

	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}
