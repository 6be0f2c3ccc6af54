package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fandbgo/travel-concierge/internal/core/domain"
)

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"), nil)
	vector, err := embedder.EmbedQuery(context.Background(), "khách sạn gần biển")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 || vector[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"), nil)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be wrapped as temporary, got %v", err)
	}
}

func TestCompleteJSONRequestsJSONFormat(t *testing.T) {
	var capturedFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedFormat, _ = payload["format"].(string)
		_, _ = w.Write([]byte(`{"response":"noise {\"budget_max\":500000} trailing"}`))
	}))
	defer server.Close()

	completer := NewCompleter(New(server.URL, "gen", "embed"), nil)
	out, err := completer.CompleteJSON(context.Background(), "extract slots")
	if err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if capturedFormat != "json" {
		t.Fatalf("format = %q, want json", capturedFormat)
	}
	if out != `{"budget_max":500000}` {
		t.Fatalf("expected bare JSON object, got %q", out)
	}
}
