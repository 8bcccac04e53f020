package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain"
	"github.com/strugglingman/rag-chatbot/internal/usecase/chat"
)

func sseChunk(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 0,
		"model":   "test-model",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}},
		},
	})
	return fmt.Sprintf("data: %s\n\n", body)
}

func newTestGenerator(baseURL string) *Generator {
	return NewGenerator(&GeneratorConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		Temperature: 0.1,
		MaxTokens:   200,
		Logger:      zap.NewNop(),
	})
}

func TestGenerator_StreamsDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream || req.Model != "test-model" || req.MaxTokens != 200 {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hel"))
		fmt.Fprint(w, sseChunk("lo [1]."))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	msgs := []chat.Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "question"},
	}

	var got strings.Builder
	err := newTestGenerator(server.URL).Stream(context.Background(), msgs, func(delta string) error {
		got.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if got.String() != "Hello [1]." {
		t.Errorf("got %q", got.String())
	}
}

func TestGenerator_OnDeltaErrorAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("a"))
		fmt.Fprint(w, sseChunk("b"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	sinkErr := errors.New("client gone")
	var calls int
	err := newTestGenerator(server.URL).Stream(context.Background(),
		[]chat.Message{{Role: "user", Content: "q"}},
		func(string) error {
			calls++
			return sinkErr
		})
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("stream should stop after first failed delta, got %d calls", calls)
	}
}

func TestGenerator_OpenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	err := newTestGenerator(server.URL).Stream(context.Background(),
		[]chat.Message{{Role: "user", Content: "q"}},
		func(string) error { return nil })
	if !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}
