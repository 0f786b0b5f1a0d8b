package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v, want test-model", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": answer}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAsk(t *testing.T) {
	server := completionServer(t, "The answer is 42.")
	c := NewClient(server.URL, "test-key", "test-model")

	got, err := c.Ask(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got != "The answer is 42." {
		t.Errorf("Ask() = %q", got)
	}
}

func TestAskFlattensNewlines(t *testing.T) {
	server := completionServer(t, "line one\nline two")
	c := NewClient(server.URL, "k", "test-model")

	got, err := c.Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("Ask() = %q, want newlines flattened", got)
	}
}

func TestAskTruncatesLongReply(t *testing.T) {
	server := completionServer(t, strings.Repeat("a", 1000))
	c := NewClient(server.URL, "k", "test-model")

	got, err := c.Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(got) > MaxReplyLen {
		t.Errorf("reply length = %d, want <= %d", len(got), MaxReplyLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated reply should end with ellipsis, got %q", got[len(got)-10:])
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	c := NewClient("http://unused", "k", "m")
	if _, err := c.Ask(context.Background(), "   "); err == nil {
		t.Error("expected error for empty question")
	}
}

func TestAskServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "m")
	if _, err := c.Ask(context.Background(), "q"); err == nil {
		t.Error("expected error for 429 response")
	}
}

func TestAskNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := NewClient(server.URL, "k", "m")
	if _, err := c.Ask(context.Background(), "q"); err == nil {
		t.Error("expected error for empty choices")
	}
}
