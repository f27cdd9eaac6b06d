package compress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req["input"] != "long pinned context" {
			t.Errorf("unexpected input: %v", req["input"])
		}
		if req["aggressiveness"] != 0.5 {
			t.Errorf("unexpected aggressiveness: %v", req["aggressiveness"])
		}
		json.NewEncoder(w).Encode(Result{
			Output:              "short context",
			OutputTokens:        3,
			OriginalInputTokens: 10,
			CompressionTime:     0.2,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL: srv.URL,
		Policy:  Policy{Aggressiveness: 0.5, MaxOutputTokens: 1024, MinOutputTokens: 128},
	})

	result, err := c.Compress(context.Background(), "long pinned context")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "short context" {
		t.Errorf("unexpected output: %s", result.Output)
	}
	if result.OriginalInputTokens != 10 {
		t.Errorf("unexpected input tokens: %d", result.OriginalInputTokens)
	}
}

func TestCompress_Non2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Compress(context.Background(), "text"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompress_Disabled(t *testing.T) {
	c := NewClient(Config{})
	if c.Enabled() {
		t.Error("client with no base URL should be disabled")
	}
	if _, err := c.Compress(context.Background(), "text"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
