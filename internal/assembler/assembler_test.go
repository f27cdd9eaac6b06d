package assembler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/threadloom/threadloom/internal/compress"
)

func TestAssemble_NoCompressor(t *testing.T) {
	a := New(compress.NewClient(compress.Config{}))

	out := a.Assemble(context.Background(), Input{
		SystemText:      "be helpful",
		PinnedSummaries: []string{"first summary", "second summary"},
		MemoryContext:   "user prefers Go",
		UserText:        "hello",
	})

	if out.Compression != nil {
		t.Fatal("expected no compression stats without a compressor")
	}
	if !strings.Contains(out.Prompt, "first summary\nsecond summary") {
		t.Errorf("prompt missing pinned summaries: %q", out.Prompt)
	}
	if !strings.Contains(out.Prompt, "user prefers Go") {
		t.Errorf("prompt missing memory context: %q", out.Prompt)
	}
	if !strings.HasSuffix(out.Prompt, "## User Message\nhello") {
		t.Errorf("prompt does not end with user message: %q", out.Prompt)
	}
	if !strings.HasPrefix(out.Injected, "## System Instructions\nbe helpful") {
		t.Errorf("injected text missing system instructions: %q", out.Injected)
	}
	if !strings.HasSuffix(out.Injected, out.Prompt) {
		t.Error("injected text should embed the prompt verbatim")
	}
}

func TestAssemble_CompressesPinnedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output":                "squeezed",
			"output_tokens":         5,
			"original_input_tokens": 50,
			"compression_time":      0.01,
		})
	}))
	defer srv.Close()

	a := New(compress.NewClient(compress.Config{
		BaseURL: srv.URL,
		Policy:  compress.Policy{Aggressiveness: 0.7, MaxOutputTokens: 256, MinOutputTokens: 32},
		Timeout: time.Second,
	}))

	out := a.Assemble(context.Background(), Input{
		SystemText:      "sys",
		PinnedSummaries: []string{"a very long pinned summary"},
		UserText:        "hi",
	})

	if out.Compression == nil {
		t.Fatal("expected compression stats")
	}
	if out.Compression.InputTokens != 50 || out.Compression.OutputTokens != 5 {
		t.Errorf("unexpected token counts: %+v", out.Compression)
	}
	if out.Compression.Ratio != 0.1 {
		t.Errorf("ratio = %v, want 0.1", out.Compression.Ratio)
	}
	if !strings.Contains(out.Prompt, "squeezed") {
		t.Errorf("prompt should carry compressed text: %q", out.Prompt)
	}
	if strings.Contains(out.Prompt, "very long pinned") {
		t.Errorf("prompt should not carry raw pinned text: %q", out.Prompt)
	}
}

func TestAssemble_FallsBackWhenCompressorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(compress.NewClient(compress.Config{
		BaseURL: srv.URL,
		Policy:  compress.Policy{Aggressiveness: 0.5},
		Timeout: time.Second,
	}))

	out := a.Assemble(context.Background(), Input{
		SystemText:      "sys",
		PinnedSummaries: []string{"pinned text survives"},
		UserText:        "hi",
	})

	if out.Compression != nil {
		t.Fatal("failed compression must not report stats")
	}
	if !strings.Contains(out.Prompt, "pinned text survives") {
		t.Errorf("prompt lost pinned text on fallback: %q", out.Prompt)
	}
}

func TestAssemble_SkipsCompressionWithoutPinnedText(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	a := New(compress.NewClient(compress.Config{BaseURL: srv.URL, Timeout: time.Second}))
	out := a.Assemble(context.Background(), Input{SystemText: "sys", UserText: "hi"})

	if called {
		t.Error("compressor should not be called with no pinned text")
	}
	if out.Compression != nil {
		t.Error("expected no compression stats")
	}
}
