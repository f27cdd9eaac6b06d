package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/threadloom/threadloom/internal/ai"
)

type fakeProvider struct {
	text string
	err  error
}

func (f *fakeProvider) ID() string { return "fake" }

func (f *fakeProvider) Stream(ctx context.Context, req *ai.ChatRequest) (<-chan ai.StreamEvent, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) Complete(ctx context.Context, req *ai.ChatRequest) (*ai.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Text: f.text}, nil
}

func TestSummarize_ParsesStructuredResponse(t *testing.T) {
	s := New(&fakeProvider{text: `{"title": "Greeting", "summary": "User said hi. Assistant greeted back."}`}, "")

	title, summary := s.Summarize(context.Background(), "hi", "hello there")
	if title == nil || *title != "Greeting" {
		t.Errorf("title = %v, want Greeting", title)
	}
	if summary != "User said hi. Assistant greeted back." {
		t.Errorf("summary = %q", summary)
	}
}

func TestSummarize_ToleratesSurroundingProse(t *testing.T) {
	s := New(&fakeProvider{text: "Sure, here you go:\n{\"title\": \"T\", \"summary\": \"S with a } inside a string? No: \\\"{}\\\".\"}\nHope that helps!"}, "")

	title, summary := s.Summarize(context.Background(), "u", "a")
	if title == nil || *title != "T" {
		t.Errorf("title = %v, want T", title)
	}
	if !strings.HasPrefix(summary, "S with a") {
		t.Errorf("summary = %q", summary)
	}
}

func TestSummarize_FallbackOnProviderError(t *testing.T) {
	s := New(&fakeProvider{err: errors.New("backend down")}, "")

	title, summary := s.Summarize(context.Background(), "what is Go?", "Go is a language.")
	if title != nil {
		t.Errorf("fallback title should be nil, got %q", *title)
	}
	if !strings.Contains(summary, "what is Go?") || !strings.Contains(summary, "Go is a language.") {
		t.Errorf("fallback should derive from both texts: %q", summary)
	}
}

func TestSummarize_FallbackOnUnparsableResponse(t *testing.T) {
	s := New(&fakeProvider{text: "no json here at all"}, "")

	_, summary := s.Summarize(context.Background(), "question", "answer")
	if summary == "" {
		t.Fatal("fallback summary must be non-empty")
	}
	if !strings.Contains(summary, "question") {
		t.Errorf("fallback should contain user text: %q", summary)
	}
}

func TestSummarize_FallbackOnEmptySummaryField(t *testing.T) {
	s := New(&fakeProvider{text: `{"title": "T", "summary": ""}`}, "")

	title, summary := s.Summarize(context.Background(), "u", "a")
	if title != nil {
		t.Errorf("empty model summary should discard the title, got %q", *title)
	}
	if summary != "u / a" {
		t.Errorf("summary = %q, want fallback", summary)
	}
}

func TestFallback_TruncatesLongTexts(t *testing.T) {
	long := strings.Repeat("x", 500)
	summary := Fallback(long, long)

	want := strings.Repeat("x", 120) + " / " + strings.Repeat("x", 120)
	if summary != want {
		t.Errorf("fallback length = %d, want %d", len(summary), len(want))
	}
}

func TestFallback_NeverEmpty(t *testing.T) {
	if Fallback("", "") == "" {
		t.Fatal("fallback must be non-empty for empty inputs")
	}
	if got := Fallback("only user", ""); got != "only user" {
		t.Errorf("got %q", got)
	}
	if got := Fallback("", "only assistant"); got != "only assistant" {
		t.Errorf("got %q", got)
	}
}

func TestSummarize_NilProviderUsesFallback(t *testing.T) {
	s := New(nil, "")
	title, summary := s.Summarize(context.Background(), "u", "a")
	if title != nil || summary != "u / a" {
		t.Errorf("got title=%v summary=%q", title, summary)
	}
}
