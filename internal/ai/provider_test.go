package ai

import (
	"errors"
	"testing"
)

func TestNormalizeError_WrapsPlainError(t *testing.T) {
	err := NormalizeError("anthropic", errors.New("connection reset by peer"))

	if err.Code != "anthropic_error" {
		t.Errorf("expected code anthropic_error, got %s", err.Code)
	}
	if !err.Retryable {
		t.Error("expected transport error to be retryable")
	}
}

func TestNormalizeError_PassesThroughNormalized(t *testing.T) {
	orig := &ProviderError{Provider: "openai", Code: "openai_error", Message: "boom"}
	err := NormalizeError("anthropic", orig)

	if err != orig {
		t.Error("expected already-normalized error to pass through unchanged")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"429 too many requests", true},
		{"request timed out", true},
		{"503 service unavailable", true},
		{"overloaded_error: please retry", true},
		{"401 unauthorized", false},
		{"invalid api key provided", false},
		{"insufficient quota for this billing period", false},
		{"invalid_request_error: max_tokens too large", false},
		{"something unexpected", false},
	}

	for _, tc := range cases {
		if got := isRetryable(errors.New(tc.msg)); got != tc.want {
			t.Errorf("isRetryable(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestRegistry_Get(t *testing.T) {
	anthropic := NewAnthropicProvider("test-key", "claude-sonnet-4-5", nil)
	openai := NewOpenAIProvider("test-key", "gpt-4.1", nil)
	reg := NewRegistry(anthropic, openai)

	p, err := reg.Get("anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != "anthropic" {
		t.Errorf("expected anthropic, got %s", p.ID())
	}

	if _, err := reg.Get("mystery"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRegistry_IDs(t *testing.T) {
	reg := NewRegistry(
		NewOpenAIProvider("k", "gpt-4.1", nil),
		NewAnthropicProvider("k", "claude-sonnet-4-5", nil),
	)

	ids := reg.IDs()
	if len(ids) != 2 || ids[0] != "anthropic" || ids[1] != "openai" {
		t.Errorf("unexpected IDs: %v", ids)
	}
}
