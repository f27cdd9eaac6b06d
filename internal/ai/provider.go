package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// StreamEventType defines the type of streaming event
type StreamEventType string

const (
	EventTypeText  StreamEventType = "text"
	EventTypeDone  StreamEventType = "done"
	EventTypeError StreamEventType = "error"
)

// StreamEvent is one event from a provider's streaming response. The sequence
// is finite and non-restartable: text events in emission order, then exactly
// one done or error event, after which the channel is closed.
type StreamEvent struct {
	Type StreamEventType
	Text string
	// RequestID carries the backend-assigned request id when the backend
	// reports one. Only the first non-empty value matters to callers.
	RequestID string
	Err       error
}

// ChatRequest is a single-turn request to a provider.
type ChatRequest struct {
	Model string
	// System carries the system instructions.
	System string
	// Prompt is the fully assembled user-side prompt (memory context plus the
	// user's message) and is sent verbatim as a single user message.
	Prompt    string
	MaxTokens int
}

// Completion is the result of a non-streaming call.
type Completion struct {
	Text         string
	RequestID    string
	InputTokens  int64
	OutputTokens int64
}

// Provider is the uniform interface over interchangeable model backends.
type Provider interface {
	// ID returns the provider identifier (e.g. "anthropic", "openai")
	ID() string

	// Stream sends a request and returns a channel of streaming events.
	// The channel is closed by the provider after the terminal event;
	// cancelling ctx aborts the underlying call.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error)

	// Complete sends a request and returns the full response text with usage.
	Complete(ctx context.Context, req *ChatRequest) (*Completion, error)
}

// ProviderError is the normalized form of any backend failure. Code is
// machine-readable ("<provider>_error"). Retryable is informational: the
// orchestrator never retries, callers may.
type ProviderError struct {
	Provider  string `json:"provider"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NormalizeError converts any backend failure into a ProviderError. Already
// normalized errors pass through unchanged.
func NormalizeError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{
		Provider:  provider,
		Code:      provider + "_error",
		Message:   err.Error(),
		Retryable: isRetryable(err),
	}
}

// isRetryable classifies an error message as transient. Auth, billing and
// malformed-request failures are permanent; rate limits, timeouts and server
// errors are worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	permanent := []string{
		"authentication", "unauthorized", "invalid api key", "api key",
		"401", "403", "forbidden", "invalid credentials",
		"billing", "quota", "payment", "insufficient",
		"invalid_request", "bad request", "400",
	}
	for _, p := range permanent {
		if strings.Contains(msg, p) {
			return false
		}
	}

	transient := []string{
		"rate limit", "rate_limit", "too many requests", "429",
		"throttle", "overloaded", "timeout", "timed out",
		"deadline exceeded", "connection refused", "connection reset",
		"500", "502", "503", "529",
	}
	for _, p := range transient {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
