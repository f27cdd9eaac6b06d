package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/threadloom/threadloom/internal/ai"
	"github.com/threadloom/threadloom/internal/logging"
)

// prefixBound is the character bound for each half of the fallback summary.
const prefixBound = 120

const summaryPrompt = `Summarize the following exchange between a user and an assistant.

Return a JSON object with exactly two fields:
- "title": a short title for the exchange, at most 8 words
- "summary": two sentences capturing what was asked and what was answered

User:
%s

Assistant:
%s

Respond ONLY with valid JSON, no other text.`

type summaryResponse struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Summarizer derives a title and summary for a completed exchange.
type Summarizer struct {
	provider ai.Provider
	model    string
}

// New creates a summarizer that calls the given provider with a fixed model.
// An empty model uses the provider's default.
func New(provider ai.Provider, model string) *Summarizer {
	return &Summarizer{provider: provider, model: model}
}

// Summarize produces a title and a non-empty summary for the exchange. It
// never returns an error: any provider or parse failure falls back to a
// deterministic summary built from the two texts.
func (s *Summarizer) Summarize(ctx context.Context, userText, assistantText string) (*string, string) {
	if s.provider != nil {
		title, summary, err := s.summarizeWithModel(ctx, userText, assistantText)
		if err != nil {
			logging.Warnf("turn summarization failed, using fallback: %v", err)
		} else if summary != "" {
			return title, summary
		}
	}
	return nil, Fallback(userText, assistantText)
}

func (s *Summarizer) summarizeWithModel(ctx context.Context, userText, assistantText string) (*string, string, error) {
	prompt := fmt.Sprintf(summaryPrompt, userText, assistantText)
	completion, err := s.provider.Complete(ctx, &ai.ChatRequest{
		Model:     s.model,
		Prompt:    prompt,
		MaxTokens: 512,
	})
	if err != nil {
		return nil, "", err
	}

	raw, ok := extractJSON(completion.Text)
	if !ok {
		return nil, "", fmt.Errorf("no JSON object in response")
	}

	var parsed summaryResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, "", fmt.Errorf("parse summary: %w", err)
	}

	summary := strings.TrimSpace(parsed.Summary)
	var title *string
	if t := strings.TrimSpace(parsed.Title); t != "" {
		title = &t
	}
	return title, summary, nil
}

// Fallback builds a deterministic summary from truncated prefixes of the two
// texts. It is non-empty even when both texts are empty.
func Fallback(userText, assistantText string) string {
	user := truncate(strings.TrimSpace(userText), prefixBound)
	assistant := truncate(strings.TrimSpace(assistantText), prefixBound)

	switch {
	case user != "" && assistant != "":
		return user + " / " + assistant
	case user != "":
		return user
	case assistant != "":
		return assistant
	default:
		return "(empty exchange)"
	}
}

func truncate(s string, bound int) string {
	if utf8.RuneCountInString(s) <= bound {
		return s
	}
	runes := []rune(s)
	return string(runes[:bound])
}

// extractJSON returns the first balanced brace-delimited substring of s,
// tolerating surrounding prose and braces inside JSON string literals.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
