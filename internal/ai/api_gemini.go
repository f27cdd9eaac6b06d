package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/threadloom/threadloom/internal/catalog"
)

// GeminiProvider implements the Google Gemini API using the official SDK
type GeminiProvider struct {
	apiKey  string
	model   string
	catalog *catalog.Catalog
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, model string, cat *catalog.Catalog) *GeminiProvider {
	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		catalog: cat,
	}
}

// ID returns the provider identifier
func (p *GeminiProvider) ID() string {
	return "gemini"
}

func (p *GeminiProvider) resolveModel(model string) string {
	if model == "" {
		model = p.model
	}
	if p.catalog != nil {
		model = p.catalog.Resolve(p.ID(), model)
	}
	return model
}

func (p *GeminiProvider) generativeModel(ctx context.Context, req *ChatRequest) (*genai.Client, *genai.GenerativeModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return nil, nil, NormalizeError(p.ID(), err)
	}

	model := client.GenerativeModel(p.resolveModel(req.Model))
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	return client, model, nil
}

// Stream sends a request and returns streaming events
func (p *GeminiProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	client, model, err := p.generativeModel(ctx, req)
	if err != nil {
		return nil, err
	}

	iter := model.GenerateContentStream(ctx, genai.Text(req.Prompt))

	events := make(chan StreamEvent, 100)
	go func() {
		defer close(events)
		defer client.Close()

		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				events <- StreamEvent{Type: EventTypeDone}
				return
			}
			if err != nil {
				events <- StreamEvent{Type: EventTypeError, Err: NormalizeError(p.ID(), err)}
				return
			}
			if text := candidateText(resp); text != "" {
				events <- StreamEvent{Type: EventTypeText, Text: text}
			}
		}
	}()

	return events, nil
}

// Complete sends a non-streaming request and returns the full text with usage
func (p *GeminiProvider) Complete(ctx context.Context, req *ChatRequest) (*Completion, error) {
	client, model, err := p.generativeModel(ctx, req)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, NormalizeError(p.ID(), err)
	}

	text := candidateText(resp)
	if text == "" {
		return nil, NormalizeError(p.ID(), fmt.Errorf("gemini returned no content"))
	}

	out := &Completion{Text: text}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}
