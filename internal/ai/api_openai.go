package ai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/threadloom/threadloom/internal/catalog"
)

// OpenAIProvider implements the OpenAI API using the official SDK
type OpenAIProvider struct {
	client  openai.Client
	model   string
	catalog *catalog.Catalog
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model string, cat *catalog.Catalog) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		catalog: cat,
	}
}

// ID returns the provider identifier
func (p *OpenAIProvider) ID() string {
	return "openai"
}

func (p *OpenAIProvider) resolveModel(model string) string {
	if model == "" {
		model = p.model
	}
	if p.catalog != nil {
		model = p.catalog.Resolve(p.ID(), model)
	}
	return model
}

func (p *OpenAIProvider) buildParams(req *ChatRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.resolveModel(req.Model)),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Stream sends a request and returns streaming events
func (p *OpenAIProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(req))

	events := make(chan StreamEvent, 100)
	go func() {
		defer close(events)

		sentRequestID := false
		for stream.Next() {
			chunk := stream.Current()

			requestID := ""
			if !sentRequestID && chunk.ID != "" {
				requestID = chunk.ID
				sentRequestID = true
			}

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				events <- StreamEvent{
					Type:      EventTypeText,
					Text:      chunk.Choices[0].Delta.Content,
					RequestID: requestID,
				}
			} else if requestID != "" {
				events <- StreamEvent{Type: EventTypeText, RequestID: requestID}
			}
		}

		if err := stream.Err(); err != nil {
			events <- StreamEvent{Type: EventTypeError, Err: NormalizeError(p.ID(), err)}
			return
		}

		events <- StreamEvent{Type: EventTypeDone}
	}()

	return events, nil
}

// Complete sends a non-streaming request and returns the full text with usage
func (p *OpenAIProvider) Complete(ctx context.Context, req *ChatRequest) (*Completion, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, NormalizeError(p.ID(), err)
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return &Completion{
		Text:         text,
		RequestID:    resp.ID,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
