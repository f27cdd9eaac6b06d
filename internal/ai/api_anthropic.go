package ai

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/threadloom/threadloom/internal/catalog"
)

const defaultMaxTokens = 8192

// AnthropicProvider implements the Anthropic Claude API using the official SDK
type AnthropicProvider struct {
	client  anthropic.Client
	model   string
	catalog *catalog.Catalog
}

// NewAnthropicProvider creates a new Anthropic provider. The default model
// comes from the catalog; aliases are resolved per request.
func NewAnthropicProvider(apiKey, model string, cat *catalog.Catalog) *AnthropicProvider {
	return &AnthropicProvider{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		catalog: cat,
	}
}

// ID returns the provider identifier
func (p *AnthropicProvider) ID() string {
	return "anthropic"
}

// resolveModel applies the catalog's alias mapping for this provider.
// Unrecognized names pass through unchanged.
func (p *AnthropicProvider) resolveModel(model string) string {
	if model == "" {
		model = p.model
	}
	if p.catalog != nil {
		model = p.catalog.Resolve(p.ID(), model)
	}
	return model
}

func (p *AnthropicProvider) buildParams(req *ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.resolveModel(req.Model)),
		MaxTokens: int64(defaultMaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// Stream sends a request and returns streaming events
func (p *AnthropicProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))

	events := make(chan StreamEvent, 100)
	go func() {
		defer close(events)

		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "message_start":
				start := event.AsMessageStart()
				if start.Message.ID != "" {
					events <- StreamEvent{Type: EventTypeText, RequestID: start.Message.ID}
				}

			case "content_block_delta":
				delta := event.AsContentBlockDelta()
				if d, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
					events <- StreamEvent{Type: EventTypeText, Text: d.Text}
				}

			case "message_stop":
				events <- StreamEvent{Type: EventTypeDone}
				return
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
func (p *AnthropicProvider) Complete(ctx context.Context, req *ChatRequest) (*Completion, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, NormalizeError(p.ID(), err)
	}

	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	return &Completion{
		Text:         text,
		RequestID:    msg.ID,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
