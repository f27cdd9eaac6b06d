package ai

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/threadloom/threadloom/internal/catalog"
)

// OllamaProvider implements the Provider interface for Ollama (local models)
// using the official SDK.
type OllamaProvider struct {
	client  *api.Client
	model   string
	catalog *catalog.Catalog
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(baseURL, model string, cat *catalog.Catalog) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	// Longer timeout for local inference
	httpClient := &http.Client{Timeout: 5 * time.Minute}

	return &OllamaProvider{
		client:  api.NewClient(parsedURL, httpClient),
		model:   model,
		catalog: cat,
	}
}

// ID returns the provider identifier
func (p *OllamaProvider) ID() string {
	return "ollama"
}

func (p *OllamaProvider) resolveModel(model string) string {
	if model == "" {
		model = p.model
	}
	if p.catalog != nil {
		model = p.catalog.Resolve(p.ID(), model)
	}
	return model
}

func (p *OllamaProvider) buildRequest(req *ChatRequest, stream bool) *api.ChatRequest {
	var messages []api.Message
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	chatReq := &api.ChatRequest{
		Model:    p.resolveModel(req.Model),
		Messages: messages,
		Stream:   &stream,
	}
	if req.MaxTokens > 0 {
		chatReq.Options = map[string]any{"num_predict": req.MaxTokens}
	}
	return chatReq
}

// Stream sends a request to Ollama and streams the response
func (p *OllamaProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamEvent, error) {
	chatReq := p.buildRequest(req, true)

	events := make(chan StreamEvent, 100)
	go func() {
		defer close(events)

		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				events <- StreamEvent{Type: EventTypeText, Text: resp.Message.Content}
			}
			return nil
		})
		if err != nil {
			events <- StreamEvent{Type: EventTypeError, Err: NormalizeError(p.ID(), err)}
			return
		}

		events <- StreamEvent{Type: EventTypeDone}
	}()

	return events, nil
}

// Complete sends a non-streaming request and returns the full text with usage
func (p *OllamaProvider) Complete(ctx context.Context, req *ChatRequest) (*Completion, error) {
	chatReq := p.buildRequest(req, false)

	var out Completion
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out.Text += resp.Message.Content
		if resp.Done {
			out.InputTokens = int64(resp.PromptEvalCount)
			out.OutputTokens = int64(resp.EvalCount)
		}
		return nil
	})
	if err != nil {
		return nil, NormalizeError(p.ID(), err)
	}
	return &out, nil
}
