package svc

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/threadloom/threadloom/internal/ai"
	"github.com/threadloom/threadloom/internal/assembler"
	"github.com/threadloom/threadloom/internal/catalog"
	"github.com/threadloom/threadloom/internal/compress"
	"github.com/threadloom/threadloom/internal/config"
	"github.com/threadloom/threadloom/internal/db"
	"github.com/threadloom/threadloom/internal/graph"
	"github.com/threadloom/threadloom/internal/logging"
	"github.com/threadloom/threadloom/internal/memory"
	"github.com/threadloom/threadloom/internal/orchestrator"
	"github.com/threadloom/threadloom/internal/summarizer"
)

// ServiceContext wires every component once at process start; handlers and
// logic receive it by injection, never through package globals.
type ServiceContext struct {
	Config config.Config

	DB       *db.Store
	Catalog  *catalog.Catalog
	Registry *ai.Registry

	Compressor *compress.Client
	Memory     *memory.Client

	Orchestrator *orchestrator.Orchestrator
}

func NewServiceContext(c config.Config) (*ServiceContext, error) {
	store, err := db.NewSQLite(c.Database.SQLitePath)
	if err != nil {
		return nil, err
	}

	cat := catalog.Load(filepath.Dir(c.Database.SQLitePath))
	if err := cat.Watch(); err != nil {
		logging.Warnf("model catalog watch unavailable: %v", err)
	}

	var providers []ai.Provider
	if c.Providers.AnthropicAPIKey != "" {
		providers = append(providers, ai.NewAnthropicProvider(c.Providers.AnthropicAPIKey, cat.DefaultModel("anthropic"), cat))
	}
	if c.Providers.OpenAIAPIKey != "" {
		providers = append(providers, ai.NewOpenAIProvider(c.Providers.OpenAIAPIKey, cat.DefaultModel("openai"), cat))
	}
	if c.Providers.GeminiAPIKey != "" {
		providers = append(providers, ai.NewGeminiProvider(c.Providers.GeminiAPIKey, cat.DefaultModel("gemini"), cat))
	}
	if c.Providers.OllamaBaseURL != "" {
		providers = append(providers, ai.NewOllamaProvider(c.Providers.OllamaBaseURL, cat.DefaultModel("ollama"), cat))
	}
	registry := ai.NewRegistry(providers...)
	logging.Infof("providers configured: %v", registry.IDs())

	compressor := compress.NewClient(compress.Config{
		BaseURL: c.Compression.BaseURL,
		Policy: compress.Policy{
			Aggressiveness:  c.Compression.Aggressiveness,
			MaxOutputTokens: c.Compression.MaxOutputTokens,
			MinOutputTokens: c.Compression.MinOutputTokens,
		},
		Timeout: time.Duration(c.Compression.TimeoutSeconds) * time.Second,
	})

	mem := memory.NewClient(memory.Config{
		BaseURL: c.Memory.BaseURL,
		APIKey:  c.Memory.APIKey,
		Timeout: time.Duration(c.Memory.TimeoutSeconds) * time.Second,
	})

	sumProvider, sumModel := summaryBackend(registry, c.Providers.SummaryModel)
	sum := summarizer.New(sumProvider, sumModel)

	orch := orchestrator.New(store, registry, assembler.New(compressor), sum, graph.NewLinker(store), mem, orchestrator.Options{
		SystemText:     c.App.SystemInstructions,
		MaxTokens:      c.Orchestrator.MaxTokens,
		StreamTimeout:  time.Duration(c.Orchestrator.StreamTimeoutSeconds) * time.Second,
		MemoryTimeout:  time.Duration(c.Memory.TimeoutSeconds) * time.Second,
		SummaryTimeout: time.Duration(c.Orchestrator.SummaryTimeoutSeconds) * time.Second,
	})

	return &ServiceContext{
		Config:       c,
		DB:           store,
		Catalog:      cat,
		Registry:     registry,
		Compressor:   compressor,
		Memory:       mem,
		Orchestrator: orch,
	}, nil
}

// summaryBackend resolves the "provider/model" summary setting against the
// configured providers. A nil provider means the summarizer falls back to
// its deterministic summary.
func summaryBackend(registry *ai.Registry, setting string) (ai.Provider, string) {
	if setting != "" {
		providerID, model, _ := strings.Cut(setting, "/")
		if p, err := registry.Get(providerID); err == nil {
			return p, model
		}
		logging.Warnf("summary model %q references an unconfigured provider, using fallback order", setting)
	}
	for _, id := range registry.IDs() {
		if p, err := registry.Get(id); err == nil {
			return p, ""
		}
	}
	return nil, ""
}

func (s *ServiceContext) Close() {
	if s.Catalog != nil {
		s.Catalog.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
