package config

import (
	"os"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/rest"
)

// LoadFromBytes loads configuration from YAML bytes with environment variable expansion
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := conf.LoadFromYamlBytes([]byte(expanded), &c); err != nil {
		return c, err
	}
	return c, nil
}

type Config struct {
	rest.RestConf
	App struct {
		// DevUserID is the fixed development identity attached to every request.
		// Real authentication is out of scope; ownership checks compare against this.
		DevUserID string `json:",default=dev-user"`
		// SystemInstructions is the base system prompt injected into every turn.
		SystemInstructions string `json:",default=You are a helpful assistant with long-term memory of this project."`
	}
	Database struct {
		SQLitePath string `json:",default=./data/threadloom.db"`
	}
	Providers struct {
		AnthropicAPIKey string `json:",optional"`
		OpenAIAPIKey    string `json:",optional"`
		GeminiAPIKey    string `json:",optional"`
		OllamaBaseURL   string `json:",default=http://localhost:11434"`
		// SummaryModel is the lightweight model used for turn titles/summaries,
		// in provider/model form (e.g. "anthropic/claude-3-5-haiku-latest").
		// Empty picks the first configured provider with its default model.
		SummaryModel string `json:",optional"`
	}
	Compression struct {
		BaseURL         string  `json:",optional"`
		Aggressiveness  float64 `json:",default=0.5"`
		MaxOutputTokens int     `json:",default=1024"`
		MinOutputTokens int     `json:",default=128"`
		TimeoutSeconds  int     `json:",default=10"`
	}
	Memory struct {
		BaseURL        string `json:",optional"`
		APIKey         string `json:",optional"`
		TimeoutSeconds int    `json:",default=10"`
	}
	Orchestrator struct {
		// StreamTimeoutSeconds bounds a single provider streaming call.
		StreamTimeoutSeconds int `json:",default=300"`
		// SummaryTimeoutSeconds bounds the summarizer's provider call.
		SummaryTimeoutSeconds int `json:",default=20"`
		MaxTokens             int `json:",default=8192"`
	}
}
