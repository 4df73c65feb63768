package embedding

import (
	"context"
	"fmt"
)

// Provider is a single embedding backend. One call is one physical request;
// batching happens in Client.
type Provider interface {
	Name() string
	Embed(ctx context.Context, req Request) (*Response, error)
}

type Request struct {
	Model      string
	Input      []string
	Dimensions int
}

// Response carries vectors tagged with the index of the input they belong
// to. Providers may return them in any order.
type Response struct {
	Data         []Vector
	PromptTokens int
	TotalTokens  int
}

type Vector struct {
	Index     int
	Embedding []float32
}

// ProviderConfig selects and configures one provider.
type ProviderConfig struct {
	Provider      string // openai, ollama, gemini
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaURL     string
	GeminiKey     string
}

// NewProvider builds the configured provider.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.OpenAIKey == "" && cfg.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY")
		}
		return NewGeminiProvider(ctx, cfg.GeminiKey)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
