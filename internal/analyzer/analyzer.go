// Package analyzer turns a discussion item into an idea record through three
// model calls: viability analysis, solution design and playbook generation.
package analyzer

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/ideaminer/internal/analyzer/providers"
	"github.com/ibeckermayer/ideaminer/internal/config"
)

// Provider is a chat model that can be asked for JSON output.
type Provider interface {
	ChatJSON(ctx context.Context, prompt, system string, maxTokens int) (string, error)
	Name() string
	Model() string
}

// NewProvider builds the provider named in the analysis config.
func NewProvider(ctx context.Context, cfg config.AnalysisConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.APIKey,
			Organization: cfg.Organization,
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
		}), nil
	case config.ProviderAnthropic:
		return providers.NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.Temperature), nil
	case config.ProviderGemini:
		return providers.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
