package generator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/generator/providers"
)

// Provider is a text completion backend
type Provider = providers.Completer

// NewProvider creates the configured provider. With record set every
// exchange is also written to the llm artifact cache.
func NewProvider(ctx context.Context, cfg config.LLMConfig, record bool, logger *logrus.Logger) (Provider, error) {
	var provider Provider

	switch cfg.Provider {
	case config.ProviderGemini:
		gemini, err := providers.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		provider = gemini
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		provider = providers.NewAnthropicProvider(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}

	if record {
		provider = providers.NewRecorder(provider, logger)
	}
	return provider, nil
}
