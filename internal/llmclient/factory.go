// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
)

// NewClient creates a provider client for model based on the configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg, model, logger)
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, model, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderOllama, config.ProviderGemini)
	}
}

// NewFromConfig builds the tiered, rate limited client used by the agent:
// Model serves the powerful tier and FastModel (or Model) the fast tier.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	powerful, err := NewClient(ctx, cfg, cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
	}

	fastModel := cfg.FastModel
	if fastModel == "" {
		fastModel = cfg.Model
	}
	fast := powerful
	if fastModel != cfg.Model {
		if fast, err = NewClient(ctx, cfg, fastModel, logger); err != nil {
			return nil, fmt.Errorf("failed to create fast tier client: %w", err)
		}
	}

	router, err := NewRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	return NewRateLimited(router, cfg.RequestsPerMinute), nil
}
