package llm

import (
	"context"
	"fmt"

	"github.com/yoockh/auxilium/config"
)

// New builds the provider named by cfg.Name.
func New(ctx context.Context, cfg config.Provider) (Provider, error) {
	switch cfg.Name {
	case "bedrock":
		return NewBedrockLlama(ctx, BedrockOptions{
			Region:      cfg.AWSRegion,
			Model:       cfg.Model,
			MaxGenLen:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		})
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAIChat(OpenAIOptions{
			APIKey:      cfg.OpenAIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		}), nil
	case "vertex":
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("llm: GCP_PROJECT_ID is required for the vertex provider")
		}
		return NewVertexGemini(ctx, VertexOptions{
			ProjectID:   cfg.GCPProject,
			Location:    cfg.GCPLocation,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
		})
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Name)
	}
}
