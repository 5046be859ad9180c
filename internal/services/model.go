package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/gcp"
	"github.com/Lllllllleong/resumeflow/internal/llm"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
)

// NewModel builds the language model client selected by cfg.Provider. The
// Vertex client holds a connection and implements io.Closer.
func NewModel(ctx context.Context, cfg config.Config) (llm.Model, error) {
	switch cfg.Provider {
	case config.ProviderVertex:
		modelName := cfg.Model
		if modelName == "" {
			modelName = gcp.DefaultVertexModel
		}
		client, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexRegion, modelName, cfg.Temperature)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		slog.Info("Vertex AI model initialized.", "model", modelName, "region", cfg.VertexRegion)
		return client, nil
	case config.ProviderOpenAI:
		client := llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		slog.Info("OpenAI model initialized.", "model", client.Model())
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
}

// NewController wires the three agents around model with the router and
// ceiling from cfg. Extra options are applied last.
func NewController(model llm.Model, cfg config.Config, opts ...pipeline.Option) (*pipeline.Controller, error) {
	router, err := pipeline.RouterByName(cfg.Router)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	all := append([]pipeline.Option{
		pipeline.WithRouter(router),
		pipeline.WithMaxExtractions(cfg.MaxExtractions),
	}, opts...)
	return pipeline.NewModelController(model, all...), nil
}
