package ai

import (
	"fmt"

	"github.com/prospecthq/prospector/internal/ai/anthropic"
	"github.com/prospecthq/prospector/internal/ai/mock"
	"github.com/prospecthq/prospector/internal/ai/openai"
	"github.com/prospecthq/prospector/internal/config"
	"github.com/prospecthq/prospector/pkg/models"
)

// NewGenerator constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewGenerator(cfg config.AIConfig) (models.Generator, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.InferenceTimeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of anthropic, openai, mock", cfg.Provider)
	}
}
