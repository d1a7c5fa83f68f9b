package service

import (
	"context"
	"fmt"

	"recanalysis/internal/models"
	"recanalysis/pkg/config"

	"go.uber.org/zap"
)

const (
	BackendGemini   = "gemini"
	BackendGigaChat = "gigachat"
)

// GenerationBackend turns a prompt into the raw text of a JSON object whose
// keys are the schema's field names.
type GenerationBackend interface {
	Name() string
	Generate(ctx context.Context, prompt string, schema *models.ExtractionSchema) (string, error)
}

// NewGenerationBackend builds the backend selected by LLM_PROVIDER.
func NewGenerationBackend(cfg *config.Config, logger *zap.Logger) (GenerationBackend, error) {
	switch cfg.LLM.Provider {
	case BackendGemini, "":
		backend, err := NewGeminiBackend(&cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case BackendGigaChat:
		backend, err := NewGigaChatBackend(&cfg.GigaChat, cfg.LLM.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLM.Provider)
	}
}
