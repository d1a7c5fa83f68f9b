package service

import (
	"context"
	"fmt"
	"math"

	"recanalysis/pkg/config"

	"github.com/philippgille/chromem-go"
)

const (
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderOpenAI = "openai"
)

// NewEmbeddingFunc returns the embedding function for the configured provider.
// Vectors are normalized so similarity scores are cosine similarities.
func NewEmbeddingFunc(cfg *config.EmbeddingConfig) (chromem.EmbeddingFunc, error) {
	var embed chromem.EmbeddingFunc

	switch cfg.Provider {
	case EmbeddingProviderOllama, "":
		// empty base URL means the local Ollama default
		embed = chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL)
	case EmbeddingProviderOpenAI:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("EMBEDDING_BASE_URL is required for provider %q", cfg.Provider)
		}
		embed = chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.Model, nil)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	return NormalizedEmbedding(embed), nil
}

// NormalizedEmbedding wraps embed so every vector it returns has unit length.
func NormalizedEmbedding(embed chromem.EmbeddingFunc) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		v, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return normalize(v), nil
	}
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
