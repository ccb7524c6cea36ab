// Package semantic provides embedding-based similarity for the parley core:
// provider implementations, cosine ranking, and the Matcher consumed by the
// classifier and long-term memory. When the provider is unavailable or slow
// every similarity call degrades to 0.0 with a raised flag; the pipeline
// continues instead of blocking.
package semantic

import (
	"fmt"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/types"
)

// =============================================================================
// PROVIDER FACTORY
// =============================================================================

// NewProvider creates an embedding provider based on configuration.
// Supported: "ollama" (local server), "genai" (Gemini API), "hash"
// (deterministic offline vectors for tests and development).
func NewProvider(cfg config.EmbeddingConfig) (types.EmbeddingProvider, error) {
	timer := logging.StartTimer(logging.CategorySemantic, "NewProvider")
	defer timer.Stop()

	logging.Semantic("Creating embedding provider: %s", cfg.Provider)

	var provider types.EmbeddingProvider
	var err error

	switch cfg.Provider {
	case "ollama":
		provider, err = NewOllamaProvider(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		provider, err = NewGenAIProvider(cfg.GenAIAPIKey, cfg.GenAIModel)
	case "hash":
		provider = NewHashProvider(defaultHashDimensions)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'ollama', 'genai' or 'hash')", cfg.Provider)
	}

	if err != nil {
		logging.Get(logging.CategorySemantic).Error("Failed to create embedding provider: %v", err)
		return nil, err
	}

	logging.Semantic("Embedding provider ready: name=%s, dimensions=%d", provider.Name(), provider.Dimensions())
	return provider, nil
}
