package semantic

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultHashDimensions = 64

// =============================================================================
// HASH EMBEDDING PROVIDER (offline)
// =============================================================================

// HashProvider produces deterministic token-hash vectors with no network
// dependency. Quality is far below a real model; it exists so tests and
// offline development exercise the full pipeline, and so degraded
// environments still get stable, non-random similarity.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a hashing provider with the given dimensionality.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashProvider{dimensions: dimensions}
}

// Embed maps each lowercased token into a bucket via FNV-1a and L2
// normalizes the resulting counts. Identical input always yields the
// identical vector.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)

	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%p.dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec, nil
}

// EmbedBatch embeds each text independently.
func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

// Name returns the provider name.
func (p *HashProvider) Name() string {
	return "hash"
}
