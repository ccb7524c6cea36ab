package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"parley/internal/semantic"
	"parley/internal/types"
)

// MemoryBackend is a volatile in-process backend with the same contract as
// the SQLite one. Used in tests and for sessions that opt out of persistence.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	value     []byte
	embedding []float32
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]memoryRecord)}
}

// Save upserts a record, indexing the value's embedding field when present.
func (b *MemoryBackend) Save(_ context.Context, key string, value []byte) error {
	rec := memoryRecord{value: append([]byte(nil), value...)}

	var ev embeddedValue
	if err := json.Unmarshal(value, &ev); err == nil && len(ev.Embedding) > 0 {
		rec.embedding = ev.Embedding
	}

	b.mu.Lock()
	b.records[key] = rec
	b.mu.Unlock()
	return nil
}

// Load fetches one record by key. A missing key is an error.
func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	rec, ok := b.records[key]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("record %q not found", key)
	}
	return append([]byte(nil), rec.value...), nil
}

// Query ranks embedded records by cosine similarity to the given vector.
func (b *MemoryBackend) Query(_ context.Context, embedding []float32, topK int) ([]types.QueryMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var matches []types.QueryMatch
	for key, rec := range b.records {
		if len(rec.embedding) == 0 {
			continue
		}
		cos, err := semantic.CosineSimilarity(embedding, rec.embedding)
		if err != nil {
			continue
		}
		matches = append(matches, types.QueryMatch{
			Key:        key,
			Value:      append([]byte(nil), rec.value...),
			Similarity: semantic.SimilarityScore(cos),
		})
	}

	// Map iteration is unordered; sort by similarity, then key for stability.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Key < matches[j].Key
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored records.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Close is a no-op for the in-memory backend.
func (b *MemoryBackend) Close() error { return nil }
