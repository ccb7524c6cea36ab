package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/logging"
	"parley/internal/semantic"
	"parley/internal/types"
)

// LongTermMemory is an append-only semantic store. Entries are embedded on
// store and pruned only by explicit, caller-invoked policy — there is no
// silent eviction. An optional persistence backend mirrors every entry as a
// durable archive: pruning governs the in-memory working set only and never
// deletes mirrored records.
type LongTermMemory struct {
	mu      sync.RWMutex
	matcher *semantic.Matcher
	backend types.PersistenceBackend // may be nil (in-memory only)
	entries []types.MemoryEntry
}

// NewLongTermMemory creates a long-term store over the given matcher.
// A nil backend keeps entries in memory only.
func NewLongTermMemory(matcher *semantic.Matcher, backend types.PersistenceBackend) *LongTermMemory {
	return &LongTermMemory{
		matcher: matcher,
		backend: backend,
	}
}

// Store embeds content and appends an entry. Embedding degradation is not
// an error: the entry is stored without a vector and simply will not rank
// in semantic search.
func (m *LongTermMemory) Store(ctx context.Context, entryType, content string, metadata map[string]string) (types.MemoryEntry, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "LongTermMemory.Store")
	defer timer.Stop()

	embedding, degraded := m.matcher.Embed(ctx, content)
	if degraded {
		logging.Get(logging.CategoryMemory).Warn("Storing long-term entry without embedding (provider degraded)")
	}

	entry := types.MemoryEntry{
		ID:        uuid.NewString(),
		Type:      entryType,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.entries = append(m.entries, entry)
	m.mu.Unlock()

	if m.backend != nil {
		value, err := json.Marshal(entry)
		if err == nil {
			if err := m.backend.Save(ctx, "ltm/"+entry.ID, value); err != nil {
				logging.Get(logging.CategoryMemory).Warn("Backend save failed for entry %s: %v", entry.ID, err)
			}
		}
	}

	logging.MemoryDebug("Stored long-term entry: type=%s, id=%s", entryType, entry.ID)
	return entry, nil
}

// Search returns the topK entries nearest to query, sorted by similarity
// descending. Degraded embedding yields an empty result plus the flag.
func (m *LongTermMemory) Search(ctx context.Context, query string, topK int) ([]types.MemoryEntry, bool) {
	timer := logging.StartTimer(logging.CategoryMemory, "LongTermMemory.Search")
	defer timer.Stop()

	if topK <= 0 {
		topK = 5
	}

	queryVec, degraded := m.matcher.Embed(ctx, query)
	if degraded {
		return nil, true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]types.MemoryEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		if len(entry.Embedding) == 0 {
			continue
		}
		cos, err := semantic.CosineSimilarity(queryVec, entry.Embedding)
		if err != nil {
			continue
		}
		entry.Similarity = semantic.SimilarityScore(cos)
		scored = append(scored, entry)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	logging.MemoryDebug("Long-term search: %d results for topK=%d", len(scored), topK)
	return scored, false
}

// PruneByAge removes entries older than maxAge from the working set and
// returns the removed count. Mirrored backend records are retained.
func (m *LongTermMemory) PruneByAge(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	kept := m.entries[:0]
	removed := 0
	for _, entry := range m.entries {
		if entry.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept

	logging.Memory("Pruned %d long-term entries older than %v", removed, maxAge)
	return removed
}

// PruneByCount trims the working set down to maxCount entries. With a
// non-empty relevance query the most relevant entries are kept; otherwise
// the most recent win. Mirrored backend records are retained.
func (m *LongTermMemory) PruneByCount(ctx context.Context, maxCount int, relevanceQuery string) int {
	if maxCount < 0 {
		maxCount = 0
	}

	// Embed outside the lock; only the rank-and-merge below must be atomic
	// with respect to concurrent Store calls.
	var queryVec []float32
	degraded := true
	if relevanceQuery != "" {
		queryVec, degraded = m.matcher.Embed(ctx, relevanceQuery)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) <= maxCount {
		return 0
	}

	type ranked struct {
		entry types.MemoryEntry
		score float64
	}
	rankedEntries := make([]ranked, len(m.entries))
	for i, entry := range m.entries {
		score := float64(entry.CreatedAt.UnixNano()) // recency fallback
		if !degraded && len(entry.Embedding) > 0 {
			if cos, err := semantic.CosineSimilarity(queryVec, entry.Embedding); err == nil {
				score = semantic.SimilarityScore(cos)
			}
		}
		rankedEntries[i] = ranked{entry: entry, score: score}
	}

	sort.SliceStable(rankedEntries, func(i, j int) bool {
		return rankedEntries[i].score > rankedEntries[j].score
	})

	kept := make([]types.MemoryEntry, 0, maxCount)
	for i := 0; i < maxCount; i++ {
		kept = append(kept, rankedEntries[i].entry)
	}
	// Restore chronological order; the store is append-only by contract.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})

	removed := len(m.entries) - len(kept)
	m.entries = kept

	logging.Memory("Pruned %d long-term entries (maxCount=%d, relevant=%v)", removed, maxCount, !degraded)
	return removed
}

// Len returns the number of stored entries.
func (m *LongTermMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
