package semantic

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/types"
)

// ErrEmbeddingUnavailable marks degraded similarity results. It is absorbed
// by callers (score 0 + degraded flag), never propagated as a failure.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Match is one ranked similarity result.
type Match struct {
	Text  string
	Index int // position in the candidate list
	Score float64
}

// =============================================================================
// MATCHER
// =============================================================================

// Matcher provides similarity and nearest-neighbor search over an embedding
// provider. Embeddings are cached by exact string with a bounded cap, so
// identical inputs always yield identical, deterministic scores.
//
// Degraded mode: a nil provider, a provider error, or a timeout makes every
// similarity call return 0.0 with the degraded flag raised. Callers keep
// going; nothing blocks on the provider.
type Matcher struct {
	mu       sync.Mutex
	provider types.EmbeddingProvider
	timeout  time.Duration

	cache      map[string][]float32
	cacheOrder []string // insertion order, evicted oldest-first
	cacheCap   int
}

// NewMatcher creates a matcher over the given provider. A nil provider is
// allowed and produces a permanently degraded matcher.
func NewMatcher(provider types.EmbeddingProvider, cfg config.EmbeddingConfig) *Matcher {
	timeout := 5 * time.Second
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}

	m := &Matcher{
		provider: provider,
		timeout:  timeout,
		cache:    make(map[string][]float32),
		cacheCap: cfg.CacheSize,
	}

	if provider == nil {
		logging.Semantic("Matcher created without provider (permanently degraded)")
	} else {
		logging.SemanticDebug("Matcher created: provider=%s, timeout=%v, cache_cap=%d",
			provider.Name(), timeout, m.cacheCap)
	}

	return m
}

// Embed returns the (cached) embedding for text. The boolean is the
// degraded flag; when true the vector is nil.
func (m *Matcher) Embed(ctx context.Context, text string) ([]float32, bool) {
	m.mu.Lock()
	if vec, ok := m.cache[text]; ok {
		m.mu.Unlock()
		return vec, false
	}
	provider := m.provider
	m.mu.Unlock()

	if provider == nil {
		return nil, true
	}

	embedCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	vec, err := provider.Embed(embedCtx, text)
	if err != nil {
		logging.Get(logging.CategorySemantic).Warn("Embed failed, degrading: %v", err)
		return nil, true
	}

	m.mu.Lock()
	m.cachePut(text, vec)
	m.mu.Unlock()

	return vec, false
}

// cachePut inserts with oldest-insertion eviction. Caller holds mu.
func (m *Matcher) cachePut(text string, vec []float32) {
	if _, exists := m.cache[text]; exists {
		return
	}
	if m.cacheCap > 0 && len(m.cache) >= m.cacheCap {
		oldest := m.cacheOrder[0]
		m.cacheOrder = m.cacheOrder[1:]
		delete(m.cache, oldest)
	}
	m.cache[text] = vec
	m.cacheOrder = append(m.cacheOrder, text)
}

// Similarity returns a symmetric similarity score in [0,1] for two texts,
// plus the degraded flag. Identical inputs always score 1.0.
func (m *Matcher) Similarity(ctx context.Context, a, b string) (float64, bool) {
	if a == b {
		return 1.0, false
	}

	vecA, degraded := m.Embed(ctx, a)
	if degraded {
		return 0, true
	}
	vecB, degraded := m.Embed(ctx, b)
	if degraded {
		return 0, true
	}

	cos, err := CosineSimilarity(vecA, vecB)
	if err != nil {
		logging.Get(logging.CategorySemantic).Warn("Similarity failed, degrading: %v", err)
		return 0, true
	}
	return SimilarityScore(cos), false
}

// MostSimilar ranks candidates by similarity to query, dropping scores below
// threshold. Results are sorted by score descending; equal scores keep
// candidate declaration order. The boolean is the degraded flag — when true
// the result list is empty.
func (m *Matcher) MostSimilar(ctx context.Context, query string, candidates []string, threshold float64) ([]Match, bool) {
	timer := logging.StartTimer(logging.CategorySemantic, "MostSimilar")
	defer timer.Stop()

	if len(candidates) == 0 {
		return nil, false
	}

	queryVec, degraded := m.Embed(ctx, query)
	if degraded {
		return nil, true
	}

	matches := make([]Match, 0, len(candidates))
	for i, candidate := range candidates {
		vec, degraded := m.Embed(ctx, candidate)
		if degraded {
			return nil, true
		}
		cos, err := CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		score := SimilarityScore(cos)
		if score >= threshold {
			matches = append(matches, Match{Text: candidate, Index: i, Score: score})
		}
	}

	// Stable sort: declaration order breaks ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	logging.SemanticDebug("MostSimilar: %d/%d candidates above threshold %.2f",
		len(matches), len(candidates), threshold)

	return matches, false
}

// Search is nearest-neighbor lookup over a document corpus: the MostSimilar
// operation with no threshold, truncated to topK.
func (m *Matcher) Search(ctx context.Context, query string, documents []string, topK int) ([]Match, bool) {
	if topK <= 0 {
		topK = 10
	}

	matches, degraded := m.MostSimilar(ctx, query, documents, 0)
	if degraded {
		return nil, true
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, false
}

// CacheLen reports the number of cached embeddings.
func (m *Matcher) CacheLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}
