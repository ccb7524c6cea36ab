package types

import "context"

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================
// The core consumes these at its edges; concrete API integrations, storage
// engines and embedding services live outside this module.

// Handler processes routed intents. Handlers are invoked strictly in
// registration order; the first CanHandle()==true wins.
type Handler interface {
	// Name identifies the handler in RouteResult and metrics.
	Name() string

	// CanHandle reports whether this handler wants the intent.
	CanHandle(intent Intent, actx AdaptiveContext) bool

	// Handle processes the intent. Errors (and panics) are treated as
	// "cannot handle" and fall through the chain.
	Handle(ctx context.Context, intent Intent, entities map[string]Entity, actx AdaptiveContext) (string, error)
}

// QueryMatch is one persistence-backend nearest-neighbor result.
type QueryMatch struct {
	Key        string
	Value      []byte
	Similarity float64
}

// PersistenceBackend is the storage contract the core consumes. Values are
// opaque bytes; backends that support vector search index any embedding
// found inside the stored value.
type PersistenceBackend interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryMatch, error)
	Close() error
}

// EmbeddingProvider turns text into vectors. Implementations must be safe
// for concurrent use.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}
