// Package store provides persistence backends for long-term memory and
// session state: a SQLite-backed store and a volatile in-memory store.
//
// Stored values are opaque JSON blobs. A value carrying an "embedding" field
// is additionally indexed for semantic queries; similarity is computed Go-side
// with cosine over the deserialized vectors.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"parley/internal/logging"
	"parley/internal/semantic"
	"parley/internal/types"
)

// embeddedValue is the slice of a stored value the backend understands.
type embeddedValue struct {
	Embedding []float32 `json:"embedding"`
}

// =============================================================================
// SQLITE BACKEND
// =============================================================================

// SQLiteBackend persists key/value records in a single SQLite table, with the
// embedding column populated when the value declares one.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (creating if necessary) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		embedding  TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_records_embedding ON records(key) WHERE embedding IS NOT NULL;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Store("SQLite backend opened: %s", path)
	return &SQLiteBackend{db: db, path: path}, nil
}

// Save upserts a record. The value's embedding field, if present and
// non-empty, is mirrored into the indexed column for Query.
func (b *SQLiteBackend) Save(ctx context.Context, key string, value []byte) error {
	var embeddingJSON sql.NullString
	var ev embeddedValue
	if err := json.Unmarshal(value, &ev); err == nil && len(ev.Embedding) > 0 {
		data, err := json.Marshal(ev.Embedding)
		if err == nil {
			embeddingJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err := b.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO records (key, value, embedding, created_at) VALUES (?, ?, ?, ?)",
		key, string(value), embeddingJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save record %q: %w", key, err)
	}
	logging.StoreDebug("Saved record %q (%d bytes, embedded=%v)", key, len(value), embeddingJSON.Valid)
	return nil
}

// Load fetches one record by key. A missing key is an error.
func (b *SQLiteBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := b.db.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %q not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %q: %w", key, err)
	}
	return []byte(value), nil
}

// Query ranks embedded records by cosine similarity to the given vector and
// returns the topK. Records without embeddings never rank.
func (b *SQLiteBackend) Query(ctx context.Context, embedding []float32, topK int) ([]types.QueryMatch, error) {
	if topK <= 0 {
		topK = 5
	}

	rows, err := b.db.QueryContext(ctx, "SELECT key, value, embedding FROM records WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var matches []types.QueryMatch
	for rows.Next() {
		var key, value, embeddingJSON string
		if err := rows.Scan(&key, &value, &embeddingJSON); err != nil {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			continue
		}
		cos, err := semantic.CosineSimilarity(embedding, vec)
		if err != nil {
			continue
		}
		matches = append(matches, types.QueryMatch{
			Key:        key,
			Value:      []byte(value),
			Similarity: semantic.SimilarityScore(cos),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	logging.StoreDebug("Query returned %d/%d matches", len(matches), topK)
	return matches, nil
}

// Close closes the underlying database.
func (b *SQLiteBackend) Close() error {
	logging.Store("Closing SQLite backend: %s", b.path)
	return b.db.Close()
}
