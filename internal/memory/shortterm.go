// Package memory implements contextual memory for parley: the short-term
// turn buffer, the embedding-backed long-term store, and learned user
// preferences. One instance is owned by one session; sessions never share
// mutable memory.
package memory

import (
	"sync"

	"parley/internal/logging"
	"parley/internal/types"
)

// ShortTermMemory is a fixed-capacity FIFO buffer of recent turns. The
// buffer never exceeds its capacity; adding to a full buffer evicts the
// oldest turn.
type ShortTermMemory struct {
	mu       sync.RWMutex
	capacity int
	turns    []types.Turn
}

// NewShortTermMemory creates a buffer holding at most capacity turns.
func NewShortTermMemory(capacity int) *ShortTermMemory {
	if capacity <= 0 {
		capacity = 10
	}
	return &ShortTermMemory{
		capacity: capacity,
		turns:    make([]types.Turn, 0, capacity),
	}
}

// Add appends a turn, evicting the oldest when full. Amortized O(1).
func (m *ShortTermMemory) Add(turn types.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == m.capacity {
		copy(m.turns, m.turns[1:])
		m.turns = m.turns[:m.capacity-1]
	}
	m.turns = append(m.turns, turn)

	logging.MemoryDebug("Short-term buffer: %d/%d turns", len(m.turns), m.capacity)
}

// Recent returns up to n most recent turns, oldest first.
func (m *ShortTermMemory) Recent(n int) []types.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.turns) {
		n = len(m.turns)
	}
	out := make([]types.Turn, n)
	copy(out, m.turns[len(m.turns)-n:])
	return out
}

// Last returns the most recent turn, if any.
func (m *ShortTermMemory) Last() (types.Turn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.turns) == 0 {
		return types.Turn{}, false
	}
	return m.turns[len(m.turns)-1], true
}

// Len returns the current buffer length.
func (m *ShortTermMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Capacity returns the fixed capacity N.
func (m *ShortTermMemory) Capacity() int {
	return m.capacity
}

// IsTopicContinuation reports whether the last turn's intent category
// equals the candidate category.
func (m *ShortTermMemory) IsTopicContinuation(candidate types.IntentCategory) bool {
	last, ok := m.Last()
	if !ok {
		return false
	}
	return last.Intent.Category == candidate && candidate != types.CategoryUnknown
}
