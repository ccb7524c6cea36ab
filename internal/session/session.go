// Package session owns per-conversation state: each session carries its own
// contextual memory and processes utterances strictly sequentially. Different
// sessions are independent and run concurrently.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"parley/internal/logging"
	"parley/internal/memory"
	"parley/internal/types"
)

// Session is one conversation. The mutex serializes turns: task ordering and
// causally consistent memory updates require it.
type Session struct {
	ID string

	mu         sync.Mutex
	memory     *memory.ContextualMemory
	backend    types.PersistenceBackend // may be nil
	lastActive time.Time
	turns      int
	closed     bool
}

// Do runs fn holding the session's turn lock. Concurrent callers queue; a
// closed session rejects the turn.
func (s *Session) Do(fn func(mem *memory.ContextualMemory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("session %s is closed", s.ID)
	}
	s.lastActive = time.Now()
	s.turns++
	return fn(s.memory)
}

// Memory exposes the session's contextual memory for read paths that manage
// their own ordering.
func (s *Session) Memory() *memory.ContextualMemory {
	return s.memory
}

// LastActive reports when the session last processed a turn.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// close flushes learned preferences and a short conversation summary to the
// backend, then marks the session closed. Caller holds no session lock.
func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.backend == nil {
		return nil
	}

	prefs := s.memory.Preferences.Snapshot()
	if len(prefs) > 0 {
		data, err := json.Marshal(prefs)
		if err == nil {
			if err := s.backend.Save(ctx, "session/"+s.ID+"/preferences", data); err != nil {
				logging.Get(logging.CategorySession).Warn("Preference flush failed for %s: %v", s.ID, err)
			}
		}
	}

	summary := s.summarize()
	if summary != "" {
		data, err := json.Marshal(map[string]string{"summary": summary})
		if err == nil {
			if err := s.backend.Save(ctx, "session/"+s.ID+"/summary", data); err != nil {
				logging.Get(logging.CategorySession).Warn("Summary flush failed for %s: %v", s.ID, err)
			}
		}
	}

	logging.Session("Session %s closed after %d turns", s.ID, s.turns)
	return nil
}

// summarize renders the recent turn categories as a flat trace. Caller holds
// the session lock.
func (s *Session) summarize() string {
	recent := s.memory.ShortTerm.Recent(0)
	if len(recent) == 0 {
		return ""
	}
	parts := make([]string, 0, len(recent))
	for _, turn := range recent {
		parts = append(parts, string(turn.Intent.Category))
	}
	return strings.Join(parts, " -> ")
}
