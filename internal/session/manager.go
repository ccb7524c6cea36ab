package session

import (
	"context"
	"sync"
	"time"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/memory"
	"parley/internal/semantic"
	"parley/internal/types"
)

// Manager is the session registry. It creates sessions on demand, sweeps
// idle ones on a timer, and flushes state on close.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	memCfg  config.MemoryConfig
	matcher *semantic.Matcher
	backend types.PersistenceBackend

	idleTimeout   time.Duration
	sweepInterval time.Duration
	stop          chan struct{}
	wg            sync.WaitGroup
}

// NewManager creates the registry and starts the idle sweeper. Call Stop to
// shut it down.
func NewManager(cfg *config.Config, matcher *semantic.Matcher, backend types.PersistenceBackend) *Manager {
	m := &Manager{
		sessions:      make(map[string]*Session),
		memCfg:        cfg.Memory,
		matcher:       matcher,
		backend:       backend,
		idleTimeout:   cfg.GetIdleTimeout(),
		sweepInterval: cfg.GetSweepInterval(),
		stop:          make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	logging.Session("Session manager started: idle_timeout=%v sweep_interval=%v", m.idleTimeout, m.sweepInterval)
	return m
}

// GetOrCreate returns the session for id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := &Session{
		ID:         id,
		memory:     memory.New(m.memCfg, m.matcher, m.backend),
		backend:    m.backend,
		lastActive: time.Now(),
	}
	m.sessions[id] = s
	logging.Session("Session created: %s", id)
	return s
}

// Get returns the session for id if it exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close flushes and removes one session. Closing an unknown id is a no-op.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.close(ctx)
}

// Stop shuts down the sweeper and closes every live session.
func (m *Manager) Stop(ctx context.Context) {
	close(m.stop)
	m.wg.Wait()

	m.mu.Lock()
	remaining := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		remaining = append(remaining, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range remaining {
		if err := s.close(ctx); err != nil {
			logging.Get(logging.CategorySession).Warn("Close failed for %s: %v", s.ID, err)
		}
	}
	logging.Session("Session manager stopped, %d sessions flushed", len(remaining))
}

// sweepLoop closes sessions idle past the timeout.
func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepIdle()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweepIdle() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.close(ctx); err != nil {
			logging.Get(logging.CategorySession).Warn("Idle close failed for %s: %v", s.ID, err)
		}
		cancel()
	}
	if len(idle) > 0 {
		logging.Session("Swept %d idle session(s)", len(idle))
	}
}
