package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"parley/internal/config"
	"parley/internal/memory"
	"parley/internal/semantic"
	"parley/internal/store"
	"parley/internal/types"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Session.IdleTimeout = "50ms"
	cfg.Session.SweepInterval = "10ms"
	return cfg
}

func testManager(backend types.PersistenceBackend) *Manager {
	matcher := semantic.NewMatcher(semantic.NewHashProvider(64), config.EmbeddingConfig{Timeout: "1s", CacheSize: 256})
	return NewManager(testConfig(), matcher, backend)
}

func TestManagerStopsCleanly(t *testing.T) {
	// go.opencensus.io starts a background worker in its package init
	// (pulled in transitively); it is unrelated to the Manager.
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	m := testManager(nil)
	m.GetOrCreate("s1")
	m.Stop(context.Background())

	if m.Len() != 0 {
		t.Errorf("sessions remain after Stop: %d", m.Len())
	}
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	m := testManager(nil)
	defer m.Stop(context.Background())

	a := m.GetOrCreate("s1")
	b := m.GetOrCreate("s1")
	if a != b {
		t.Error("same id must return the same session")
	}
	if m.Len() != 1 {
		t.Errorf("session count = %d, want 1", m.Len())
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	m := testManager(nil)
	defer m.Stop(context.Background())

	a := m.GetOrCreate("s1")
	b := m.GetOrCreate("s2")

	a.Do(func(mem *memory.ContextualMemory) error {
		mem.Preferences.Learn("locale", "units", "metric")
		return nil
	})

	if _, ok := b.Memory().Preferences.Get("locale", "units"); ok {
		t.Error("preference leaked across sessions")
	}
}

func TestTurnsAreSerializedPerSession(t *testing.T) {
	m := testManager(nil)
	defer m.Stop(context.Background())

	s := m.GetOrCreate("s1")
	var inFlight, maxInFlight int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Do(func(*memory.ContextualMemory) error {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("max in-flight turns = %d, want 1 (sequential per session)", maxInFlight)
	}
}

func TestIdleSessionsAreSwept(t *testing.T) {
	m := testManager(nil)
	defer m.Stop(context.Background())

	m.GetOrCreate("s1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("idle session was not swept")
}

func TestCloseFlushesPreferencesAndSummary(t *testing.T) {
	backend := store.NewMemoryBackend()
	m := testManager(backend)
	defer m.Stop(context.Background())

	s := m.GetOrCreate("s1")
	s.Do(func(mem *memory.ContextualMemory) error {
		mem.Preferences.Learn("locale", "units", "metric")
		mem.ShortTerm.Add(types.Turn{
			ID:     "t1",
			Intent: types.Intent{Category: types.CategoryWeather},
		})
		return nil
	})

	if err := m.Close(context.Background(), "s1"); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := backend.Load(context.Background(), "session/s1/preferences")
	if err != nil {
		t.Fatalf("preferences not flushed: %v", err)
	}
	var prefs []types.Preference
	if err := json.Unmarshal(data, &prefs); err != nil || len(prefs) != 1 {
		t.Errorf("flushed preferences = %s", data)
	}

	if _, err := backend.Load(context.Background(), "session/s1/summary"); err != nil {
		t.Errorf("summary not flushed: %v", err)
	}
}

func TestClosedSessionRejectsTurns(t *testing.T) {
	m := testManager(nil)
	defer m.Stop(context.Background())

	s := m.GetOrCreate("s1")
	if err := m.Close(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}

	err := s.Do(func(*memory.ContextualMemory) error { return nil })
	if err == nil {
		t.Error("closed session must reject turns")
	}
}

func TestCloseUnknownSessionIsNoOp(t *testing.T) {
	m := testManager(nil)
	defer m.Stop(context.Background())

	if err := m.Close(context.Background(), "ghost"); err != nil {
		t.Errorf("closing unknown session should be a no-op, got %v", err)
	}
}
