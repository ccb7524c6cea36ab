package routing

import (
	"sync"
	"time"
)

// HandlerStats are the per-handler observability counters.
type HandlerStats struct {
	Calls        int64
	Failures     int64
	TotalLatency time.Duration
}

// AvgLatency returns the mean handler latency, zero when never called.
func (s HandlerStats) AvgLatency() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Calls)
}

// Metrics records call counts, failures and latency per handler.
type Metrics struct {
	mu    sync.Mutex
	stats map[string]*HandlerStats
}

// NewMetrics creates an empty metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{stats: make(map[string]*HandlerStats)}
}

// Record adds one handler invocation.
func (m *Metrics) Record(handler string, latency time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[handler]
	if !ok {
		s = &HandlerStats{}
		m.stats[handler] = s
	}
	s.Calls++
	s.TotalLatency += latency
	if failed {
		s.Failures++
	}
}

// Snapshot returns a copy of all handler stats.
func (m *Metrics) Snapshot() map[string]HandlerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]HandlerStats, len(m.stats))
	for name, s := range m.stats {
		out[name] = *s
	}
	return out
}
