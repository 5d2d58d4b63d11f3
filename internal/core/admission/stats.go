package admission

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StatsEvent describes one admission decision.
type StatsEvent struct {
	Endpoint string
	Client   string
	Allowed  bool
	At       time.Time
}

// StatsRecorder persists admission decisions. Recording is best-effort:
// a failure is logged and never changes the decision.
type StatsRecorder interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// Counters holds allowed/denied totals.
type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// StatsSnapshot is a point-in-time copy of in-memory counters.
type StatsSnapshot struct {
	Total      Counters            `json:"total"`
	ByEndpoint map[string]Counters `json:"by_endpoint"`
}

// MemoryStats keeps counters in process memory. Counters are never expired.
type MemoryStats struct {
	mu         sync.Mutex
	total      Counters
	byEndpoint map[string]Counters
}

// NewMemoryStats creates an empty in-memory recorder.
func NewMemoryStats() *MemoryStats {
	return &MemoryStats{byEndpoint: make(map[string]Counters)}
}

// Record implements StatsRecorder.
func (s *MemoryStats) Record(_ context.Context, ev StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byEndpoint[ev.Endpoint]
	if ev.Allowed {
		s.total.Allowed++
		c.Allowed++
	} else {
		s.total.Denied++
		c.Denied++
	}
	s.byEndpoint[ev.Endpoint] = c
	return nil
}

// Snapshot copies the current counters.
func (s *MemoryStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{
		Total:      s.total,
		ByEndpoint: make(map[string]Counters, len(s.byEndpoint)),
	}
	for k, v := range s.byEndpoint {
		out.ByEndpoint[k] = v
	}
	return out
}

// Endpoints lists the endpoint keys seen so far, sorted.
func (s *MemoryStats) Endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.byEndpoint))
	for k := range s.byEndpoint {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
