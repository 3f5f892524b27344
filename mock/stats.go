package mock

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts calls per operation, keyed by method and path template.
// The same counts are exported to prometheus.
type Stats struct {
	mu     sync.Mutex
	counts map[string]int64

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewStats creates counters on a registry of their own, so several mock
// servers can live in one process.
func NewStats() *Stats {
	s := &Stats{
		counts:   map[string]int64{},
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mock",
				Name:      "requests_total",
				Help:      "Requests answered per operation of the generated service",
			},
			[]string{"method", "route"},
		),
	}
	s.registry.MustRegister(s.requests)
	return s
}

func statsKey(method, route string) string { return method + " " + route }

// Increment records one call.
func (s *Stats) Increment(method, route string) {
	s.mu.Lock()
	s.counts[statsKey(method, route)]++
	s.mu.Unlock()

	s.requests.WithLabelValues(method, route).Inc()
}

// Count returns the calls recorded for one operation.
func (s *Stats) Count(method, route string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[statsKey(method, route)]
}

// Counts returns a copy of every count.
func (s *Stats) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Reset clears every count, including the exported ones.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.counts = map[string]int64{}
	s.mu.Unlock()

	s.requests.Reset()
}
