package fetch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide fetch counters, labelled by upstream origin.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediarr",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Upstream HTTP requests issued, including retries.",
	}, []string{"origin"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediarr",
		Subsystem: "fetch",
		Name:      "retries_total",
		Help:      "Retried upstream requests by failure kind.",
	}, []string{"origin", "kind"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediarr",
		Subsystem: "fetch",
		Name:      "rate_limited_total",
		Help:      "Upstream 429 responses observed.",
	}, []string{"origin"})
)

// Stats accumulates per-run request counters. A run hands one Stats to its
// client and reads it back for the run report; the prometheus counters
// above track the same events process-wide.
type Stats struct {
	mu          sync.Mutex
	requests    int64
	retries     int64
	retryByKind map[Kind]int64
	rateLimited int64
}

// NewStats creates an empty per-run recorder.
func NewStats() *Stats {
	return &Stats{retryByKind: make(map[Kind]int64)}
}

func (s *Stats) recordRequest() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()
}

func (s *Stats) recordRetry(kind Kind) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.retries++
	s.retryByKind[kind]++
	if kind == KindRateLimited {
		s.rateLimited++
	}
	s.mu.Unlock()
}

// Requests returns the number of requests issued, including retries.
func (s *Stats) Requests() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Retries returns the number of retried requests.
func (s *Stats) Retries() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// RateLimited returns the number of 429 responses observed.
func (s *Stats) RateLimited() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimited
}

// RetryByKind returns a copy of the per-kind retry counters.
func (s *Stats) RetryByKind() map[Kind]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Kind]int64, len(s.retryByKind))
	for k, v := range s.retryByKind {
		out[k] = v
	}
	return out
}
