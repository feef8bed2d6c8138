package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket rate limiter shared by the enrichment workers.
// It wraps x/time/rate with the service's (rps, burst) vocabulary.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst. Non-positive values fall back to a 5 rps / burst 10 bucket.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 5
	}
	if burst < 1 {
		burst = 10
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}

// Allow reports whether a token is immediately available, consuming it.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.rl.Allow()
}

// Pacer spaces calls at a fixed minimum interval. Unlike Limiter it has no
// burst: the next permissible instant advances by exactly 1/rps per call,
// which keeps single-threaded ingest paths smooth.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewPacer creates a pacer for the given calls-per-second rate.
func NewPacer(rps float64) *Pacer {
	if rps <= 0 {
		rps = 1
	}
	return &Pacer{interval: time.Duration(float64(time.Second) / rps)}
}

// Wait sleeps until the next slot, then claims it.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
