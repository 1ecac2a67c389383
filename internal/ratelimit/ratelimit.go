// Package ratelimit implements the in-process per-client token bucket
// spec.md §5 describes: a single-writer limiter keyed by client id, active
// only when RATE_LIMIT_BACKEND=internal. When the backend is "external",
// Allow always returns true and enforcement is delegated to infrastructure
// outside the process.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config holds the sustained rate and burst size for one client bucket.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

// Limiter tracks one token bucket per client id, created lazily on first
// use and never removed (bounded by the number of distinct client ids a
// process sees, which is small relative to its lifetime).
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	cfg      Config
	disabled bool
}

// New builds a Limiter. backend should be the RATE_LIMIT_BACKEND config
// value; any value other than "internal" disables enforcement here.
func New(backend string, cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	return &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		cfg:      cfg,
		disabled: backend != "internal",
	}
}

// Allow reports whether clientID may make a request right now, consuming
// a token if so.
func (l *Limiter) Allow(clientID string) bool {
	if l.disabled {
		return true
	}
	return l.bucketFor(clientID).Allow()
}

func (l *Limiter) bucketFor(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[clientID]
	if !ok {
		b = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)
		l.buckets[clientID] = b
	}
	return b
}
