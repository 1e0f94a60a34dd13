// Package ratelimit implements token bucket admission control for crawl
// submissions, one bucket per principal.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	SubmitsPerMinute float64
	Burst            int
}

// Limiter gates crawl submissions per principal. It implements
// feed.AdmissionPolicy.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// New creates a new Limiter. A non-positive rate disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.SubmitsPerMinute / 60)
	if cfg.SubmitsPerMinute <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

// AllowSubmit reports whether the principal may submit another crawl right
// now. Unlike a blocking Wait, submissions over budget are rejected outright
// so the HTTP layer can answer 429 immediately.
func (l *Limiter) AllowSubmit(principal string) bool {
	if principal == "" {
		principal = "anonymous"
	}
	l.mu.Lock()
	limiter, exists := l.limiters[principal]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[principal] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
