// Package ratelimit paces page fetches with one token bucket per host.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/metrics"
)

// Config holds rate limiter configuration. A non-positive DefaultRPS disables pacing.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// Limiter hands out per-host buckets lazily; discovery and tag pages share the www host.
type Limiter struct {
	every rate.Limit
	burst int

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	l := &Limiter{every: rate.Inf, burst: max(cfg.DefaultBurst, 1), hosts: make(map[string]*rate.Limiter)}
	if cfg.DefaultRPS > 0 {
		l.every = rate.Limit(cfg.DefaultRPS)
	}
	return l
}

// Wait blocks until rawURL's host may be fetched or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := metrics.SanitizeHost(rawURL)
	bucket := l.bucket(host)

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.hosts[host]
	if !ok {
		b = rate.NewLimiter(l.every, l.burst)
		l.hosts[host] = b
	}
	return b
}
