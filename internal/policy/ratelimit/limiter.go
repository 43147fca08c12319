// Package ratelimit paces upstream requests with one token bucket per host.
//
// The Steam store tolerates a few requests per second while SteamSpy asks
// clients to stay at or below one, so hosts can carry their own rate.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/steam-sentiment/internal/metrics"
)

// unknownHost buckets URLs that do not parse to a hostname.
const unknownHost = "unknown"

// HostLimit overrides the default pacing for one hostname.
type HostLimit struct {
	RPS   float64
	Burst int
}

// Config holds rate limiter configuration. A non-positive RPS disables
// pacing for the hosts it applies to.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// Hosts maps a lowercase hostname to its own limit.
	Hosts map[string]HostLimit
}

// Limiter hands out per-host tokens.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	fallback HostLimit
	hosts    map[string]HostLimit
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	hosts := make(map[string]HostLimit, len(cfg.Hosts))
	for host, limit := range cfg.Hosts {
		hosts[strings.ToLower(host)] = limit
	}
	return &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		fallback: HostLimit{RPS: cfg.DefaultRPS, Burst: cfg.DefaultBurst},
		hosts:    hosts,
	}
}

// Wait blocks until a token is available for the host of rawURL or ctx ends.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := Host(rawURL)
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
	if b, ok := l.buckets[host]; ok {
		return b
	}
	limit, ok := l.hosts[host]
	if !ok {
		limit = l.fallback
	}
	b := newBucket(limit)
	l.buckets[host] = b
	return b
}

func newBucket(limit HostLimit) *rate.Limiter {
	if limit.RPS <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := limit.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limit.RPS), burst)
}

// Host returns the lowercase hostname of rawURL, or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return unknownHost
	}
	return strings.ToLower(u.Hostname())
}
