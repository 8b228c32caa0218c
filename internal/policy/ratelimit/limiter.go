// Package ratelimit implements per-host token buckets for outbound fetches.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/logo-resolver/internal/logo"
	"github.com/JakeFAU/logo-resolver/internal/metrics"
)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	if l.defaultRate == rate.Inf {
		return nil
	}
	host := metrics.SanitizeSite(rawURL)
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}

// Fetcher gates another fetcher behind the limiter.
type Fetcher struct {
	Next    logo.Fetcher
	Limiter *Limiter
}

// Fetch waits for the host's token, then delegates.
func (f *Fetcher) Fetch(ctx context.Context, request logo.FetchRequest) (logo.FetchResponse, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx, request.URL); err != nil {
			return logo.FetchResponse{}, fmt.Errorf("%w: %w", logo.ErrFetch, err)
		}
	}
	resp, err := f.Next.Fetch(ctx, request)
	if err != nil {
		return logo.FetchResponse{}, fmt.Errorf("rate limited fetch: %w", err)
	}
	return resp, nil
}
