// Package ratelimit implements token bucket rate limiting keyed by source type.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/content-harvester/internal/metrics"
)

// Limiter manages one token bucket per key.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	overrides    map[string]Rate
}

// Rate is a per-key override.
type Rate struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Config holds rate limiter configuration.
type Config struct {
	DefaultRPS   float64         `mapstructure:"default_rps"`
	DefaultBurst int             `mapstructure:"default_burst"`
	PerKey       map[string]Rate `mapstructure:"per_source"`
}

// New creates a new Limiter. A non-positive rate means unlimited.
func New(cfg Config) *Limiter {
	overrides := make(map[string]Rate, len(cfg.PerKey))
	for k, v := range cfg.PerKey {
		overrides[k] = v
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  toLimit(cfg.DefaultRPS),
		defaultBurst: toBurst(cfg.DefaultBurst),
		overrides:    overrides,
	}
}

// Wait blocks until a token is available for key, respecting the context.
// A wait that would outlast the context deadline fails at once with an error
// wrapping context.DeadlineExceeded.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	limiter := l.get(key)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rate limit wait: %w", ctxErr)
		}
		// rate reports a wait past the deadline with an unwrapped error.
		if _, ok := ctx.Deadline(); ok {
			return fmt.Errorf("rate limit wait: %v: %w", err, context.DeadlineExceeded)
		}
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// Tokens that were immediately available are not a delay.
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(key, d)
	}
	return nil
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[key]
	if ok {
		return limiter
	}
	r, b := l.defaultRate, l.defaultBurst
	if o, ok := l.overrides[key]; ok {
		r, b = toLimit(o.RPS), toBurst(o.Burst)
	}
	limiter = rate.NewLimiter(r, b)
	l.limiters[key] = limiter
	return limiter
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func toBurst(burst int) int {
	if burst <= 0 {
		return 1
	}
	return burst
}
