package gogoblin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a minimal interface implemented by rate limiters.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimitedTransport wraps a RoundTripper with a limiter.
type RateLimitedTransport struct {
	Limiter Limiter
	Base    http.RoundTripper
}

// RoundTrip waits for the limiter before delegating to the base transport.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base().RoundTrip(req)
}

func (t *RateLimitedTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

type rateLimitConfig struct {
	rate  float64
	burst int
}

var (
	defaultLimiterRegistry = newLimiterRegistry()
	rateLimitConfigs       = map[string]rateLimitConfig{
		solanaMainnetHost: {rate: 4, burst: 4},
		heliusRPCHost:     {rate: 9, burst: 9},
		heliusAPIHost:     {rate: 9, burst: 9},
	}
)

// limiterRegistry shares one limiter per upstream host and limit so
// concurrent per-address fetches draw from the same budget.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]Limiter
}

func newLimiterRegistry() *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]Limiter),
	}
}

func (r *limiterRegistry) get(key string, factory func() Limiter) Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, ok := r.limiters[key]; ok {
		return limiter
	}
	limiter := factory()
	if limiter != nil {
		r.limiters[key] = limiter
	}
	return limiter
}

// limiterForEndpoint returns the shared limiter for the endpoint host and its
// effective limits. A positive override replaces the built-in table entry;
// hosts missing from the table are not limited unless overridden.
func limiterForEndpoint(endpoint string, override rateLimitConfig) Limiter {
	host := hostFromEndpoint(endpoint)
	if host == "" {
		return nil
	}
	cfg, ok := rateLimitConfigs[host]
	if override.rate > 0 {
		cfg, ok = override, true
		if cfg.burst <= 0 {
			cfg.burst = max(int(cfg.rate), 1)
		}
	}
	if !ok {
		return nil
	}
	key := fmt.Sprintf("%s@%g/%d", host, cfg.rate, cfg.burst)
	return defaultLimiterRegistry.get(key, func() Limiter {
		return rate.NewLimiter(rate.Limit(cfg.rate), cfg.burst)
	})
}

func hostFromEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
