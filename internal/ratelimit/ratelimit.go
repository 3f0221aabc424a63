// Package ratelimit implements a keyed token bucket rate limiter.
// Keys are principal IDs for API calls and phone numbers for OTP sends.
// Tokens are refilled lazily on each Allow call; there is no background goroutine.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key has exhausted its token bucket.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config configures the token bucket rate limiter.
type Config struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"` // 0 = unlimited
	BurstSize         int `yaml:"burst_size" json:"burst_size"`                   // 0 = RequestsPerMinute
}

// Limiter gives every key an independent bucket; one key cannot exhaust
// another's quota.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
	calls   int
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// sweepEvery is the number of Allow calls between removals of full buckets.
const sweepEvery = 1024

// NewLimiter creates a rate limiter with the given configuration.
func NewLimiter(cfg Config) *Limiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(cfg.RequestsPerMinute) / 60.0,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// NewWindowLimiter allows n events per window for each key, all of which
// may be spent at once.
func NewWindowLimiter(n int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		burst:   float64(n),
		now:     time.Now,
	}
	if n > 0 && window > 0 {
		l.rate = float64(n) / window.Seconds()
	}
	if l.burst < 1 {
		l.burst = 1
	}
	return l
}

// Allow consumes one token for key, or returns ErrRateLimited.
func (l *Limiter) Allow(key string) error {
	if l.rate <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastFill: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastFill = now

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	if b.tokens < 1 {
		return ErrRateLimited
	}
	b.tokens--
	return nil
}

// sweep drops buckets that would be full by now; they are indistinguishable
// from a fresh bucket.
func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if b.tokens+now.Sub(b.lastFill).Seconds()*l.rate >= l.burst {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
