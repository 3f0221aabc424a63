package ratelimit

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.now
	return l, clock
}

func TestAllow_BurstThenLimited(t *testing.T) {
	l, _ := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 3})
	for i := 0; i < 3; i++ {
		if err := l.Allow("p1"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if err := l.Allow("p1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestAllow_RefillsOverTime(t *testing.T) {
	l, clock := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})
	if err := l.Allow("p1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("p1"); err == nil {
		t.Fatal("expected limit")
	}
	clock.advance(time.Second)
	if err := l.Allow("p1"); err != nil {
		t.Fatalf("after refill: %v", err)
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(Config{RequestsPerMinute: 1, BurstSize: 1})
	if err := l.Allow("+15550001"); err != nil {
		t.Fatal(err)
	}
	if err := l.Allow("+15550002"); err != nil {
		t.Errorf("second key limited by first: %v", err)
	}
}

func TestAllow_Unlimited(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 100; i++ {
		if err := l.Allow("p"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSweepDropsFullBuckets(t *testing.T) {
	l, clock := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})
	_ = l.Allow("idle")
	clock.advance(time.Minute)
	l.mu.Lock()
	l.sweep(clock.now())
	l.mu.Unlock()
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestWindowLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewWindowLimiter(5, time.Hour)
	l.now = clock.now
	for i := 0; i < 5; i++ {
		if err := l.Allow("+15550001"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := l.Allow("+15550001"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("sixth send: %v", err)
	}
	clock.advance(12 * time.Minute)
	if err := l.Allow("+15550001"); err != nil {
		t.Fatalf("after one refill interval: %v", err)
	}
}
