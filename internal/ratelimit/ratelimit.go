// Package ratelimit throttles calls to upstream lookup sources with a
// per-source token bucket. Buckets refill lazily on access — one token
// per elapsed period, capped at capacity — so no background goroutine
// runs and tests drive time through an injected clock.
//
// All buckets share one coarse lock. Operations are O(1) and
// non-blocking, so contention stays negligible.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a TryAcquire call.
type Decision struct {
	Allowed    bool
	Remaining  int           // tokens left after a successful acquire
	Available  int           // tokens available at decision time
	RetryAfter time.Duration // wait until n tokens will be available; 0 when allowed
	NextRefill time.Time     // when the next token arrives
}

type bucket struct {
	capacity   int
	tokens     int
	lastRefill time.Time
}

// refill advances the bucket to now, adding one token per whole period
// elapsed since the last refill.
func (b *bucket) refill(now time.Time, period time.Duration) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < period {
		return
	}
	n := int(elapsed / period)
	b.tokens += n
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(n) * period)
}

// Limiter is a per-source token bucket map guarded by a single lock.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	period   time.Duration
	now      func() time.Time
}

// New creates a Limiter whose buckets hold capacity tokens and gain one
// token per period.
func New(capacity int, period time.Duration) *Limiter {
	return NewWithClock(capacity, period, time.Now)
}

// NewWithClock creates a Limiter driven by the given clock.
func NewWithClock(capacity int, period time.Duration, now func() time.Time) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		period:   period,
		now:      now,
	}
}

// TryAcquire attempts to take n tokens from source's bucket. A new
// source starts with a full bucket. The call never blocks; a denied
// acquire reports how long to wait in Decision.RetryAfter.
func (l *Limiter) TryAcquire(source string, n int) Decision {
	if n <= 0 {
		n = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[source]
	if !ok {
		b = &bucket{capacity: l.capacity, tokens: l.capacity, lastRefill: now}
		l.buckets[source] = b
	}
	b.refill(now, l.period)

	nextRefill := b.lastRefill.Add(l.period)

	if b.tokens >= n {
		b.tokens -= n
		return Decision{
			Allowed:    true,
			Remaining:  b.tokens,
			Available:  b.tokens,
			NextRefill: nextRefill,
		}
	}

	missing := n - b.tokens
	retryAfter := nextRefill.Sub(now) + time.Duration(missing-1)*l.period
	return Decision{
		Allowed:    false,
		Available:  b.tokens,
		RetryAfter: retryAfter,
		NextRefill: nextRefill,
	}
}

// Reset drops the bucket for source; the next acquire starts full.
func (l *Limiter) Reset(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, source)
}

// ResetAll drops every bucket.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}
