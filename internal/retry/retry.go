// Package retry wraps fallible collector calls with capped exponential
// backoff and jitter. Only transient error codes are retried;
// everything else returns immediately without consuming attempts.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/safecheck/safecheck/internal/scanerr"
)

// Policy configures retry behaviour. The zero value is not usable;
// call NewPolicy.
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64

	// RetryableErrors lists additional error strings (substring match)
	// treated as retryable beyond the coded transient set.
	RetryableErrors []string

	sleep func(context.Context, time.Duration) error
}

// NewPolicy returns a Policy with the default knobs: 3 attempts,
// 100ms base delay doubling per attempt, capped at 5s, ±25% jitter.
func NewPolicy() *Policy {
	return &Policy{
		MaxAttempts:  3,
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.25,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs op up to MaxAttempts times, stopping on the first
// success or non-retryable error. When all attempts fail, the last
// observed error is returned wrapped as RETRY_EXHAUSTED.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.isRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.delayFor(attempt)); err != nil {
			return err
		}
	}

	if lastErr == nil {
		// Defensive: MaxAttempts <= 0 leaves no observed error.
		return scanerr.New(scanerr.CodeRetryExhausted, "no attempts were made")
	}
	return scanerr.Wrap(scanerr.CodeRetryExhausted, "all retry attempts failed", lastErr)
}

func (p *Policy) isRetryable(err error) bool {
	var coded *scanerr.Error
	if errors.As(err, &coded) {
		return scanerr.IsRetryable(coded.Code)
	}
	msg := err.Error()
	for _, s := range p.RetryableErrors {
		if s != "" && strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// delayFor computes min(MaxDelay, BaseDelay * Multiplier^(attempt-1))
// with uniform jitter in ±JitterFactor.
func (p *Policy) delayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if p.JitterFactor > 0 {
		// Top-level rand is safe for concurrent use; one Policy is
		// shared across pipeline goroutines.
		jitter := (rand.Float64()*2 - 1) * p.JitterFactor * d
		d += jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
