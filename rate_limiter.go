package gerbango

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket that admits outbound requests at a sustained
// rate. Acquire blocks the calling goroutine until a token is available;
// waiters are ordered by their arrival at the bucket's lock, so admission is
// FIFO-fair rather than a thundering-herd retry. No burst beyond the
// configured capacity is ever permitted.
//
// The limiter is owned by the Client that constructed it; sharing one across
// clients is possible but the zero value is not usable.
type RateLimiter struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	maxWait    time.Duration // 0 means wait indefinitely (until ctx cancels)
}

// NewRateLimiter creates a token bucket with the given capacity and refill
// rate in tokens per second. The bucket starts full.
func NewRateLimiter(capacity int, refillPerSecond float64) *RateLimiter {
	return &RateLimiter{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillPerSecond,
		lastRefill: time.Now(),
	}
}

// SetMaxWait bounds how long Acquire may block. A wait that would exceed d
// fails fast with ErrRateLimitTimeout instead of queuing.
func (rl *RateLimiter) SetMaxWait(d time.Duration) {
	rl.mu.Lock()
	rl.maxWait = d
	rl.mu.Unlock()
}

// Acquire blocks until a token is available, the wait exceeds the configured
// maximum, or ctx is cancelled. On success exactly one token is consumed.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	now := time.Now()
	rl.advance(now)

	if rl.tokens >= 1 {
		rl.tokens--
		rl.mu.Unlock()
		return nil
	}

	if rl.refillRate <= 0 {
		rl.mu.Unlock()
		return ErrRateLimitTimeout
	}

	// Reserve the next slot: tokens go negative, so later arrivals compute
	// strictly later wait times. A cancelled waiter returns its reservation.
	wait := time.Duration((1 - rl.tokens) / rl.refillRate * float64(time.Second))
	if rl.maxWait > 0 && wait > rl.maxWait {
		rl.mu.Unlock()
		return ErrRateLimitTimeout
	}
	rl.tokens--
	rl.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.mu.Lock()
		rl.tokens++
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.mu.Unlock()
		return ctx.Err()
	}
}

// advance refills tokens for the elapsed interval, capped at capacity.
// Callers must hold mu.
func (rl *RateLimiter) advance(now time.Time) {
	elapsed := now.Sub(rl.lastRefill)
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed.Seconds() * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
}

// Tokens reports the currently available token count after refill. Intended
// for metrics and tests.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.advance(time.Now())
	return rl.tokens
}
