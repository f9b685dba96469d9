// Package ratelimit implements the token-bucket admission control shared by
// all adapters of a venue. Tokens refill at a constant rate up to a cap; each
// request consumes one token before going out.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxTokens matches the request weight budget of the strictest
	// supported venue per minute.
	DefaultMaxTokens = 1200
	// DefaultWindow is the refill window over which MaxTokens accrue.
	DefaultWindow = 60 * time.Second
	// DefaultWaitInterval is how long WaitForSlot sleeps between polls.
	DefaultWaitInterval = 100 * time.Millisecond

	// maxPolls caps WaitForSlot polling so that clock skew can never block a
	// caller forever. Hitting the cap is the one anomaly that warns and
	// proceeds rather than erroring.
	maxPolls = 100
)

// TokenBucket is a concurrency-safe token bucket.
type TokenBucket struct {
	mu           sync.Mutex
	maxTokens    float64
	refillRate   float64 // tokens per second
	tokens       float64
	lastRefill   time.Time
	waitInterval time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// NewTokenBucket constructs a full bucket. Non-positive arguments take the
// package defaults.
func NewTokenBucket(maxTokens int, window time.Duration) *TokenBucket {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if window <= 0 {
		window = DefaultWindow
	}
	b := &TokenBucket{
		maxTokens:    float64(maxTokens),
		refillRate:   float64(maxTokens) / window.Seconds(),
		tokens:       float64(maxTokens),
		waitInterval: DefaultWaitInterval,
		now:          time.Now,
		sleep:        time.Sleep,
	}
	b.lastRefill = b.now()
	return b
}

// refill must be called with the lock held. If the clock regressed, only the
// refill instant is moved; tokens are left alone.
func (b *TokenBucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed < 0 {
		b.lastRefill = now
		return
	}
	if elapsed > 0 {
		b.tokens = math.Min(b.maxTokens, b.tokens+elapsed.Seconds()*b.refillRate)
		b.lastRefill = now
	}
}

// Check refills and reports whether at least one token is available. It does
// not consume.
func (b *TokenBucket) Check() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens >= 1
}

// WaitForSlot blocks until a token is available, then consumes it. After 100
// unsuccessful polls it warns and proceeds anyway, so that clock skew cannot
// stall callers forever. Cancellation of ctx aborts without consuming.
func (b *TokenBucket) WaitForSlot(ctx context.Context) error {
	for polls := 0; ; polls++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.mu.Lock()
		b.refill()
		if b.tokens >= 1 || polls >= maxPolls {
			if polls >= maxPolls {
				log.Warn().Int("polls", polls).Float64("tokens", b.tokens).
					Msg("Rate limiter wait cap reached, proceeding anyway")
			}
			b.tokens = math.Max(0, b.tokens-1)
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()
		b.sleep(b.waitInterval)
	}
}

// Remaining returns the whole tokens currently available.
func (b *TokenBucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return int(b.tokens)
}

// ResetTime returns the instant at which the bucket will be full again,
// assuming no further consumption.
func (b *TokenBucket) ResetTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	missing := b.maxTokens - b.tokens
	return b.lastRefill.Add(time.Duration(missing / b.refillRate * float64(time.Second)))
}
