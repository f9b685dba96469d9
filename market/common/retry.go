package common

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryExecutor wraps a fallible operation with bounded attempts and linear
// backoff: after the n-th failed attempt it sleeps Delay * n before retrying.
type RetryExecutor struct {
	Attempts int
	Delay    time.Duration
}

// NewRetryExecutor constructs a RetryExecutor, zero values defaulting to
// 3 attempts and a 1 second first delay.
func NewRetryExecutor(attempts int, delay time.Duration) RetryExecutor {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 1 * time.Second
	}
	return RetryExecutor{Attempts: attempts, Delay: delay}
}

// Do runs fn up to Attempts times. A ProviderError with NotRetryable set
// short-circuits; a ProviderError with RetryAfter set overrides the computed
// backoff for that retry. The last error is propagated. Cancellation of ctx
// during a backoff sleep aborts with the context error.
func (r RetryExecutor) Do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var provErr ProviderError
		if errors.As(err, &provErr) && provErr.NotRetryable {
			return err
		}
		if attempt == r.Attempts {
			break
		}
		sleepTime := r.Delay * time.Duration(attempt)
		if errors.As(err, &provErr) && provErr.RetryAfter > 0 {
			sleepTime = provErr.RetryAfter
		}
		log.Warn().Str("op", op).Int("attempt", attempt).Err(err).
			Msgf("Request failed, retrying after %v", sleepTime)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
