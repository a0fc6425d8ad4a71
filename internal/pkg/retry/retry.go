package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls how many times an operation is tried and how long the
// first wait lasts. Waits double on every retry, with no jitter, so the
// delay before retry n is InitialDelay * 2^(n-1).
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
}

// DefaultPolicy is three total tries starting at half a second.
var DefaultPolicy = Policy{Attempts: 3, InitialDelay: 500 * time.Millisecond}

// Do runs op, retrying with exponential backoff until it succeeds, the
// policy's total attempts are exhausted, or ctx is cancelled. The error
// from the last attempt is returned on exhaustion. The backoff wait blocks
// only the calling goroutine.
func Do(ctx context.Context, p Policy, op func() error) error {
	if p.Attempts < 1 {
		p.Attempts = DefaultPolicy.Attempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultPolicy.InitialDelay
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	wrapped := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.Attempts-1)), ctx)
	return backoff.Retry(op, wrapped)
}

// Permanent marks err as non-retryable so Do stops and returns it
// immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
