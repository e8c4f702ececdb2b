package rest

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// DefaultRetryJitter is the randomization factor applied to computed retry
// delays. Backoff is randomized (multiplicative jitter rather than fixed
// exponential) so that many clients rate-limited at the same moment do not
// retry in lockstep against a shared backend.
const DefaultRetryJitter = 2.0

// RetryDelay computes the backoff delay before retry number attempt
// (1-based). The delay is base * attempt scaled by a random factor drawn
// uniformly from [0, jitter), rounded up to the next millisecond. The result
// is always >= 0 and increasing in expectation with attempt.
func RetryDelay(attempt int, base time.Duration, jitter float64) time.Duration {
	if attempt <= 0 || base <= 0 || jitter <= 0 {
		return 0
	}
	ms := math.Ceil(float64(attempt) * base.Seconds() * 1000 * rand.Float64() * jitter)
	return time.Duration(ms) * time.Millisecond
}

// sleep waits for the given delay or until the context is cancelled.
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
