package rest

import (
	"context"
	"time"

	sparkerrors "github.com/Coherent-Partners/spark-go-sdk/errors"
)

// PollFunc performs one status check. It returns done = true when the
// observed state is terminal. A non-nil error stops the poll immediately.
type PollFunc func(ctx context.Context) (done bool, err error)

// Poll runs fn as a bounded sequential loop: check, sleep, check again, up to
// maxAttempts times. Checks are never concurrent, so the interval between
// them stays meaningful. When the budget is exhausted without fn reporting a
// terminal state, Poll returns a RetryTimeoutError; the last-seen state was
// not itself an error, just not done yet.
func Poll(ctx context.Context, maxAttempts int, interval time.Duration, fn PollFunc) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; ; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == maxAttempts {
			return &sparkerrors.RetryTimeoutError{Attempts: maxAttempts, Interval: interval}
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}
