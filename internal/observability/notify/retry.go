package notify

import (
	"context"
	"errors"
	"time"
)

// Retry invokes fn until it succeeds or attempts run out, waiting attempt*step
// between tries. Cancelling ctx cuts the wait short; the returned error then
// carries the last delivery failure joined with the cancellation cause.
func Retry(ctx context.Context, attempts int, step time.Duration, fn func(context.Context) error) error {
	attempts = max(attempts, 1)

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if last = fn(ctx); last == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(last, ctx.Err())
		case <-time.After(time.Duration(attempt) * step):
		}
	}
	return last
}
