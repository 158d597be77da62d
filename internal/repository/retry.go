package repository

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// retryWithExponentialBackoff runs fn until it succeeds, fails with an error
// that is not retryable, or maxAttempts is reached.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms plus up to 30% jitter.
func retryWithExponentialBackoff(
	ctx context.Context,
	maxAttempts int,
	baseDelay time.Duration,
	fn func(ctx context.Context) error,
	onRetry func(attempt int, err error),
) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * defaultJitterFactor //nolint:gosec // jitter only
			backoff := delay + time.Duration(jitter)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return lastErr
		}

		if onRetry != nil && attempt < maxAttempts-1 {
			onRetry(attempt+1, lastErr)
		}
	}

	return lastErr
}
