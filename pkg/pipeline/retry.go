package pipeline

import (
	"context"
	"time"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// retryBaseDelay is the wait before the second attempt; it doubles for
// each attempt after that. Overridable in tests.
var retryBaseDelay = time.Second

// retryWithBackoff runs fn up to attempts times with exponential
// backoff. Every failure is retried; browser captures have no terminal
// errors that a fresh tab cannot clear. onRetry is called before each
// wait. The return value is the number of attempts made.
//
// Cancellation between attempts wins over remaining attempts and is
// reported as CANCELLED; running out of attempts wraps the last error
// in a RetryExhaustedError.
func retryWithBackoff(ctx context.Context, attempts int, fn func() error, onRetry func(attempt int, err error)) (int, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return attempt, errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "cancelled while waiting to retry")
		case <-time.After(delay):
			delay *= 2
		}
	}
	return attempts, &errors.RetryExhaustedError{Attempts: attempts, Last: lastErr}
}
