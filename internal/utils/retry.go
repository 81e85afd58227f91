package utils

import (
	"fmt"
	"time"
)

type stop struct {
	error
}

// Stop wraps err so WithRetry gives up immediately and returns err.
func Stop(err error) error {
	return stop{err}
}

// Backoff returns how long to wait before the given (1-based) retry.
type Backoff func(attempt int) time.Duration

// ConstantBackoff waits the same delay between every attempt.
func ConstantBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// ExponentialBackoff doubles the delay after every failed attempt.
func ExponentialBackoff(delay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return delay << (attempt - 1)
	}
}

// WithRetry calls f up to attempts times, sleeping backoff(n) between failures.
// onRetry (optional) is told about every failure that will be retried.
func WithRetry(attempts int, backoff Backoff, f func() error, onRetry ...func(attempt int, err error)) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = f(); err == nil {
			return nil
		}
		if s, ok := err.(stop); ok {
			// Return the original error for later checking
			return s.error
		}
		if attempt == attempts {
			break
		}
		for _, fn := range onRetry {
			fn(attempt, err)
		}
		if backoff != nil {
			time.Sleep(backoff(attempt))
		}
	}
	return fmt.Errorf("after %d attempts, %w", attempts, err)
}
