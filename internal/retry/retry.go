// Package retry wraps fallible provider calls with bounded exponential
// backoff. Only rate-limit (HTTP 429) and connection-reset failures are
// retried; everything else is surfaced immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxRetries int           // retries after the first attempt
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff cap
}

// DefaultPolicy returns the standard provider-call policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   8 * time.Second,
	}
}

// StatusError reports a non-2xx HTTP response from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// IsRetryable reports whether err is one of the two transient failure
// classes worth retrying: HTTP 429 or a reset connection.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests
	}
	return errors.Is(err, syscall.ECONNRESET)
}

// WithBackoff invokes fn up to policy.MaxRetries+1 times. The delay before
// retry k (1-indexed) is min(BaseDelay * 2^(k-1), MaxDelay), with no
// jitter. Non-retryable errors and the final attempt's error are returned
// unchanged.
func WithBackoff[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.BaseDelay << (attempt - 1)
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}
