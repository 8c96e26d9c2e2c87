package store

import (
	"fmt"
	"time"
)

// AuthError is returned when the backing store rejects the API credential.
// It is fatal for the current run - retrying cannot succeed until the
// credential is rotated.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("backing store rejected API credential (HTTP %d)", e.Status)
}

// RateLimitError is returned on HTTP 429. RetryAfter carries the server's
// Retry-After hint when present, zero otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backing store rate limit exceeded (retry after %v)", e.RetryAfter)
	}

	return "backing store rate limit exceeded"
}

// QueryError wraps any other non-2xx response from the backing store.
// Retryable reports whether the failure is transient (5xx).
type QueryError struct {
	Status  int
	Message string
}

func (e *QueryError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backing store request failed (HTTP %d: %s)", e.Status, e.Message)
	}

	return fmt.Sprintf("backing store request failed (HTTP %d)", e.Status)
}

func (e *QueryError) Retryable() bool {
	return e.Status >= 500
}
