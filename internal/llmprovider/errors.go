package llmprovider

import (
	"fmt"
	"time"
)

// Error is the closed taxonomy every provider adapter's failures are
// mapped onto, so the engine's retry policy never depends on a specific
// vendor's error shape.
type Error interface {
	error
	Provider() string
	StatusCode() int
	Retryable() bool
	RetryAfter() *time.Duration
}

type apiError struct {
	provider   string
	statusCode int
	message    string
	retryable  bool
	retryAfter *time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.provider, e.statusCode, e.message)
}
func (e *apiError) Provider() string          { return e.provider }
func (e *apiError) StatusCode() int           { return e.statusCode }
func (e *apiError) Retryable() bool           { return e.retryable }
func (e *apiError) RetryAfter() *time.Duration { return e.retryAfter }

// ErrorFromHTTPStatus classifies a raw HTTP response into the closed
// taxonomy, mirroring the HTTP-status-driven construction used throughout
// the rest of this tree's collaborator clients.
func ErrorFromHTTPStatus(provider string, statusCode int, message string, retryAfter *time.Duration) Error {
	retryable := statusCode == 429 || statusCode == 408 || statusCode >= 500
	return &apiError{
		provider:   provider,
		statusCode: statusCode,
		message:    message,
		retryable:  retryable,
		retryAfter: retryAfter,
	}
}

// IsRetryable reports whether err (if it implements Error) should be
// retried with backoff rather than surfaced as terminal.
func IsRetryable(err error) bool {
	if e, ok := err.(Error); ok {
		return e.Retryable()
	}
	return false
}
