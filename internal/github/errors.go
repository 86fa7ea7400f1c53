package github

import (
	"errors"
	"fmt"
	"time"
)

// Error constants
var (
	ErrAuth         = errors.New("authentication failed")
	ErrRepoNotFound = errors.New("repository not found")
	ErrAccessDenied = errors.New("access denied")
	ErrBadResponse  = errors.New("unexpected API response")
)

// transientError marks a failure worth retrying: connection problems,
// 5xx responses and secondary rate limit signals.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func markTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// quotaError signals that the primary rate limit quota is exhausted.
// The client pauses until Reset instead of failing the call.
type quotaError struct {
	reset time.Time
}

func (e *quotaError) Error() string {
	return fmt.Sprintf("rate limit exhausted, resets at %s", e.reset.Format(time.RFC3339))
}
