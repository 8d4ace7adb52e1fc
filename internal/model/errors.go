package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable marks sent-store failures. A cycle that sees it
// aborts without marking anything sent; the next interval retries from
// scratch. Wrap with fmt.Errorf("...: %w", ErrStoreUnavailable).
var ErrStoreUnavailable = errors.New("sent store unavailable")

// IsStoreUnavailable reports whether err carries ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// HTTPError wraps an HTTP status code so retry and rate-limit logic can
// inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header or response body, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
