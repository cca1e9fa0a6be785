package fetch

import (
	"errors"
	"fmt"
)

// TransportError wraps a network-level failure (timeout, DNS, connection
// loss). Transport errors are always retryable.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned when the server answered with a status outside
// the 2xx range. Only 429 and 5xx responses are worth retrying.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// Retryable reports whether this status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || (e.Code >= 500 && e.Code <= 599)
}

// DecodeError marks a malformed or unexpectedly shaped response body.
// Never retryable; callers treat it as "no result".
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err represents a failure worth another attempt.
func IsRetryable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return false
}
