package connection

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrConnectInProgress = errors.New("connect already in progress")
	ErrClosed            = errors.New("manager closed")
	ErrStaleConnection   = errors.New("connection stale (no ping)")
	ErrClosedBeforeOpen  = errors.New("transport closed before open")
)

// ConfigurationError reports a missing url, client name or subscription set.
// It is not retried.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return "no " + e.Field + " provided"
}

// TransportOpenError is returned by Connect when the transport failed to open.
type TransportOpenError struct {
	URL string
	Err error
}

func (e *TransportOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.URL, e.Err)
}

func (e *TransportOpenError) Unwrap() error {
	return e.Err
}

// ReconnectAttemptError is a failed attempt inside a reconnect episode.
type ReconnectAttemptError struct {
	Attempt int
	Err     error
}

func (e *ReconnectAttemptError) Error() string {
	return fmt.Sprintf("reconnect attempt %d: %v", e.Attempt, e.Err)
}

func (e *ReconnectAttemptError) Unwrap() error {
	return e.Err
}

// RetryExhaustedError ends a reconnect episode that exceeded the retry ceiling.
type RetryExhaustedError struct {
	Attempts int
	Err      error // Last attempt failure
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("reconnection failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
