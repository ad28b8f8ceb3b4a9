package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Sentinel errors used with errors.Is throughout the sync core.
var (
	// ErrRemoteUnavailable indicates a remote call failed after all retry attempts.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRateLimited indicates the remote answered with HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrMapping indicates a record could not be mapped between representations.
	ErrMapping = errors.New("mapping error")

	// ErrStoreUnavailable indicates the state store cannot be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrCycleInProgress is returned when a cycle is requested while another runs.
	ErrCycleInProgress = errors.New("sync cycle already in progress")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// RemoteError is a single failed call against a remote system.
type RemoteError struct {
	System     string
	Op         string
	StatusCode int
	Message    string
	// RetryAfter is the server supplied backoff hint, zero when absent.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %s", e.System, e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.System, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.System, e.Op, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteError) Is(target error) bool {
	return e.StatusCode == 429 && target == ErrRateLimited
}

// Transient reports whether the call may succeed if repeated.
// Rate limiting, server errors and connection failures are transient;
// validation and permission failures are not.
func (e *RemoteError) Transient() bool {
	switch {
	case e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	return e.Err != nil
}

// RemoteUnavailableError is returned once a call has exhausted its retries.
type RemoteUnavailableError struct {
	System   string
	Op       string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("%s %s unavailable after %d attempts: %v", e.System, e.Op, e.Attempts, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteUnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// MappingError describes a field that could not be converted.
type MappingError struct {
	System     string
	EntityType string
	RecordID   string
	Field      string
	Value      any
	Message    string
}

// Error implements the error interface
func (e *MappingError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("cannot map %s %s %s field %q: %s", e.System, e.EntityType, e.RecordID, e.Field, e.Message)
	}
	return fmt.Sprintf("cannot map %s %s field %q: %s", e.System, e.EntityType, e.Field, e.Message)
}

// Is implements errors.Is support
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// StoreError wraps a failed state store operation.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError wraps err as a StoreError, returning nil for a nil err.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// NotFoundError represents a missing record.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsTransient reports whether err is worth retrying.
// Context cancellation is never transient; the caller gave up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return false
}

// RetryAfter extracts the server backoff hint from err, if any.
func RetryAfter(err error) time.Duration {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.RetryAfter
	}
	return 0
}
