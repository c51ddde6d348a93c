package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the janitor.

// ErrNotFound indicates a resource was not found.
// Deletes and counter resets treat it as success.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrStoreUnavailable indicates a store call could not complete.
type ErrStoreUnavailable struct {
	Store string
	Op    string
	Err   error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable [%s]: %v", e.Store, e.Op, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

// ErrScanFailure indicates the initial full read failed. Fatal for the run.
type ErrScanFailure struct {
	Err error
}

func (e *ErrScanFailure) Error() string {
	return fmt.Sprintf("account scan failed: %v", e.Err)
}

func (e *ErrScanFailure) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrRunInProgress is returned when another run holds the single-instance lock.
var ErrRunInProgress = errors.New("reconciliation run already in progress")

// IsNotFound reports whether err is, or wraps, an ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
