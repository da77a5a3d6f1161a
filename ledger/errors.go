/*
errors.go - Centralized error taxonomy for the engine

PURPOSE:
  Every processor call resolves to a success Receipt or exactly one of the
  errors below. Validation errors are detected before the atomic unit
  begins and never require rollback; storage failures detected mid-unit go
  through the coordinator's rollback path. Nothing is logged-and-ignored.

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, ledger.ErrInsufficientFunds) {
        // re-prompt the user
    }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when an amount is non-positive,
	// non-numeric, or exceeds the configured maximum. Detected before any
	// state mutation.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds is returned when a withdrawal or transfer would
	// drive the balance negative. Detected before any state mutation.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDemoAccountRestricted is returned when a transfer is attempted
	// from a demo account. Callers should explain, not retry.
	ErrDemoAccountRestricted = errors.New("demo account cannot transfer")

	// ErrDuplicateIdempotencyKey is the TransactionLog's defensive
	// double-check: an append carried a key that already exists for the
	// account. Processors normally catch duplicates earlier and return a
	// duplicate Receipt instead.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDelegateNotFound is returned when a delegate operation names an id
	// the account has never registered.
	ErrDelegateNotFound = errors.New("delegate not found")

	// ErrConcurrencyConflict is returned when the per-account lock could
	// not be acquired before the caller's deadline. The whole operation may
	// be retried from scratch.
	ErrConcurrencyConflict = errors.New("concurrent operation in progress")

	// ErrStorageFailure wraps an underlying key/value store failure. Fatal
	// for the operation; the coordinator rolls back the optimistic view.
	ErrStorageFailure = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports the shortfall behind ErrInsufficientFunds.
type InsufficientFundsError struct {
	AccountID AccountID
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s (short %s)",
		e.Available, e.Requested, Amount(int64(e.Requested)-int64(e.Available)))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// StorageError wraps a KeyValueStore failure with the operation and key.
type StorageError struct {
	Op  string // "get", "set", "remove"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorageFailure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is recoverable by fixing the
// request (re-prompt, explain) rather than retrying as-is.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDemoAccountRestricted) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDelegateNotFound)
}

// IsRetryable reports whether resubmitting the identical operation might
// succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
