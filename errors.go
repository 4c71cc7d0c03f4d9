package tally

import (
	"errors"
	"fmt"

	"github.com/xraph/tally/debt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tally: not found")
	ErrAlreadyExists = errors.New("tally: already exists")
	ErrInvalidInput  = errors.New("tally: invalid input")
	ErrUnauthorized  = errors.New("tally: unauthorized")
	ErrForbidden     = errors.New("tally: forbidden")

	// Group errors
	ErrGroupNotFound = errors.New("tally: group not found")
	ErrNotMember     = errors.New("tally: participant is not a group member")

	// Entry errors
	ErrEntryNotFound     = errors.New("tally: entry not found")
	ErrSelfSettlement    = errors.New("tally: settler cannot settle with self")
	ErrSimplifyQueueFull = errors.New("tally: simplify queue full")

	// Engine errors
	ErrDegenerateExpense = debt.ErrDegenerateExpense
	ErrUnbalancedExpense = debt.ErrUnbalancedExpense
	ErrInvalidGraph      = debt.ErrInvalidGraph
	ErrCurrencyMismatch  = debt.ErrCurrencyMismatch

	// Store errors
	ErrStoreNotReady   = errors.New("tally: store not ready")
	ErrMigrationFailed = errors.New("tally: migration failed")
	ErrLockTimeout     = errors.New("tally: timed out waiting for group lock")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tally: validation failed for %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match any validation failure.
func (e ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tally: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tally: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsEngineError returns true if the balance engine rejected the ledger data.
func IsEngineError(err error) bool {
	return errors.Is(err, ErrDegenerateExpense) ||
		errors.Is(err, ErrUnbalancedExpense) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrCurrencyMismatch)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrSimplifyQueueFull)
}
