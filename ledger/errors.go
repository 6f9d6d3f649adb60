/*
errors.go - Centralized error types for the ledger core

ERROR CATEGORIES:
  1. Validation errors   - Malformed input, rejected before any store write
  2. Not-found errors    - Unit, staff or record absent
  3. Authorization       - Role or ownership mismatch (checked first)
  4. Conflict errors     - Concurrent upsert race caught by the store

USAGE:
  Specific errors wrap a category sentinel, so callers can branch on either:

    if errors.Is(err, ledger.ErrInvalidCategory) { ... }
    if errors.Is(err, ledger.ErrValidation) { ... } // also true

SEE ALSO:
  - recorder.go: Retries once on ErrConflict
  - api/handlers.go: Maps categories to HTTP status codes
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
	// ErrValidation is the category for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the category for absent units, staff and records.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when credentials or tokens are invalid.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the caller's role or unit does not permit the action.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a unique (unit, date[, category]) key is
	// violated by a concurrent insert. Retry the submission.
	ErrConflict = errors.New("concurrent modification detected")
)

var (
	ErrInvalidPeriod   = fmt.Errorf("%w: invalid period", ErrValidation)
	ErrInvalidCategory = fmt.Errorf("%w: invalid category", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)

	ErrUnitNotFound   = fmt.Errorf("unit %w", ErrNotFound)
	ErrStaffNotFound  = fmt.Errorf("staff %w", ErrNotFound)
	ErrRecordNotFound = fmt.Errorf("record %w", ErrNotFound)
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
