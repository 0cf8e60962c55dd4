/*
errors.go - Centralized error taxonomy for the settlement engine

PURPOSE:
  All engine error types in one place. Callers branch with errors.Is /
  errors.As; structured types carry enough context for an operator to act.

TAXONOMY:
  ErrInvalidInput       negative due amount; rejected before any mutation
  ErrMissingPrice       due-amount computation failed upstream; settlement
                        never starts
  ErrDivisionByZero     zero quantity/total in monetary division
  ErrInvariantViolation more than one balancing invoice for a party; fatal,
                        surfaced for manual reconciliation, never repaired
                        by picking one arbitrarily
  PersistenceError      a mutation could not be durably written; the state
                        already persisted is valid and resumable

SEE ALSO:
  - engine.go: resumability contract after PersistenceError
  - shortfall.go: single-balancing-invoice invariant
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for a negative due amount. Nothing is
	// persisted when this is returned.
	ErrInvalidInput = errors.New("invalid settlement input")

	// ErrMissingPrice is returned when no unit price exists for a
	// party/product pair, so no due amount can be computed.
	ErrMissingPrice = errors.New("no price configured")

	// ErrDivisionByZero is returned by Money.Div for a zero divisor.
	ErrDivisionByZero = errors.New("monetary division by zero")

	// ErrInvariantViolation is returned when a party holds more than one
	// balancing invoice. This is fatal and requires manual reconciliation.
	ErrInvariantViolation = errors.New("settlement invariant violated")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports a due amount the engine refuses to settle.
type InvalidAmountError struct {
	PartyID PartyID
	Amount  Money
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("due amount %s for party %s is negative", e.Amount, e.PartyID)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidInput }

// InvariantViolationError reports a broken single-balancing-invoice invariant.
type InvariantViolationError struct {
	PartyID PartyID
	Count   int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("party %s has %d balancing invoices, expected at most one", e.PartyID, e.Count)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }

// PersistenceError wraps a failed durable write. Per-invoice mutations are
// persisted individually, so a failure after N of M invoices leaves a
// well-defined partial state: re-running settlement with the residual due
// amount resumes, it does not double-charge.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by invalid caller input
// rather than system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrMissingPrice) ||
		errors.Is(err, ErrDivisionByZero)
}
