/*
errors.go - Centralized error types for the commission engine

ERROR CATEGORIES:
  1. Computation errors - no rate for a resolved (tier, coverage)
  2. Store errors - new store (fatal to the call) and legacy store (logged only)
  3. Payout errors - invalid status or illegal transition, reported per item

PROPAGATION:
  Commission-layer failures stop at the enrollment boundary. Processor
  reports them in ProcessResult and never fails the enrollment itself.

SEE ALSO:
  - ledger.go: StoreWriteError
  - payout.go: InvalidPayoutStatusError, TransitionError
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateNotFound is returned when the rate table has no row for a
	// resolved (tier, coverage) pair.
	ErrRateNotFound = errors.New("commission rate not found")

	// ErrNewStoreWrite is returned when the authoritative write fails.
	ErrNewStoreWrite = errors.New("new store write failed")

	// ErrLegacyWrite marks a failed best-effort mirror write. Never returned to
	// callers of Ledger.Record; it surfaces only in WriteOutcome.
	ErrLegacyWrite = errors.New("legacy store write failed")

	// ErrDuplicateCommission is returned when a commission with the same
	// (enrollment, agent, type) already exists.
	ErrDuplicateCommission = errors.New("duplicate commission")

	// ErrInvalidCommission is returned when a commission handed to the
	// ledger is missing its enrollment or agent id or has an unknown type.
	ErrInvalidCommission = errors.New("invalid commission")

	// ErrInvalidPayoutStatus is returned for a payout status outside the
	// accepted set.
	ErrInvalidPayoutStatus = errors.New("invalid payout status")

	// ErrInvalidTransition is returned when a state machine forbids a move.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCommissionNotFound is returned when an id has no commission.
	ErrCommissionNotFound = errors.New("commission not found")

	// ErrAgentNotFound is returned when an agent id is unknown.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidRateTable is returned when a rate table is incomplete or malformed.
	ErrInvalidRateTable = errors.New("invalid rate table")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateNotFoundError names the pair with no rate.
type RateNotFoundError struct {
	Tier     Tier
	Coverage CoverageCode
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no commission rate for tier %q coverage %q", e.Tier, e.Coverage)
}

func (e *RateNotFoundError) Unwrap() error { return ErrRateNotFound }

// StoreWriteError wraps a failed store write with the record it was writing.
type StoreWriteError struct {
	Store        string // "new" or "legacy"
	CommissionID string
	Err          error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s store write for commission %s: %v", e.Store, e.CommissionID, e.Err)
}

func (e *StoreWriteError) Unwrap() []error {
	sentinel := ErrNewStoreWrite
	if e.Store == "legacy" {
		sentinel = ErrLegacyWrite
	}
	return []error{sentinel, e.Err}
}

// InvalidPayoutStatusError names the offending status.
type InvalidPayoutStatusError struct {
	Status string
}

func (e *InvalidPayoutStatusError) Error() string {
	return fmt.Sprintf("invalid payout status %q (allowed: paid, pending, unpaid)", e.Status)
}

func (e *InvalidPayoutStatusError) Unwrap() error { return ErrInvalidPayoutStatus }

// TransitionError describes a forbidden state change on one axis.
type TransitionError struct {
	Axis string // "status" or "payment_status"
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Axis, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPayoutStatus) ||
		errors.Is(err, ErrInvalidCommission) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateCommission)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCommissionNotFound) ||
		errors.Is(err, ErrAgentNotFound)
}
