/*
store.go - Persistence interfaces for the two commission stores

PURPOSE:
  The engine writes to two differently shaped stores during the migration:

    Store        new, authoritative; canonical Commission shape
    LegacyStore  old, best-effort mirror; LegacyCommissionRecord shape

  Each is addressable on its own: the new store never depends on the legacy
  store being reachable, and the legacy store is only ever written through
  the ledger's best-effort step.

UNIQUENESS:
  Store.Insert must reject a second commission with the same
  (EnrollmentID, AgentID, CommissionType), and a second override for the
  same EnrollmentID, with ErrDuplicateCommission.

IMPLEMENTATIONS:
  - store/sqlite: Store, LegacyStore and AgentDirectory on SQLite
  - store/mongo: LegacyStore on MongoDB
  - commission/store: in-memory versions for tests and dev

SEE ALSO:
  - legacy.go: the pure adapters between the two shapes
*/
package commission

import (
	"context"
	"time"
)

// =============================================================================
// NEW STORE
// =============================================================================

// PaymentUpdate is the payout patch applied to one commission.
// PaidAt nil clears the paid timestamp; Notes nil leaves notes unchanged.
type PaymentUpdate struct {
	PaymentStatus PaymentStatus
	PaidAt        *time.Time
	Notes         *string
}

// Store is the authoritative commission store.
type Store interface {
	// Insert persists a new commission. Returns ErrDuplicateCommission on a
	// uniqueness violation.
	Insert(ctx context.Context, c Commission) error

	// Get returns one commission or ErrCommissionNotFound.
	Get(ctx context.Context, id string) (Commission, error)

	// Find returns commissions matching q ordered by CreatedAt.
	Find(ctx context.Context, q Query) ([]Commission, error)

	// UpdatePayment applies a payout patch. Returns ErrCommissionNotFound.
	UpdatePayment(ctx context.Context, id string, u PaymentUpdate) error

	// UpdateStatus sets the approval status. Returns ErrCommissionNotFound.
	UpdateStatus(ctx context.Context, id string, s Status) error
}

// =============================================================================
// LEGACY STORE
// =============================================================================

// LegacyStore is the best-effort mirror kept warm for unmigrated readers.
type LegacyStore interface {
	Insert(ctx context.Context, r LegacyCommissionRecord) error
	Find(ctx context.Context, q Query) ([]LegacyCommissionRecord, error)

	// SetPaid mirrors a payout onto the legacy paid flag.
	SetPaid(ctx context.Context, id string, paid bool, paidAt *time.Time) error
}

// =============================================================================
// AGENT DIRECTORY
// =============================================================================

// AgentDirectory resolves agents for override computation.
type AgentDirectory interface {
	// GetAgent returns the agent or ErrAgentNotFound.
	GetAgent(ctx context.Context, agentID string) (Agent, error)
}
