/*
ledger.go - Dual-write commission ledger

PURPOSE:
  Persists a computed commission to the new store and mirrors it to the
  legacy store while the migration is in flight.

TWO PHASES:
  1. New store (authoritative). Failure fails the call. A uniqueness
     violation surfaces as ErrDuplicateCommission; anything else as a
     StoreWriteError wrapping ErrNewStoreWrite.
  2. Legacy store (best-effort). Attempted only after phase 1 succeeded.
     Failure is logged and counted, never rolled back into phase 1 and
     never returned as an error. The caller sees it in WriteOutcome.

  There is no transaction across the stores. Drift between them is
  observable through WriteOutcome and the legacy failure counter.

IDEMPOTENCY:
  Every commission carries IdempotencyKey(enrollment, agent, type). The new
  store's unique constraint turns a retried enrollment into
  ErrDuplicateCommission instead of a second financial record.

SEE ALSO:
  - store.go: Store and LegacyStore
  - legacy.go: ToLegacyShape
  - enrollment.go: the caller that treats duplicates as no-ops
*/
package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
)

// WriteOutcome reports both phases of a dual write.
type WriteOutcome struct {
	Commission       Commission
	PrimaryOK        bool
	SecondaryOK      bool
	SecondarySkipped bool // no legacy store configured
	SecondaryError   string
}

// Ledger writes commissions to the new store and mirrors them to the legacy store.
type Ledger struct {
	Store  Store
	Legacy LegacyStore // nil disables the mirror

	// Now stamps CreatedAt on commissions that arrive without one.
	Now func() time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewLedger(store Store, legacy LegacyStore, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		Store:   store,
		Legacy:  legacy,
		Now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
		metrics: m,
	}
}

// Record runs the two-phase write. The returned error is non-nil only when
// the new-store write failed.
func (l *Ledger) Record(ctx context.Context, c Commission) (WriteOutcome, error) {
	c, err := l.prepare(c)
	if err != nil {
		return WriteOutcome{Commission: c}, err
	}
	out := WriteOutcome{Commission: c}

	// Phase 1: authoritative
	if err := l.Store.Insert(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCommission) {
			l.metrics.IncDuplicate(string(c.CommissionType))
			return out, fmt.Errorf("%w: %s", ErrDuplicateCommission, c.IdempotencyKey)
		}
		l.metrics.IncNewStoreFailure()
		return out, &StoreWriteError{Store: "new", CommissionID: c.ID, Err: err}
	}
	out.PrimaryOK = true
	l.metrics.IncRecorded(string(c.CommissionType))

	// Phase 2: best-effort mirror
	if l.Legacy == nil {
		out.SecondarySkipped = true
		return out, nil
	}
	if err := l.Legacy.Insert(ctx, ToLegacyShape(c)); err != nil {
		werr := &StoreWriteError{Store: "legacy", CommissionID: c.ID, Err: err}
		out.SecondaryError = werr.Error()
		l.metrics.IncLegacyFailure()
		l.logger.Error("legacy commission mirror failed; new store record kept",
			zap.String("commission_id", c.ID),
			zap.String("enrollment_id", c.EnrollmentID),
			zap.String("agent_id", c.AgentID),
			zap.String("commission_type", string(c.CommissionType)),
			zap.String("amount", c.CommissionAmount.StringFixed(2)),
			zap.Error(err))
		return out, nil
	}
	out.SecondaryOK = true
	return out, nil
}

func (l *Ledger) prepare(c Commission) (Commission, error) {
	if c.CommissionType == "" {
		c.CommissionType = TypePrimary
	}
	if !c.CommissionType.Valid() {
		return c, fmt.Errorf("%w: unknown commission type %q", ErrInvalidCommission, c.CommissionType)
	}
	if c.EnrollmentID == "" || c.AgentID == "" {
		return c, fmt.Errorf("%w: enrollment id and agent id are required", ErrInvalidCommission)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = l.Now()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if c.PaymentStatus == "" {
		c.PaymentStatus = PaymentUnpaid
	}
	if c.IdempotencyKey == "" {
		c.IdempotencyKey = IdempotencyKey(c.EnrollmentID, c.AgentID, c.CommissionType)
	}
	return c, nil
}
