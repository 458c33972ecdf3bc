/*
payout.go - Payout state machine and batch payout operations

TWO INDEPENDENT AXES:
  Status:         pending -> approved -> {paid, denied, cancelled}
                  pending may also go straight to denied or cancelled.
  PaymentStatus:  unpaid -> processing -> {paid, failed, cancelled}
                  unpaid may go straight to paid, failed or cancelled;
                  processing may fall back to unpaid when a run is aborted.

  Terminal states only move to themselves, which keeps every batch safe to
  re-issue: marking a paid commission paid again is a no-op.

BATCHES:
  Each id is processed on its own. A failure is reported in that id's
  PayoutResult and never stops the rest of the batch. Items that name the
  same id run in input order on one worker, so a later item always sees
  the row an earlier one wrote. A crash mid-batch
  leaves some rows updated and some not; re-running the batch converges.

LEGACY MIRROR:
  After the new store is updated, the paid flag is mirrored to the legacy
  store best-effort. Mirror failures are logged only.
*/
package commission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
)

// =============================================================================
// TRANSITIONS
// =============================================================================

var statusTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusDenied, StatusCancelled},
	StatusApproved: {StatusPaid, StatusDenied, StatusCancelled},
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:     {PaymentProcessing, PaymentPaid, PaymentFailed, PaymentCancelled},
	PaymentProcessing: {PaymentPaid, PaymentFailed, PaymentCancelled, PaymentUnpaid},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusDenied, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusDenied || s == StatusCancelled
}

// CanTransitionTo reports whether s may move to to. Self moves are allowed.
func (s Status) CanTransitionTo(to Status) bool {
	if s == to {
		return true
	}
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentProcessing, PaymentPaid, PaymentFailed, PaymentCancelled:
		return true
	}
	return false
}

func (p PaymentStatus) Terminal() bool {
	return p == PaymentPaid || p == PaymentFailed || p == PaymentCancelled
}

// CanTransitionTo reports whether p may move to to. Self moves are allowed.
func (p PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	if p == to {
		return true
	}
	for _, next := range paymentTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// ParsePayoutStatus validates a batch payout status. Only paid, pending and
// unpaid are accepted; pending means the payout is in flight (processing).
func ParsePayoutStatus(raw string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid":
		return PaymentPaid, nil
	case "pending":
		return PaymentProcessing, nil
	case "unpaid":
		return PaymentUnpaid, nil
	}
	return "", &InvalidPayoutStatusError{Status: raw}
}

// =============================================================================
// BATCH TYPES
// =============================================================================

// PayoutUpdate is one item of a batch payout update.
type PayoutUpdate struct {
	CommissionID  string
	PaymentStatus string
	PaymentDate   *time.Time
	Notes         *string
}

// PayoutResult is the outcome for one commission of a batch.
type PayoutResult struct {
	CommissionID string
	OK           bool
	Err          error
}

// Failed returns the failed results of a batch.
func Failed(results []PayoutResult) []PayoutResult {
	var out []PayoutResult
	for _, r := range results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// PAYOUTS
// =============================================================================

// Payouts applies status and payment changes to stored commissions.
type Payouts struct {
	Store  Store
	Legacy LegacyStore // nil disables the mirror

	// Concurrency bounds per-id workers in a batch. Values below 1 mean 1.
	Concurrency int

	Now func() time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewPayouts(store Store, legacy LegacyStore, logger *zap.Logger, m *metrics.Metrics) *Payouts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Payouts{
		Store:       store,
		Legacy:      legacy,
		Concurrency: 1,
		Now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
		metrics:     m,
	}
}

// MarkCommissionsPaid sets every id to paid with paidAt = paymentDate.
// Returns one result per id, in input order.
func (p *Payouts) MarkCommissionsPaid(ctx context.Context, ids []string, paymentDate time.Time) []PayoutResult {
	if paymentDate.IsZero() {
		paymentDate = p.Now()
	}
	return p.each(ids, func(i int) PayoutResult {
		err := p.applyPayment(ctx, ids[i], PaymentPaid, &paymentDate, nil)
		p.metrics.IncPayout("mark_paid", err == nil)
		return PayoutResult{CommissionID: ids[i], OK: err == nil, Err: err}
	})
}

// BatchUpdatePayout validates and applies each update independently. An
// invalid status rejects only its own item with InvalidPayoutStatusError.
func (p *Payouts) BatchUpdatePayout(ctx context.Context, updates []PayoutUpdate) []PayoutResult {
	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.CommissionID
	}
	return p.each(ids, func(i int) PayoutResult {
		u := updates[i]
		err := p.applyUpdate(ctx, u)
		p.metrics.IncPayout("batch_update", err == nil)
		return PayoutResult{CommissionID: u.CommissionID, OK: err == nil, Err: err}
	})
}

func (p *Payouts) applyUpdate(ctx context.Context, u PayoutUpdate) error {
	target, err := ParsePayoutStatus(u.PaymentStatus)
	if err != nil {
		return err
	}
	var paidAt *time.Time
	if target == PaymentPaid {
		d := p.Now()
		if u.PaymentDate != nil {
			d = *u.PaymentDate
		}
		paidAt = &d
	}
	return p.applyPayment(ctx, u.CommissionID, target, paidAt, u.Notes)
}

func (p *Payouts) applyPayment(ctx context.Context, id string, target PaymentStatus, paidAt *time.Time, notes *string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrCommissionNotFound)
	}
	c, err := p.Store.Get(ctx, id)
	if err != nil {
		return err
	}

	if target == PaymentPaid && (c.Status == StatusDenied || c.Status == StatusCancelled) {
		return &TransitionError{Axis: "payment_status", From: "status " + string(c.Status), To: string(target)}
	}
	if !c.PaymentStatus.CanTransitionTo(target) {
		return &TransitionError{Axis: "payment_status", From: string(c.PaymentStatus), To: string(target)}
	}

	// A repeated paid keeps the original payment date.
	if target == PaymentPaid && c.PaymentStatus == PaymentPaid && c.PaidAt != nil {
		paidAt = c.PaidAt
	}
	if target != PaymentPaid {
		paidAt = nil
	}

	if err := p.Store.UpdatePayment(ctx, id, PaymentUpdate{PaymentStatus: target, PaidAt: paidAt, Notes: notes}); err != nil {
		return err
	}

	p.mirror(ctx, id, target == PaymentPaid, paidAt)
	return nil
}

func (p *Payouts) mirror(ctx context.Context, id string, paid bool, paidAt *time.Time) {
	if p.Legacy == nil {
		return
	}
	if err := p.Legacy.SetPaid(ctx, id, paid, paidAt); err != nil {
		p.metrics.IncLegacyFailure()
		p.logger.Error("legacy payout mirror failed",
			zap.String("commission_id", id),
			zap.Bool("paid", paid),
			zap.Error(err))
	}
}

// TransitionStatus moves a commission along the approval axis.
func (p *Payouts) TransitionStatus(ctx context.Context, id string, to Status) (Commission, error) {
	if !to.Valid() {
		return Commission{}, &TransitionError{Axis: "status", From: "?", To: string(to)}
	}
	c, err := p.Store.Get(ctx, id)
	if err != nil {
		return Commission{}, err
	}
	if !c.Status.CanTransitionTo(to) {
		return c, &TransitionError{Axis: "status", From: string(c.Status), To: string(to)}
	}
	if c.Status == to {
		return c, nil
	}
	if err := p.Store.UpdateStatus(ctx, id, to); err != nil {
		return c, err
	}
	c.Status = to
	return c, nil
}

// each runs fn for every index with at most Concurrency workers. Indexes
// sharing an id form one group handled sequentially by a single worker.
// fn never fails the group; errors are carried in the results.
func (p *Payouts) each(ids []string, fn func(i int) PayoutResult) []PayoutResult {
	results := make([]PayoutResult, len(ids))
	limit := p.Concurrency
	if limit < 1 {
		limit = 1
	}

	var order []string
	groups := make(map[string][]int)
	for i, id := range ids {
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, id := range order {
		idx := groups[id]
		g.Go(func() error {
			for _, i := range idx {
				results[i] = fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			p.logger.Warn("payout item failed",
				zap.String("commission_id", r.CommissionID),
				zap.Error(r.Err))
		}
	}
	return results
}
