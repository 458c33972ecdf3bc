package commission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var errUnavailable = errors.New("connection refused")

func money(s string) decimal.Decimal {
	return commission.MustParseDecimal(s)
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s", want, got.StringFixed(2))
}

func at(day int) time.Time {
	return time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC)
}

// failingLegacy is a legacy store whose calls fail on demand.
type failingLegacy struct {
	*store.LegacyMemory
	insertErr error
	findErr   error
	setErr    error
}

func newFailingLegacy() *failingLegacy {
	return &failingLegacy{LegacyMemory: store.NewLegacyMemory()}
}

func (f *failingLegacy) Insert(ctx context.Context, r commission.LegacyCommissionRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.LegacyMemory.Insert(ctx, r)
}

func (f *failingLegacy) Find(ctx context.Context, q commission.Query) ([]commission.LegacyCommissionRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.LegacyMemory.Find(ctx, q)
}

func (f *failingLegacy) SetPaid(ctx context.Context, id string, paid bool, paidAt *time.Time) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.LegacyMemory.SetPaid(ctx, id, paid, paidAt)
}

// failingStore is a new store whose calls fail on demand.
type failingStore struct {
	*store.Memory
	insertErr error
	findErr   error
	updateErr map[string]error
}

func newFailingStore() *failingStore {
	return &failingStore{Memory: store.NewMemory(), updateErr: map[string]error{}}
}

func (f *failingStore) Insert(ctx context.Context, c commission.Commission) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Memory.Insert(ctx, c)
}

func (f *failingStore) Find(ctx context.Context, q commission.Query) ([]commission.Commission, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Memory.Find(ctx, q)
}

func (f *failingStore) UpdatePayment(ctx context.Context, id string, u commission.PaymentUpdate) error {
	if err := f.updateErr[id]; err != nil {
		return err
	}
	return f.Memory.UpdatePayment(ctx, id, u)
}

func primaryCommission(enrollmentID, agentID, amount string, created time.Time) commission.Commission {
	return commission.Commission{
		AgentID:          agentID,
		MemberID:         "mem-" + enrollmentID,
		EnrollmentID:     enrollmentID,
		CommissionAmount: money(amount),
		BasePremium:      money("119.00"),
		CoverageType:     commission.CoverageIndividual,
		CommissionType:   commission.TypePrimary,
		CreatedAt:        created,
	}
}

// rendezvousStore holds each Get until a second Get arrives or the wait
// expires, so readers that run concurrently always overlap.
type rendezvousStore struct {
	*store.Memory
	peer chan struct{}
	wait time.Duration
}

func newRendezvousStore(wait time.Duration) *rendezvousStore {
	return &rendezvousStore{Memory: store.NewMemory(), peer: make(chan struct{}), wait: wait}
}

func (r *rendezvousStore) Get(ctx context.Context, id string) (commission.Commission, error) {
	select {
	case r.peer <- struct{}{}:
	default:
		select {
		case <-r.peer:
		case <-time.After(r.wait):
		}
	}
	return r.Memory.Get(ctx, id)
}
