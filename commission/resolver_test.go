package commission_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
)

func newTestResolver() *commission.Resolver {
	return commission.NewResolver(nil, commission.DefaultRateTable())
}

// Documented rates for every (tier, coverage) pair.
var documentedRates = []struct {
	plan       string
	coverage   string
	commission string
	premium    string
}{
	{"MyPremierPlan Base", "Member Only", "9.00", "59.00"},
	{"MyPremierPlan Base", "Member + Spouse", "15.00", "99.00"},
	{"MyPremierPlan Base", "Member + Children", "17.00", "129.00"},
	{"MyPremierPlan Base", "Family", "17.00", "149.00"},
	{"MyPremierPlan Plus", "Member Only", "15.00", "79.00"},
	{"MyPremierPlan Plus", "Member + Spouse", "21.00", "149.00"},
	{"MyPremierPlan Plus", "Member + Children", "21.00", "159.00"},
	{"MyPremierPlan Plus", "Family", "21.00", "199.00"},
	{"MyPremierPlan Elite", "Member Only", "20.00", "119.00"},
	{"MyPremierPlan Elite", "Member + Spouse", "40.00", "209.00"},
	{"MyPremierPlan Elite", "Member + Children", "40.00", "229.00"},
	{"MyPremierPlan Elite", "Family", "40.00", "279.00"},
}

func TestResolve_AllTwelveCombinations(t *testing.T) {
	r := newTestResolver()

	for _, tt := range documentedRates {
		t.Run(tt.plan+"/"+tt.coverage, func(t *testing.T) {
			q, err := r.Resolve(tt.plan, tt.coverage, false)
			require.NoError(t, err)
			requireMoney(t, tt.commission, q.CommissionAmount)
			requireMoney(t, tt.premium, q.BasePremium)
		})
	}
}

func TestResolve_AddOnIsFlatAndCommissionOnly(t *testing.T) {
	r := newTestResolver()

	for _, tt := range documentedRates {
		without, err := r.Resolve(tt.plan, tt.coverage, false)
		require.NoError(t, err)
		with, err := r.Resolve(tt.plan, tt.coverage, true)
		require.NoError(t, err)

		diff := with.CommissionAmount.Sub(without.CommissionAmount)
		assert.Truef(t, diff.Equal(commission.DefaultAddOnFee), "%s/%s: add-on diff %s", tt.plan, tt.coverage, diff)
		assert.True(t, with.BasePremium.Equal(without.BasePremium), "add-on must not touch base premium")
	}
}

func TestResolve_Examples(t *testing.T) {
	r := newTestResolver()

	q, err := r.Resolve("MyPremierPlan Elite - Member Only", "Member Only", false)
	require.NoError(t, err)
	requireMoney(t, "20.00", q.CommissionAmount)
	requireMoney(t, "119.00", q.BasePremium)

	q, err = r.Resolve("MyPremierPlan Base", "Family", true)
	require.NoError(t, err)
	requireMoney(t, "19.50", q.CommissionAmount)
	requireMoney(t, "149.00", q.BasePremium)
}

func TestResolve_GarbledInputUsesDefaults(t *testing.T) {
	r := newTestResolver()

	q, err := r.Resolve("???", "", false)
	require.NoError(t, err)
	assert.Equal(t, commission.TierBase, q.Tier)
	assert.Equal(t, commission.CoverageIndividual, q.Coverage)
	requireMoney(t, "9.00", q.CommissionAmount)
}

func TestResolve_Deterministic(t *testing.T) {
	r := newTestResolver()
	a, err := r.Resolve("MyPremierPlan Plus", "couple", true)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := r.Resolve("MyPremierPlan Plus", "couple", true)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

// sparseRates is a Rates with only one row, to reach RateNotFound.
type sparseRates struct{}

func (sparseRates) Lookup(t commission.Tier, c commission.CoverageCode) (commission.RateRow, bool) {
	if t == commission.TierBase && c == commission.CoverageIndividual {
		return commission.RateRow{Tier: t, Coverage: c, BaseCommission: money("9"), ReferencePremium: money("59")}, true
	}
	return commission.RateRow{}, false
}

func (sparseRates) AddOnFee() decimal.Decimal { return money("2.50") }

func TestResolve_MissingRowFailsExplicitly(t *testing.T) {
	r := commission.NewResolver(nil, sparseRates{})

	q, err := r.Resolve("MyPremierPlan Elite", "Family", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, commission.ErrRateNotFound))
	var rnf *commission.RateNotFoundError
	require.ErrorAs(t, err, &rnf)
	assert.Equal(t, commission.TierElite, rnf.Tier)
	assert.Equal(t, commission.CoverageFamily, rnf.Coverage)
	assert.True(t, q.CommissionAmount.IsZero())
}

func TestNewRateTable_RejectsIncompleteTable(t *testing.T) {
	rows := commission.DefaultRateTable().Rows()
	require.Len(t, rows, 12)

	_, err := commission.NewRateTable("partial", rows[:11], money("2.50"))
	assert.ErrorIs(t, err, commission.ErrInvalidRateTable)

	_, err = commission.NewRateTable("dup", append(rows, rows[0]), money("2.50"))
	assert.ErrorIs(t, err, commission.ErrInvalidRateTable)

	_, err = commission.NewRateTable("neg", rows, money("-1"))
	assert.ErrorIs(t, err, commission.ErrInvalidRateTable)

	rt, err := commission.NewRateTable("copy", rows, money("2.50"))
	require.NoError(t, err)
	assert.Equal(t, "copy", rt.Version())
}
