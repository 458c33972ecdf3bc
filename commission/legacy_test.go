package commission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
)

func TestToLegacyShape_DropsTypeAndLineage(t *testing.T) {
	paidAt := at(20)
	c := commission.Commission{
		ID:                 "c-1",
		AgentID:            "agent-up",
		MemberID:           "mem-1",
		EnrollmentID:       "enr-1",
		CommissionAmount:   money("19.50"),
		BasePremium:        money("149.00"),
		CoverageType:       commission.CoverageFamily,
		CommissionType:     commission.TypeOverride,
		OverrideForAgentID: "agent-down",
		Status:             commission.StatusApproved,
		PaymentStatus:      commission.PaymentPaid,
		Notes:              "note",
		CreatedAt:          at(1),
		PaidAt:             &paidAt,
	}

	r := commission.ToLegacyShape(c)

	assert.Equal(t, "c-1", r.ID)
	assert.Equal(t, "agent-up", r.AgentID)
	assert.InDelta(t, 19.50, r.Amount, 0.0001)
	assert.InDelta(t, 149.00, r.PlanPrice, 0.0001)
	assert.Equal(t, "Family", r.PlanType)
	assert.Equal(t, "approved", r.Status)
	assert.True(t, r.Paid)
	assert.Equal(t, &paidAt, r.PaidAt)
}

func TestFromLegacyShape_NormalizesIntoCanonical(t *testing.T) {
	r := commission.LegacyCommissionRecord{
		ID:           "legacy-7",
		AgentID:      "agent-1",
		MemberID:     "mem-7",
		EnrollmentID: "enr-7",
		Amount:       17.0000001,
		PlanType:     "Employee + Spouse",
		PlanPrice:    99,
		Status:       "weird",
		Paid:         false,
		CreatedAt:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	c := commission.FromLegacyShape(r)

	assert.Equal(t, "legacy-7", c.ID)
	requireMoney(t, "17.00", c.CommissionAmount)
	requireMoney(t, "99.00", c.BasePremium)
	assert.Equal(t, commission.CoverageSpouse, c.CoverageType)
	assert.Equal(t, commission.TypePrimary, c.CommissionType)
	assert.Equal(t, commission.StatusPending, c.Status)
	assert.Equal(t, commission.PaymentUnpaid, c.PaymentStatus)
	assert.Equal(t, "enr-7:agent-1:primary", c.IdempotencyKey)
}

func TestLegacyShape_RoundTripKeepsSharedFields(t *testing.T) {
	c := primaryCommission("enr-2", "agent-2", "21.00", at(3))
	c.ID = "c-2"
	c.CoverageType = commission.CoverageChildren
	c.Status = commission.StatusPending
	c.PaymentStatus = commission.PaymentUnpaid

	back := commission.FromLegacyShape(commission.ToLegacyShape(c))

	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.AgentID, back.AgentID)
	assert.Equal(t, c.EnrollmentID, back.EnrollmentID)
	assert.Equal(t, c.CoverageType, back.CoverageType)
	assert.True(t, c.CommissionAmount.Equal(back.CommissionAmount))
	assert.True(t, c.BasePremium.Equal(back.BasePremium))
	assert.Equal(t, c.Status, back.Status)
	assert.Equal(t, c.PaymentStatus, back.PaymentStatus)
}

func TestFromLegacyShape_OverrideSurvivesMirror(t *testing.T) {
	// GIVEN: an override commission mirrored into the legacy shape
	// WHEN: reading it back
	// THEN: type, downline and idempotency key are restored from the note

	tests := []struct {
		name  string
		agent commission.Agent
	}{
		{"with agent number", commission.Agent{AgentID: "agent-down", AgentNumber: "MPP0042", UplineAgentID: "agent-up", OverrideCommissionRate: money("5.00")}},
		{"without agent number", commission.Agent{AgentID: "agent-down", UplineAgentID: "agent-up", OverrideCommissionRate: money("5.00")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, ok := commission.ComputeOverride(tt.agent, primaryCommission("enr-1", "agent-down", "20.00", at(1)))
			require.True(t, ok)
			o.ID = "c-9"

			c := commission.FromLegacyShape(commission.ToLegacyShape(o))

			assert.Equal(t, commission.TypeOverride, c.CommissionType)
			assert.Equal(t, "agent-up", c.AgentID)
			assert.Equal(t, "agent-down", c.OverrideForAgentID)
			assert.Equal(t, "enr-1:agent-up:override", c.IdempotencyKey)
			requireMoney(t, "5.00", c.CommissionAmount)
		})
	}
}

func TestFromLegacyShape_OtherNotesStayPrimary(t *testing.T) {
	for _, notes := range []string{"", "MyPremierPlan Elite / Family", "Override for agent ", "Override for agent two words"} {
		c := commission.FromLegacyShape(commission.LegacyCommissionRecord{ID: "c-1", AgentID: "agent-1", EnrollmentID: "enr-1", Notes: notes})

		assert.Equal(t, commission.TypePrimary, c.CommissionType, notes)
		assert.Empty(t, c.OverrideForAgentID, notes)
	}
}
