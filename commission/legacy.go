package commission

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEGACY SHAPE
// =============================================================================

// LegacyCommissionRecord is the legacy store's view of a commission: camelCase
// names, float money, a single paid flag, and no commission type or override
// lineage. Tags name the legacy columns and document keys.
type LegacyCommissionRecord struct {
	ID           string     `bson:"_id" json:"id"`
	AgentID      string     `bson:"agentId" json:"agentId"`
	MemberID     string     `bson:"memberId" json:"memberId"`
	EnrollmentID string     `bson:"enrollmentId" json:"enrollmentId"`
	Amount       float64    `bson:"commissionAmount" json:"commissionAmount"`
	PlanType     string     `bson:"planType" json:"planType"`
	PlanPrice    float64    `bson:"planPrice" json:"planPrice"`
	Status       string     `bson:"status" json:"status"`
	Paid         bool       `bson:"paid" json:"paid"`
	Notes        string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt" json:"createdAt"`
	PaidAt       *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

// ToLegacyShape maps a canonical commission onto the legacy record.
// CommissionType and OverrideForAgentID have no legacy column and are dropped.
func ToLegacyShape(c Commission) LegacyCommissionRecord {
	amount, _ := c.CommissionAmount.Float64()
	price, _ := c.BasePremium.Float64()
	return LegacyCommissionRecord{
		ID:           c.ID,
		AgentID:      c.AgentID,
		MemberID:     c.MemberID,
		EnrollmentID: c.EnrollmentID,
		Amount:       amount,
		PlanType:     c.CoverageType.DisplayName(),
		PlanPrice:    price,
		Status:       string(c.Status),
		Paid:         c.PaymentStatus == PaymentPaid,
		Notes:        c.Notes,
		CreatedAt:    c.CreatedAt,
		PaidAt:       c.PaidAt,
	}
}

// FromLegacyShape maps a legacy record into the canonical shape. Legacy rows
// carry no commission type: a row whose note was written for an override
// reads back as an override for the agent named there, every other row reads
// back as primary.
func FromLegacyShape(r LegacyCommissionRecord) Commission {
	coverage, _ := ParseCoverage(r.PlanType)

	status := Status(r.Status)
	switch status {
	case StatusPending, StatusApproved, StatusPaid, StatusDenied, StatusCancelled:
	default:
		status = StatusPending
	}

	payment := PaymentUnpaid
	if r.Paid || status == StatusPaid {
		payment = PaymentPaid
	}

	commissionType := TypePrimary
	overrideFor, isOverride := parseOverrideNote(r.Notes)
	if isOverride {
		commissionType = TypeOverride
	}

	return Commission{
		ID:                 r.ID,
		AgentID:            r.AgentID,
		MemberID:           r.MemberID,
		EnrollmentID:       r.EnrollmentID,
		CommissionAmount:   RoundMoney(decimal.NewFromFloat(r.Amount)),
		BasePremium:        RoundMoney(decimal.NewFromFloat(r.PlanPrice)),
		CoverageType:       coverage,
		CommissionType:     commissionType,
		OverrideForAgentID: overrideFor,
		Status:             status,
		PaymentStatus:      payment,
		Notes:              r.Notes,
		IdempotencyKey:     IdempotencyKey(r.EnrollmentID, r.AgentID, commissionType),
		CreatedAt:          r.CreatedAt,
		PaidAt:             r.PaidAt,
	}
}
