/*
Package commission provides the commission computation and dual-store engine.

PURPOSE:
  Translates a completed enrollment (plan + coverage + add-on) into durable
  commission records, derives the upline override commission, and keeps the
  new (authoritative) store and the legacy (best-effort) store in step while
  reads and writes migrate between them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tier, CoverageCode: canonical plan grade and enrollment composition
  - Commission: the canonical record every store adapter maps to and from
  - Enrollment, Agent: read-only inputs handed over by the enrollment flow
  - DateRange: inclusive query window for commission reads

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, never float64
  2. One canonical shape: raw store payloads never leave the storage boundary
  3. Idempotency: every commission carries a key derived from the enrollment

SEE ALSO:
  - normalize.go: raw plan/coverage text to (Tier, CoverageCode)
  - resolver.go: (Tier, CoverageCode, add-on) to amounts
  - ledger.go: dual write
  - reader.go: read path with legacy fallback
  - payout.go: payout state machine
*/
package commission

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MustParseDecimal parses s, returning zero for malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RoundMoney rounds to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// =============================================================================
// TIER & COVERAGE
// =============================================================================

// Tier is the coarse plan grade driving the base commission rate.
type Tier string

const (
	TierBase  Tier = "base"
	TierPlus  Tier = "plus"
	TierElite Tier = "elite"
)

// Tiers lists every tier in ascending grade.
var Tiers = []Tier{TierBase, TierPlus, TierElite}

func (t Tier) Valid() bool {
	switch t {
	case TierBase, TierPlus, TierElite:
		return true
	}
	return false
}

// DisplayName returns the name used in plan display strings.
func (t Tier) DisplayName() string {
	switch t {
	case TierPlus:
		return "Plus"
	case TierElite:
		return "Elite"
	default:
		return "Base"
	}
}

// CoverageCode is the normalized enrollment composition.
type CoverageCode string

const (
	CoverageIndividual CoverageCode = "IO" // member only
	CoverageSpouse     CoverageCode = "MS" // member + spouse
	CoverageChildren   CoverageCode = "MC" // member + children
	CoverageFamily     CoverageCode = "MF" // family
)

// CoverageCodes lists every coverage code.
var CoverageCodes = []CoverageCode{CoverageIndividual, CoverageSpouse, CoverageChildren, CoverageFamily}

func (c CoverageCode) Valid() bool {
	switch c {
	case CoverageIndividual, CoverageSpouse, CoverageChildren, CoverageFamily:
		return true
	}
	return false
}

// DisplayName returns the member-type label used by the enrollment forms and
// by the legacy store's planType column.
func (c CoverageCode) DisplayName() string {
	switch c {
	case CoverageSpouse:
		return "Member + Spouse"
	case CoverageChildren:
		return "Member + Children"
	case CoverageFamily:
		return "Family"
	default:
		return "Member Only"
	}
}

// =============================================================================
// COMMISSION
// =============================================================================

// HouseAgentID is the bucket for enrollments made without an agent.
const HouseAgentID = "HOUSE"

type CommissionType string

const (
	TypePrimary  CommissionType = "primary"
	TypeOverride CommissionType = "override"
)

func (t CommissionType) Valid() bool {
	return t == TypePrimary || t == TypeOverride
}

// Status is the approval axis of a commission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusDenied    Status = "denied"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is the settlement axis of a commission, independent of Status.
type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// Commission is the canonical commission record.
//
// INVARIANTS:
//   - at most one primary per (EnrollmentID, AgentID)
//   - at most one override per EnrollmentID
//   - CommissionAmount is fixed at creation; only Status, PaymentStatus,
//     PaidAt and Notes change afterwards
type Commission struct {
	ID                 string
	AgentID            string
	MemberID           string
	EnrollmentID       string
	CommissionAmount   decimal.Decimal
	BasePremium        decimal.Decimal
	CoverageType       CoverageCode
	CommissionType     CommissionType
	OverrideForAgentID string // empty unless CommissionType is override
	Status             Status
	PaymentStatus      PaymentStatus
	Notes              string
	IdempotencyKey     string
	CreatedAt          time.Time
	PaidAt             *time.Time
}

// IdempotencyKey derives the stable key for one commission of an enrollment.
func IdempotencyKey(enrollmentID, agentID string, t CommissionType) string {
	return fmt.Sprintf("%s:%s:%s", enrollmentID, agentID, t)
}

// =============================================================================
// EXTERNAL INPUTS
// =============================================================================

// Enrollment is the completed enrollment handed over by the registration flow.
type Enrollment struct {
	EnrollmentID string
	MemberID     string
	AgentID      string // empty means the HOUSE bucket
	PlanNameRaw  string
	CoverageRaw  string
	HasAddOn     bool
}

// Agent is an enrolling agent and its single upline link.
type Agent struct {
	AgentID                string
	AgentNumber            string
	UplineAgentID          string
	OverrideCommissionRate decimal.Decimal
}

// =============================================================================
// DATE RANGE
// =============================================================================

// DateRange is an inclusive window over CreatedAt. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

func (r DateRange) String() string {
	f, t := "-inf", "+inf"
	if !r.From.IsZero() {
		f = r.From.Format(time.RFC3339)
	}
	if !r.To.IsZero() {
		t = r.To.Format(time.RFC3339)
	}
	return "[" + f + ", " + t + "]"
}

// Query selects commissions. An empty AgentID selects every agent.
type Query struct {
	AgentID string
	Range   DateRange
}
