/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the commission model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are strings with exactly two decimals ("20.00").

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.validate.Struct before touching the engine. Payout statuses are NOT
  validated here: an invalid status must fail only its own batch item.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rates.go: RateTableDoc type
*/
package api

import (
	"time"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/store/sqlite"
)

// =============================================================================
// ENROLLMENT
// =============================================================================

// EnrollmentRequest is a completed enrollment handed to the commission engine.
type EnrollmentRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	MemberID     string `json:"member_id"`
	AgentID      string `json:"agent_id"`
	PlanName     string `json:"plan_name" validate:"required"`
	CoverageType string `json:"coverage_type"`
	HasAddOn     bool   `json:"has_add_on"`
}

// WriteOutcomeDTO reports the dual write for one commission.
type WriteOutcomeDTO struct {
	Commission       CommissionDTO `json:"commission"`
	LegacyMirrored   bool          `json:"legacy_mirrored"`
	LegacySkipped    bool          `json:"legacy_skipped,omitempty"`
	LegacyWriteError string        `json:"legacy_write_error,omitempty"`
}

// ProcessEnrollmentResponse is the outcome of processing one enrollment.
type ProcessEnrollmentResponse struct {
	EnrollmentID      string           `json:"enrollment_id"`
	AgentID           string           `json:"agent_id"`
	Recorded          bool             `json:"recorded"`
	Quote             *QuoteDTO        `json:"quote,omitempty"`
	Primary           *WriteOutcomeDTO `json:"primary,omitempty"`
	PrimaryDuplicate  bool             `json:"primary_duplicate,omitempty"`
	Error             string           `json:"error,omitempty"`
	Override          *WriteOutcomeDTO `json:"override,omitempty"`
	OverrideDuplicate bool             `json:"override_duplicate,omitempty"`
	OverrideError     string           `json:"override_error,omitempty"`
}

// =============================================================================
// QUOTES AND RATES
// =============================================================================

// QuoteRequest asks for the commission of a plan without recording it.
type QuoteRequest struct {
	PlanName     string `json:"plan_name" validate:"required"`
	CoverageType string `json:"coverage_type"`
	HasAddOn     bool   `json:"has_add_on"`
}

// QuoteDTO is a resolved commission quote.
type QuoteDTO struct {
	Tier             string `json:"tier"`
	Coverage         string `json:"coverage"`
	CoverageName     string `json:"coverage_name"`
	CommissionAmount string `json:"commission_amount"`
	BasePremium      string `json:"base_premium"`
	AddOnApplied     bool   `json:"add_on_applied"`
}

// =============================================================================
// AGENTS
// =============================================================================

// AgentDTO represents an agent in API responses.
type AgentDTO struct {
	ID            string `json:"id"`
	AgentNumber   string `json:"agent_number,omitempty"`
	UplineAgentID string `json:"upline_agent_id,omitempty"`
	OverrideRate  string `json:"override_rate"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateAgentRequest is the request to create or update an agent.
type CreateAgentRequest struct {
	ID            string `json:"id" validate:"required"`
	AgentNumber   string `json:"agent_number"`
	UplineAgentID string `json:"upline_agent_id" validate:"omitempty,nefield=ID"`
	OverrideRate  string `json:"override_rate" validate:"omitempty,numeric"`
}

// =============================================================================
// COMMISSIONS
// =============================================================================

// CommissionDTO represents a commission in API responses.
type CommissionDTO struct {
	ID                 string `json:"id"`
	AgentID            string `json:"agent_id"`
	MemberID           string `json:"member_id,omitempty"`
	EnrollmentID       string `json:"enrollment_id"`
	CommissionAmount   string `json:"commission_amount"`
	BasePremium        string `json:"base_premium"`
	CoverageType       string `json:"coverage_type"`
	CommissionType     string `json:"commission_type"`
	OverrideForAgentID string `json:"override_for_agent_id,omitempty"`
	Status             string `json:"status"`
	PaymentStatus      string `json:"payment_status"`
	Notes              string `json:"notes,omitempty"`
	CreatedAt          string `json:"created_at"`
	PaidAt             string `json:"paid_at,omitempty"`
}

// CommissionListResponse wraps a commission query result.
type CommissionListResponse struct {
	AgentID     string          `json:"agent_id,omitempty"`
	Source      string          `json:"source"`
	Commissions []CommissionDTO `json:"commissions"`
}

// StatsDTO summarizes an agent's commissions.
type StatsDTO struct {
	AgentID      string `json:"agent_id,omitempty"`
	TotalEarned  string `json:"total_earned"`
	TotalPending string `json:"total_pending"`
	TotalPaid    string `json:"total_paid"`
	Count        int    `json:"count"`
	Source       string `json:"source"`
}

// UpdateStatusRequest moves a commission along the approval axis.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved paid denied cancelled"`
}

// =============================================================================
// PAYOUTS
// =============================================================================

// MarkPaidRequest marks a batch of commissions paid.
type MarkPaidRequest struct {
	CommissionIDs []string   `json:"commission_ids" validate:"required,min=1"`
	PaymentDate   *time.Time `json:"payment_date"`
}

// PayoutUpdateRequest is one item of a batch payout update.
type PayoutUpdateRequest struct {
	CommissionID  string     `json:"commission_id"`
	PaymentStatus string     `json:"payment_status"`
	PaymentDate   *time.Time `json:"payment_date"`
	Notes         *string    `json:"notes"`
}

// BatchPayoutRequest applies payout updates independently.
type BatchPayoutRequest struct {
	Updates []PayoutUpdateRequest `json:"updates" validate:"required,min=1"`
}

// PayoutResultDTO is the outcome of one batch item.
type PayoutResultDTO struct {
	CommissionID string `json:"commission_id"`
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
}

// BatchPayoutResponse reports a whole batch.
type BatchPayoutResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []PayoutResultDTO `json:"results"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCommissionDTO(c commission.Commission) CommissionDTO {
	dto := CommissionDTO{
		ID:                 c.ID,
		AgentID:            c.AgentID,
		MemberID:           c.MemberID,
		EnrollmentID:       c.EnrollmentID,
		CommissionAmount:   c.CommissionAmount.StringFixed(2),
		BasePremium:        c.BasePremium.StringFixed(2),
		CoverageType:       string(c.CoverageType),
		CommissionType:     string(c.CommissionType),
		OverrideForAgentID: c.OverrideForAgentID,
		Status:             string(c.Status),
		PaymentStatus:      string(c.PaymentStatus),
		Notes:              c.Notes,
		CreatedAt:          c.CreatedAt.Format(time.RFC3339),
	}
	if c.PaidAt != nil {
		dto.PaidAt = c.PaidAt.Format(time.RFC3339)
	}
	return dto
}

func toCommissionDTOs(cs []commission.Commission) []CommissionDTO {
	dtos := make([]CommissionDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toCommissionDTO(c)
	}
	return dtos
}

func toQuoteDTO(q commission.Quote) *QuoteDTO {
	return &QuoteDTO{
		Tier:             string(q.Tier),
		Coverage:         string(q.Coverage),
		CoverageName:     q.Coverage.DisplayName(),
		CommissionAmount: q.CommissionAmount.StringFixed(2),
		BasePremium:      q.BasePremium.StringFixed(2),
		AddOnApplied:     q.AddOnApplied,
	}
}

func toWriteOutcomeDTO(o *commission.WriteOutcome) *WriteOutcomeDTO {
	if o == nil {
		return nil
	}
	return &WriteOutcomeDTO{
		Commission:       toCommissionDTO(o.Commission),
		LegacyMirrored:   o.SecondaryOK,
		LegacySkipped:    o.SecondarySkipped,
		LegacyWriteError: o.SecondaryError,
	}
}

func toProcessResponse(res commission.ProcessResult) ProcessEnrollmentResponse {
	resp := ProcessEnrollmentResponse{
		EnrollmentID:      res.EnrollmentID,
		AgentID:           res.AgentID,
		Recorded:          res.Recorded(),
		Primary:           toWriteOutcomeDTO(res.Primary),
		PrimaryDuplicate:  res.PrimaryDuplicate,
		Override:          toWriteOutcomeDTO(res.Override),
		OverrideDuplicate: res.OverrideDuplicate,
	}
	if res.Quote != nil {
		resp.Quote = toQuoteDTO(*res.Quote)
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if res.OverrideErr != nil {
		resp.OverrideError = res.OverrideErr.Error()
	}
	return resp
}

func toAgentDTO(a sqlite.AgentRecord) AgentDTO {
	dto := AgentDTO{
		ID:            a.AgentID,
		AgentNumber:   a.AgentNumber,
		UplineAgentID: a.UplineAgentID,
		OverrideRate:  a.OverrideCommissionRate.StringFixed(2),
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toStatsDTO(agentID string, s commission.Stats) StatsDTO {
	return StatsDTO{
		AgentID:      agentID,
		TotalEarned:  s.TotalEarned.StringFixed(2),
		TotalPending: s.TotalPending.StringFixed(2),
		TotalPaid:    s.TotalPaid.StringFixed(2),
		Count:        s.Count,
		Source:       string(s.Source),
	}
}

func toBatchResponse(results []commission.PayoutResult) BatchPayoutResponse {
	resp := BatchPayoutResponse{Results: make([]PayoutResultDTO, len(results))}
	for i, r := range results {
		dto := PayoutResultDTO{CommissionID: r.CommissionID, OK: r.OK}
		if r.Err != nil {
			dto.Error = r.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
		}
		resp.Results[i] = dto
	}
	return resp
}
