/*
enrollment.go - Commission processing for a completed enrollment

PURPOSE:
  The hand-off point from the enrollment workflow. Called once per completed
  enrollment, synchronously:

    Normalizer -> Resolver -> Ledger(primary)
               -> AgentDirectory -> ComputeOverride -> Ledger(override)

FAILURE ISOLATION:
  Process never returns an error. Enrollment success is decoupled from
  commission success: a RateNotFound or a new-store failure leaves the
  enrollment intact and is reported in ProcessResult, logged, and counted
  so reconciliation can find the gap.

RETRIES:
  Re-submitting the same enrollment is a no-op. The new store rejects the
  second primary (and override) by (enrollment, agent, type); the processor
  reports Duplicate and skips the legacy mirror for it.
*/
package commission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
)

// ProcessResult reports what happened to one enrollment's commissions.
type ProcessResult struct {
	EnrollmentID string
	AgentID      string
	Quote        *Quote

	Primary          *WriteOutcome
	PrimaryDuplicate bool
	Err              error // rate or new-store failure for the primary

	Override          *WriteOutcome
	OverrideDuplicate bool
	OverrideErr       error
}

// Recorded reports whether a primary commission exists for the enrollment,
// either written now or already present.
func (r ProcessResult) Recorded() bool {
	return r.PrimaryDuplicate || (r.Primary != nil && r.Primary.PrimaryOK)
}

// Processor turns enrollments into commissions.
type Processor struct {
	resolver *Resolver
	ledger   *Ledger
	agents   AgentDirectory // nil disables overrides

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewProcessor(resolver *Resolver, ledger *Ledger, agents AgentDirectory, logger *zap.Logger, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{resolver: resolver, ledger: ledger, agents: agents, logger: logger, metrics: m}
}

// Process records the primary commission and, when the agent has an upline
// with an override rate, the override commission.
func (p *Processor) Process(ctx context.Context, e Enrollment) ProcessResult {
	agentID := e.AgentID
	if agentID == "" {
		agentID = HouseAgentID
	}
	res := ProcessResult{EnrollmentID: e.EnrollmentID, AgentID: agentID}
	log := p.logger.With(
		zap.String("enrollment_id", e.EnrollmentID),
		zap.String("agent_id", agentID))

	quote, err := p.resolver.Resolve(e.PlanNameRaw, e.CoverageRaw, e.HasAddOn)
	if err != nil {
		p.metrics.IncRateNotFound()
		log.Error("no commission rate; enrollment left without commission",
			zap.String("plan", e.PlanNameRaw),
			zap.String("coverage", e.CoverageRaw),
			zap.Error(err))
		res.Err = err
		return res
	}
	res.Quote = &quote

	primary := Commission{
		AgentID:          agentID,
		MemberID:         e.MemberID,
		EnrollmentID:     e.EnrollmentID,
		CommissionAmount: quote.CommissionAmount,
		BasePremium:      quote.BasePremium,
		CoverageType:     quote.Coverage,
		CommissionType:   TypePrimary,
		Notes:            primaryNotes(e, quote),
	}

	out, err := p.ledger.Record(ctx, primary)
	switch {
	case errors.Is(err, ErrDuplicateCommission):
		res.PrimaryDuplicate = true
		log.Info("primary commission already recorded; skipping")
	case err != nil:
		res.Err = err
		log.Error("primary commission not recorded", zap.Error(err))
		return res
	default:
		res.Primary = &out
		primary = out.Commission
	}

	p.processOverride(ctx, log, agentID, primary, &res)
	return res
}

func (p *Processor) processOverride(ctx context.Context, log *zap.Logger, agentID string, primary Commission, res *ProcessResult) {
	if p.agents == nil || agentID == HouseAgentID {
		return
	}

	agent, err := p.agents.GetAgent(ctx, agentID)
	if err != nil {
		if !errors.Is(err, ErrAgentNotFound) {
			res.OverrideErr = err
		}
		log.Warn("agent lookup failed; no override computed", zap.Error(err))
		return
	}

	override, ok := ComputeOverride(agent, primary)
	if !ok {
		return
	}
	override.CreatedAt = primary.CreatedAt

	out, err := p.ledger.Record(ctx, override)
	switch {
	case errors.Is(err, ErrDuplicateCommission):
		res.OverrideDuplicate = true
		log.Info("override commission already recorded; skipping",
			zap.String("upline_agent_id", override.AgentID))
	case err != nil:
		res.OverrideErr = err
		log.Error("override commission not recorded",
			zap.String("upline_agent_id", override.AgentID),
			zap.Error(err))
	default:
		res.Override = &out
	}
}

func primaryNotes(e Enrollment, q Quote) string {
	notes := fmt.Sprintf("%s / %s", PlanDisplayName(e.PlanNameRaw), q.Coverage.DisplayName())
	if q.AddOnApplied {
		notes += " + add-on"
	}
	return notes
}
