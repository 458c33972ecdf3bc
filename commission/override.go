package commission

import (
	"fmt"
	"strings"
)

// overrideNotePrefix starts the note of every override commission. The
// legacy store has no type column, so the note is how an override mirrored
// there is recognized on the way back.
const overrideNotePrefix = "Override for agent "

// ComputeOverride derives the upline's override commission for a primary
// commission written by agent. It returns false when the agent has no upline
// or no positive override rate.
//
// Overrides are one hop: the upline's own upline gets nothing from this
// enrollment. The amount is the agent's flat override rate, independent of
// the primary amount.
func ComputeOverride(agent Agent, primary Commission) (Commission, bool) {
	if agent.UplineAgentID == "" || !agent.OverrideCommissionRate.IsPositive() {
		return Commission{}, false
	}

	return Commission{
		AgentID:            agent.UplineAgentID,
		MemberID:           primary.MemberID,
		EnrollmentID:       primary.EnrollmentID,
		CommissionAmount:   RoundMoney(agent.OverrideCommissionRate),
		BasePremium:        primary.BasePremium,
		CoverageType:       primary.CoverageType,
		CommissionType:     TypeOverride,
		OverrideForAgentID: agent.AgentID,
		Status:             StatusPending,
		PaymentStatus:      PaymentUnpaid,
		Notes:              overrideNote(agent),
		IdempotencyKey:     IdempotencyKey(primary.EnrollmentID, agent.UplineAgentID, TypeOverride),
		CreatedAt:          primary.CreatedAt,
	}, true
}

// overrideNote names the downline as "<number> (<id>)", or just the id
// when the agent has no separate number.
func overrideNote(a Agent) string {
	if a.AgentNumber != "" && a.AgentNumber != a.AgentID {
		return fmt.Sprintf("%s%s (%s)", overrideNotePrefix, a.AgentNumber, a.AgentID)
	}
	return overrideNotePrefix + a.AgentID
}

// parseOverrideNote returns the downline agent id written by overrideNote.
func parseOverrideNote(notes string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(notes), overrideNotePrefix)
	if !ok {
		return "", false
	}
	if open := strings.LastIndex(rest, " ("); open >= 0 && strings.HasSuffix(rest, ")") {
		rest = rest[open+2 : len(rest)-1]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || strings.ContainsAny(rest, " ()") {
		return "", false
	}
	return rest, true
}
