/*
reader.go - Commission read path with legacy fallback

PURPOSE:
  Serves commission queries from the new store, falling back to the legacy
  store while the new store has no data for the queried scope.

ONE SOURCE PER QUERY:
  A query is served entirely from one store. The legacy store is consulted
  only when the new store errors or returns zero rows, so the two sources
  are never merged and a commission mirrored to both is never counted twice.

  Legacy rows are converted with FromLegacyShape before they leave this
  file; callers only ever see the canonical Commission. The legacy shape has
  no type column: overrides are recognized by the note the override
  calculator writes, so a legacy row whose note was edited or written by
  another client reads back as primary.
*/
package commission

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
)

// Source names the store that served a read.
type Source string

const (
	SourceNew    Source = "new"
	SourceLegacy Source = "legacy"
	SourceEmpty  Source = "empty"
)

// ReadResult is the outcome of a query.
type ReadResult struct {
	Commissions []Commission
	Source      Source
}

// Reader reads commissions with fallback to the legacy store.
type Reader struct {
	Store  Store
	Legacy LegacyStore // nil disables fallback

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewReader(store Store, legacy LegacyStore, logger *zap.Logger, m *metrics.Metrics) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{Store: store, Legacy: legacy, logger: logger, metrics: m}
}

// GetAgentCommissions returns an agent's commissions created within rng.
func (r *Reader) GetAgentCommissions(ctx context.Context, agentID string, rng DateRange) ([]Commission, error) {
	res, err := r.Find(ctx, Query{AgentID: agentID, Range: rng})
	if err != nil {
		return nil, err
	}
	return res.Commissions, nil
}

// Find serves q from the new store, or from the legacy store when the new
// store errors or has nothing for q.
func (r *Reader) Find(ctx context.Context, q Query) (ReadResult, error) {
	rows, newErr := r.Store.Find(ctx, q)
	if newErr == nil && len(rows) > 0 {
		r.metrics.IncRead(string(SourceNew))
		return ReadResult{Commissions: sortByCreated(rows), Source: SourceNew}, nil
	}
	if newErr != nil {
		r.logger.Warn("new store read failed, falling back to legacy",
			zap.String("agent_id", q.AgentID),
			zap.String("range", q.Range.String()),
			zap.Error(newErr))
	}

	if r.Legacy == nil {
		if newErr != nil {
			return ReadResult{}, newErr
		}
		r.metrics.IncRead(string(SourceEmpty))
		return ReadResult{Commissions: []Commission{}, Source: SourceEmpty}, nil
	}

	legacy, legacyErr := r.Legacy.Find(ctx, q)
	if legacyErr != nil {
		if newErr != nil {
			return ReadResult{}, errors.Join(newErr, legacyErr)
		}
		// The new store answered; an unreachable mirror must not fail the read.
		r.logger.Warn("legacy fallback read failed",
			zap.String("agent_id", q.AgentID),
			zap.Error(legacyErr))
		r.metrics.IncRead(string(SourceEmpty))
		return ReadResult{Commissions: []Commission{}, Source: SourceEmpty}, nil
	}

	if len(legacy) == 0 {
		r.metrics.IncRead(string(SourceEmpty))
		return ReadResult{Commissions: []Commission{}, Source: SourceEmpty}, nil
	}

	out := make([]Commission, 0, len(legacy))
	for _, rec := range legacy {
		out = append(out, FromLegacyShape(rec))
	}
	r.metrics.IncRead(string(SourceLegacy))
	return ReadResult{Commissions: sortByCreated(out), Source: SourceLegacy}, nil
}

func sortByCreated(cs []Commission) []Commission {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
	return cs
}

// =============================================================================
// STATS
// =============================================================================

// Stats aggregates commission amounts.
type Stats struct {
	TotalEarned  decimal.Decimal // status not denied/cancelled
	TotalPending decimal.Decimal // payment unpaid or processing
	TotalPaid    decimal.Decimal // payment paid
	Count        int
	Source       Source
}

// GetCommissionStats aggregates an agent's commissions, or all commissions
// when agentID is empty. Served through the same fallback as Find.
func (r *Reader) GetCommissionStats(ctx context.Context, agentID string) (Stats, error) {
	res, err := r.Find(ctx, Query{AgentID: agentID})
	if err != nil {
		return Stats{}, err
	}
	s := Aggregate(res.Commissions)
	s.Source = res.Source
	return s, nil
}

// Aggregate computes totals over cs.
func Aggregate(cs []Commission) Stats {
	s := Stats{
		TotalEarned:  decimal.Zero,
		TotalPending: decimal.Zero,
		TotalPaid:    decimal.Zero,
		Count:        len(cs),
	}
	for _, c := range cs {
		if c.Status != StatusDenied && c.Status != StatusCancelled {
			s.TotalEarned = s.TotalEarned.Add(c.CommissionAmount)
		}
		switch c.PaymentStatus {
		case PaymentUnpaid, PaymentProcessing:
			s.TotalPending = s.TotalPending.Add(c.CommissionAmount)
		case PaymentPaid:
			s.TotalPaid = s.TotalPaid.Add(c.CommissionAmount)
		}
	}
	return s
}
