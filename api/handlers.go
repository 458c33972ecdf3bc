/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to package commission.

ENDPOINTS:
  Enrollments:
    POST   /api/enrollments                 Compute and record commissions

  Quotes and rates:
    POST   /api/quotes                      Resolve a commission without recording
    GET    /api/rates                       Effective rate table

  Agents:
    GET    /api/agents                      List agents
    POST   /api/agents                      Create or update agent
    GET    /api/agents/{id}                 Get agent
    GET    /api/agents/{id}/commissions     Commission history (?from=&to=)

  Commissions:
    GET    /api/commissions/stats           Totals (?agent_id=)
    GET    /api/commissions/{id}            Get commission (new store)
    POST   /api/commissions/{id}/status     Approval transition
    POST   /api/commissions/mark-paid       Mark a batch paid
    POST   /api/commissions/payouts         Batch payout status update

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: new store and agent directory
  - Processor, Resolver, Reader, Payouts: the commission engine
  - Rates: the immutable rate table in effect

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, forbidden transitions
  - 404: Commission or agent not found
  - 409: Duplicate commission
  - 500: Internal errors
  Batch endpoints always answer 200 with one result per item.

  Enrollment processing never fails the request for a commission-layer
  problem: the enrollment already succeeded upstream. The response body
  reports what was recorded.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/factory"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Legacy  commission.LegacyStore
	Rates   *commission.RateTable
	Metrics *metrics.Metrics

	Processor *commission.Processor
	Resolver  *commission.Resolver
	Reader    *commission.Reader
	Payouts   *commission.Payouts

	rateFactory *factory.RateTableFactory
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewHandler wires the commission engine over the given stores. legacy may
// be nil to run without the mirror.
func NewHandler(store *sqlite.Store, legacy commission.LegacyStore, rates *commission.RateTable, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rates == nil {
		rates = commission.DefaultRateTable()
	}

	normalizer := commission.NewNormalizer(logger, m)
	resolver := commission.NewResolver(normalizer, rates)
	ledger := commission.NewLedger(store, legacy, logger, m)

	return &Handler{
		Store:       store,
		Legacy:      legacy,
		Rates:       rates,
		Metrics:     m,
		Processor:   commission.NewProcessor(resolver, ledger, store, logger, m),
		Resolver:    resolver,
		Reader:      commission.NewReader(store, legacy, logger, m),
		Payouts:     commission.NewPayouts(store, legacy, logger, m),
		rateFactory: factory.NewRateTableFactory(),
		validate:    validator.New(),
		logger:      logger,
	}
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// ProcessEnrollment computes and records the commissions of a completed
// enrollment. 201 when a primary was written now, 200 otherwise.
func (h *Handler) ProcessEnrollment(w http.ResponseWriter, r *http.Request) {
	var req EnrollmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res := h.Processor.Process(r.Context(), commission.Enrollment{
		EnrollmentID: req.EnrollmentID,
		MemberID:     req.MemberID,
		AgentID:      req.AgentID,
		PlanNameRaw:  req.PlanName,
		CoverageRaw:  req.CoverageType,
		HasAddOn:     req.HasAddOn,
	})

	status := http.StatusOK
	if res.Primary != nil && res.Primary.PrimaryOK {
		status = http.StatusCreated
	}
	writeJSON(w, status, toProcessResponse(res))
}

// =============================================================================
// QUOTE AND RATE HANDLERS
// =============================================================================

// Quote resolves a commission without recording it.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	q, err := h.Resolver.Resolve(req.PlanName, req.CoverageType, req.HasAddOn)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "No commission rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(q))
}

// GetRates returns the rate table in effect.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rateFactory.ToDoc(h.Rates))
}

// =============================================================================
// AGENT HANDLERS
// =============================================================================

// ListAgents returns all agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Store.ListAgents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agents", err)
		return
	}

	dtos := make([]AgentDTO, len(agents))
	for i, a := range agents {
		dtos[i] = toAgentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAgent creates or updates an agent.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if !h.decode(w, r, &req) {
		return
	}

	rate := decimal.Zero
	if req.OverrideRate != "" {
		d, err := decimal.NewFromString(req.OverrideRate)
		if err != nil || d.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid override_rate", err)
			return
		}
		rate = commission.RoundMoney(d)
	}

	agent := commission.Agent{
		AgentID:                req.ID,
		AgentNumber:            req.AgentNumber,
		UplineAgentID:          req.UplineAgentID,
		OverrideCommissionRate: rate,
	}
	if err := h.Store.SaveAgent(r.Context(), agent); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAgentDTO(sqlite.AgentRecord{Agent: agent}))
}

// GetAgent returns one agent.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	agent, err := h.Store.GetAgent(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get agent", err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentDTO(sqlite.AgentRecord{Agent: agent}))
}

// GetAgentCommissions returns an agent's commission history, served by the
// new store or, when it has nothing in range, by the legacy store.
func (h *Handler) GetAgentCommissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rng, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	res, err := h.Reader.Find(r.Context(), commission.Query{AgentID: id, Range: rng})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read commissions", err)
		return
	}
	writeJSON(w, http.StatusOK, CommissionListResponse{
		AgentID:     id,
		Source:      string(res.Source),
		Commissions: toCommissionDTOs(res.Commissions),
	})
}

// =============================================================================
// COMMISSION HANDLERS
// =============================================================================

// GetCommissionStats returns totals for one agent, or every agent when
// agent_id is absent.
func (h *Handler) GetCommissionStats(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")

	stats, err := h.Reader.GetCommissionStats(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(agentID, stats))
}

// GetCommission returns one commission from the new store.
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(c))
}

// UpdateCommissionStatus moves a commission along the approval axis.
func (h *Handler) UpdateCommissionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.Payouts.TransitionStatus(r.Context(), id, commission.Status(req.Status))
	if err != nil {
		writeEngineError(w, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toCommissionDTO(c))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// MarkCommissionsPaid marks every id paid. Each id succeeds or fails on its own.
func (h *Handler) MarkCommissionsPaid(w http.ResponseWriter, r *http.Request) {
	var req MarkPaidRequest
	if !h.decode(w, r, &req) {
		return
	}

	var paymentDate time.Time
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}
	results := h.Payouts.MarkCommissionsPaid(r.Context(), req.CommissionIDs, paymentDate)
	writeJSON(w, http.StatusOK, toBatchResponse(results))
}

// BatchUpdatePayout applies payout status updates independently.
func (h *Handler) BatchUpdatePayout(w http.ResponseWriter, r *http.Request) {
	var req BatchPayoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	updates := make([]commission.PayoutUpdate, len(req.Updates))
	for i, u := range req.Updates {
		updates[i] = commission.PayoutUpdate{
			CommissionID:  u.CommissionID,
			PaymentStatus: u.PaymentStatus,
			PaymentDate:   u.PaymentDate,
			Notes:         u.Notes,
		}
	}
	results := h.Payouts.BatchUpdatePayout(r.Context(), updates)
	writeJSON(w, http.StatusOK, toBatchResponse(results))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports whether the new store answers. The legacy store is not
// checked: the service runs without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "New store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body. It writes the 400 itself and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// parseRange reads ?from= and ?to= as dates (2006-01-02) or RFC3339
// timestamps. A date-only "to" covers the whole day.
func parseRange(r *http.Request) (commission.DateRange, error) {
	var rng commission.DateRange
	q := r.URL.Query()

	if s := q.Get("from"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return rng, fmt.Errorf("from: %w", err)
		}
		rng.From = t
	}
	if s := q.Get("to"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return rng, fmt.Errorf("to: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		rng.To = t
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return rng, errors.New("to is before from")
	}
	return rng, nil
}

func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	return t, false, err
}

// writeEngineError maps commission errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case commission.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, commission.ErrDuplicateCommission):
		writeError(w, http.StatusConflict, message, err)
	case commission.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
