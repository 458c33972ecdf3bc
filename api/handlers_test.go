package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/api"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/metrics"
	"github.com/Bdkelp/getmydpc-enrollment-sub008/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	handler *api.Handler
	router  http.Handler
	store   *sqlite.Store
	legacy  *sqlite.Legacy
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	legacy, err := sqlite.NewLegacy(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { legacy.Close() })

	h := api.NewHandler(store, legacy, commission.DefaultRateTable(), nil, metrics.NewMetrics())
	return &testServer{handler: h, router: api.NewRouter(h, nil), store: store, legacy: legacy}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) seedAgents(t *testing.T) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/agents", api.CreateAgentRequest{ID: "agent-up", AgentNumber: "MPP0001"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/agents", api.CreateAgentRequest{
		ID:            "agent-down",
		AgentNumber:   "MPP0002",
		UplineAgentID: "agent-up",
		OverrideRate:  "5.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) enroll(t *testing.T, id string) api.ProcessEnrollmentResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/enrollments", api.EnrollmentRequest{
		EnrollmentID: id,
		MemberID:     "mem-" + id,
		AgentID:      "agent-down",
		PlanName:     "MyPremierPlan Elite - Member Only",
		CoverageType: "Member Only",
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code, rec.Body.String())
	return decodeBody[api.ProcessEnrollmentResponse](t, rec)
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

func TestProcessEnrollment_RecordsPrimaryAndOverride(t *testing.T) {
	// GIVEN: a downline agent with a $5 override for its upline
	// WHEN: an Elite / Member Only enrollment is posted
	// THEN: $20 goes to the agent, $5 to the upline, both mirrored to legacy

	s := newTestServer(t)
	s.seedAgents(t)

	rec := s.do(t, http.MethodPost, "/api/enrollments", api.EnrollmentRequest{
		EnrollmentID: "enr-1",
		AgentID:      "agent-down",
		PlanName:     "MyPremierPlan Elite - Member Only",
		CoverageType: "Member Only",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[api.ProcessEnrollmentResponse](t, rec)
	assert.True(t, resp.Recorded)
	require.NotNil(t, resp.Primary)
	assert.Equal(t, "20.00", resp.Primary.Commission.CommissionAmount)
	assert.Equal(t, "119.00", resp.Primary.Commission.BasePremium)
	assert.True(t, resp.Primary.LegacyMirrored)
	require.NotNil(t, resp.Override)
	assert.Equal(t, "5.00", resp.Override.Commission.CommissionAmount)
	assert.Equal(t, "agent-up", resp.Override.Commission.AgentID)
	assert.Equal(t, "agent-down", resp.Override.Commission.OverrideForAgentID)
}

func TestProcessEnrollment_DuplicateIsNoOp(t *testing.T) {
	s := newTestServer(t)
	s.seedAgents(t)
	s.enroll(t, "enr-1")

	rec := s.do(t, http.MethodPost, "/api/enrollments", api.EnrollmentRequest{
		EnrollmentID: "enr-1",
		AgentID:      "agent-down",
		PlanName:     "MyPremierPlan Elite - Member Only",
		CoverageType: "Member Only",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[api.ProcessEnrollmentResponse](t, rec)
	assert.True(t, resp.PrimaryDuplicate)
	assert.True(t, resp.OverrideDuplicate)
	assert.True(t, resp.Recorded)

	list := s.do(t, http.MethodGet, "/api/agents/agent-down/commissions", nil)
	assert.Len(t, decodeBody[api.CommissionListResponse](t, list).Commissions, 1)
}

func TestProcessEnrollment_ValidationFails(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/enrollments", api.EnrollmentRequest{AgentID: "agent-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/enrollments", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

// =============================================================================
// QUOTES AND RATES
// =============================================================================

func TestQuote(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/quotes", api.QuoteRequest{
		PlanName:     "MyPremierPlan Plus",
		CoverageType: "Family",
		HasAddOn:     true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	q := decodeBody[api.QuoteDTO](t, rec)
	assert.Equal(t, "plus", q.Tier)
	assert.Equal(t, "MF", q.Coverage)
	assert.Equal(t, "23.50", q.CommissionAmount)
	assert.Equal(t, "199.00", q.BasePremium)
	assert.True(t, q.AddOnApplied)
}

func TestGetRates(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/rates", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Version  string           `json:"version"`
		AddOnFee string           `json:"add_on_fee"`
		Rates    []map[string]any `json:"rates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "builtin", doc.Version)
	assert.Equal(t, "2.50", doc.AddOnFee)
	assert.Len(t, doc.Rates, 12)
}

// =============================================================================
// AGENTS
// =============================================================================

func TestAgents(t *testing.T) {
	s := newTestServer(t)
	s.seedAgents(t)

	rec := s.do(t, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.AgentDTO](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/agents/agent-down", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a := decodeBody[api.AgentDTO](t, rec)
	assert.Equal(t, "agent-up", a.UplineAgentID)
	assert.Equal(t, "5.00", a.OverrideRate)

	rec = s.do(t, http.MethodGet, "/api/agents/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/agents", api.CreateAgentRequest{ID: "loop", UplineAgentID: "loop"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/agents", api.CreateAgentRequest{ID: "neg", OverrideRate: "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAgentCommissions_LegacyFallbackAndRange(t *testing.T) {
	s := newTestServer(t)
	s.seedAgents(t)
	s.enroll(t, "enr-1")

	rec := s.do(t, http.MethodGet, "/api/agents/agent-down/commissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[api.CommissionListResponse](t, rec)
	assert.Equal(t, "new", resp.Source)
	assert.Len(t, resp.Commissions, 1)

	rec = s.do(t, http.MethodGet, "/api/agents/agent-down/commissions?from=2000-01-01&to=2000-12-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[api.CommissionListResponse](t, rec)
	assert.Equal(t, "empty", resp.Source)
	assert.Empty(t, resp.Commissions)

	rec = s.do(t, http.MethodGet, "/api/agents/agent-down/commissions?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// COMMISSIONS AND PAYOUTS
// =============================================================================

func TestCommissionLifecycle(t *testing.T) {
	// GIVEN: a recorded primary commission
	// WHEN: approving it and marking it paid
	// THEN: stats move from pending to paid

	s := newTestServer(t)
	s.seedAgents(t)
	id := s.enroll(t, "enr-1").Primary.Commission.ID

	rec := s.do(t, http.MethodGet, "/api/commissions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decodeBody[api.CommissionDTO](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/commissions/"+id+"/status", api.UpdateStatusRequest{Status: "approved"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/commissions/"+id+"/status", api.UpdateStatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/commissions/mark-paid", api.MarkPaidRequest{CommissionIDs: []string{id, "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)
	batch := decodeBody[api.BatchPayoutResponse](t, rec)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.False(t, batch.Results[1].OK)

	rec = s.do(t, http.MethodGet, "/api/commissions/stats?agent_id=agent-down", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[api.StatsDTO](t, rec)
	assert.Equal(t, "20.00", stats.TotalEarned)
	assert.Equal(t, "20.00", stats.TotalPaid)
	assert.Equal(t, "0.00", stats.TotalPending)

	rec = s.do(t, http.MethodGet, "/api/commissions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchUpdatePayout_InvalidStatusFailsOnlyItsItem(t *testing.T) {
	s := newTestServer(t)
	s.seedAgents(t)
	a := s.enroll(t, "enr-1").Primary.Commission.ID
	b := s.enroll(t, "enr-2").Primary.Commission.ID

	rec := s.do(t, http.MethodPost, "/api/commissions/payouts", api.BatchPayoutRequest{
		Updates: []api.PayoutUpdateRequest{
			{CommissionID: a, PaymentStatus: "paid"},
			{CommissionID: b, PaymentStatus: "refunded"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[api.BatchPayoutResponse](t, rec)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	assert.Contains(t, resp.Results[1].Error, "refunded")

	rec = s.do(t, http.MethodPost, "/api/commissions/payouts", api.BatchPayoutRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.do(t, http.MethodPost, "/api/quotes", api.QuoteRequest{PlanName: "???"})
	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "commission_normalization_defaults_total")
}
