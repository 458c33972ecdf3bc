// Package store provides in-memory commission stores.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
)

// =============================================================================
// MEMORY STORE - In-memory new store (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	commissions map[string]commission.Commission
	idempotency map[string]string // key -> commission id
	overrides   map[string]string // enrollment id -> override commission id
}

func NewMemory() *Memory {
	return &Memory{
		commissions: make(map[string]commission.Commission),
		idempotency: make(map[string]string),
		overrides:   make(map[string]string),
	}
}

// Insert adds a commission, enforcing the same uniqueness as the SQL schema.
func (m *Memory) Insert(_ context.Context, c commission.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := c.IdempotencyKey
	if key == "" {
		key = commission.IdempotencyKey(c.EnrollmentID, c.AgentID, c.CommissionType)
	}
	if _, exists := m.idempotency[key]; exists {
		return commission.ErrDuplicateCommission
	}
	if _, exists := m.commissions[c.ID]; exists {
		return commission.ErrDuplicateCommission
	}
	if c.CommissionType == commission.TypeOverride {
		if _, exists := m.overrides[c.EnrollmentID]; exists {
			return commission.ErrDuplicateCommission
		}
		m.overrides[c.EnrollmentID] = c.ID
	}

	m.commissions[c.ID] = c
	m.idempotency[key] = c.ID
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (commission.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.commissions[id]
	if !ok {
		return commission.Commission{}, commission.ErrCommissionNotFound
	}
	return c, nil
}

func (m *Memory) Find(_ context.Context, q commission.Query) ([]commission.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []commission.Commission
	for _, c := range m.commissions {
		if q.AgentID != "" && c.AgentID != q.AgentID {
			continue
		}
		if !q.Range.Contains(c.CreatedAt) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) UpdatePayment(_ context.Context, id string, u commission.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commissions[id]
	if !ok {
		return commission.ErrCommissionNotFound
	}
	c.PaymentStatus = u.PaymentStatus
	c.PaidAt = u.PaidAt
	if u.Notes != nil {
		c.Notes = *u.Notes
	}
	m.commissions[id] = c
	return nil
}

func (m *Memory) UpdateStatus(_ context.Context, id string, s commission.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commissions[id]
	if !ok {
		return commission.ErrCommissionNotFound
	}
	c.Status = s
	m.commissions[id] = c
	return nil
}

// =============================================================================
// LEGACY MEMORY STORE
// =============================================================================

type LegacyMemory struct {
	mu      sync.RWMutex
	records map[string]commission.LegacyCommissionRecord
}

func NewLegacyMemory() *LegacyMemory {
	return &LegacyMemory{records: make(map[string]commission.LegacyCommissionRecord)}
}

// Insert stores r. The legacy table has no uniqueness beyond the id; a
// repeated id overwrites, matching an upsert on the legacy primary key.
func (l *LegacyMemory) Insert(_ context.Context, r commission.LegacyCommissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[r.ID] = r
	return nil
}

func (l *LegacyMemory) Find(_ context.Context, q commission.Query) ([]commission.LegacyCommissionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []commission.LegacyCommissionRecord
	for _, r := range l.records {
		if q.AgentID != "" && r.AgentID != q.AgentID {
			continue
		}
		if !q.Range.Contains(r.CreatedAt) {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (l *LegacyMemory) SetPaid(_ context.Context, id string, paid bool, paidAt *time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[id]
	if !ok {
		return commission.ErrCommissionNotFound
	}
	r.Paid = paid
	r.PaidAt = paidAt
	l.records[id] = r
	return nil
}

// Len returns the number of mirrored records.
func (l *LegacyMemory) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// =============================================================================
// AGENT DIRECTORY
// =============================================================================

type Agents struct {
	mu     sync.RWMutex
	agents map[string]commission.Agent
}

func NewAgents(agents ...commission.Agent) *Agents {
	a := &Agents{agents: make(map[string]commission.Agent)}
	for _, ag := range agents {
		a.agents[ag.AgentID] = ag
	}
	return a
}

func (a *Agents) Put(ag commission.Agent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agents[ag.AgentID] = ag
}

func (a *Agents) GetAgent(_ context.Context, agentID string) (commission.Agent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ag, ok := a.agents[agentID]
	if !ok {
		return commission.Agent{}, commission.ErrAgentNotFound
	}
	return ag, nil
}
