/*
Package sqlite provides SQLite-backed implementations of the commission stores.

PURPOSE:
  Implements the persistence interfaces of package commission on SQLite.
  The new store and the legacy store are separate handles on separate
  databases, so either can be unavailable without taking down the other.

INTERFACES IMPLEMENTED:
  Store:  commission.Store (new, authoritative) and commission.AgentDirectory
  Legacy: commission.LegacyStore (legacy mirror, see legacy.go)

UNIQUENESS ENFORCEMENT:
  The commissions table carries the uniqueness the ledger relies on:
  - idempotency_key UNIQUE
  - UNIQUE(enrollment_id, agent_id, commission_type)
  - idx_unique_enrollment_override: one override per enrollment
  Any violation surfaces as commission.ErrDuplicateCommission.

KEY TABLES:
  commissions: canonical commission records
  agents:      agent directory (upline and override rate)

MONEY AND TIME:
  Decimal amounts are stored as TEXT to keep exact cents. Timestamps are
  stored as fixed-width UTC text so that string comparison orders them.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are limited to a
  single connection; each new connection would otherwise open a fresh,
  empty database.

USAGE:
  store, err := sqlite.New("./data/commissions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := commission.NewLedger(store, legacy, logger, metrics)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements the new commission store and the agent directory.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Commissions (new, authoritative store)
	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		member_id TEXT,
		enrollment_id TEXT NOT NULL,
		commission_amount TEXT NOT NULL,
		base_premium TEXT NOT NULL,
		coverage_type TEXT NOT NULL,
		commission_type TEXT NOT NULL,
		override_for_agent_id TEXT,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		notes TEXT,
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		paid_at TEXT,
		UNIQUE (enrollment_id, agent_id, commission_type)
	);

	-- One override per enrollment (single-hop hierarchy)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_enrollment_override
		ON commissions(enrollment_id)
		WHERE commission_type = 'override';

	-- Agent history queries (hot path)
	CREATE INDEX IF NOT EXISTS idx_commissions_agent_created
		ON commissions(agent_id, created_at);

	CREATE INDEX IF NOT EXISTS idx_commissions_created
		ON commissions(created_at);

	-- Agents
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		agent_number TEXT,
		upline_agent_id TEXT,
		override_rate TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COMMISSION STORE (commission.Store interface)
// =============================================================================

const commissionColumns = `id, agent_id, member_id, enrollment_id, commission_amount, base_premium,
	coverage_type, commission_type, override_for_agent_id, status, payment_status,
	notes, idempotency_key, created_at, paid_at`

// Insert adds a commission. Uniqueness violations return
// commission.ErrDuplicateCommission.
func (s *Store) Insert(ctx context.Context, c commission.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.IdempotencyKey
	if key == "" {
		key = commission.IdempotencyKey(c.EnrollmentID, c.AgentID, c.CommissionType)
	}

	query := `INSERT INTO commissions (` + commissionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.AgentID,
		nullString(c.MemberID),
		c.EnrollmentID,
		c.CommissionAmount.StringFixed(2),
		c.BasePremium.StringFixed(2),
		string(c.CoverageType),
		string(c.CommissionType),
		nullString(c.OverrideForAgentID),
		string(c.Status),
		string(c.PaymentStatus),
		nullString(c.Notes),
		key,
		formatTime(c.CreatedAt),
		nullTime(c.PaidAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return commission.ErrDuplicateCommission
		}
		return fmt.Errorf("failed to insert commission: %w", err)
	}
	return nil
}

// Get returns one commission or commission.ErrCommissionNotFound.
func (s *Store) Get(ctx context.Context, id string) (commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+commissionColumns+" FROM commissions WHERE id = ?", id)
	c, err := scanCommission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return commission.Commission{}, commission.ErrCommissionNotFound
	}
	return c, err
}

// Find returns commissions for an agent (or all agents) inside a date range,
// ordered by created_at.
func (s *Store) Find(ctx context.Context, q commission.Query) ([]commission.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if q.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, q.AgentID)
	}
	if !q.Range.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(q.Range.From))
	}
	if !q.Range.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, formatTime(q.Range.To))
	}

	query := "SELECT " + commissionColumns + " FROM commissions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commissions: %w", err)
	}
	defer rows.Close()

	var commissions []commission.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		commissions = append(commissions, c)
	}
	return commissions, rows.Err()
}

// UpdatePayment applies a payout patch to one commission.
func (s *Store) UpdatePayment(ctx context.Context, id string, u commission.PaymentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE commissions SET payment_status = ?, paid_at = ? WHERE id = ?`
	args := []any{string(u.PaymentStatus), nullTime(u.PaidAt), id}
	if u.Notes != nil {
		query = `UPDATE commissions SET payment_status = ?, paid_at = ?, notes = ? WHERE id = ?`
		args = []any{string(u.PaymentStatus), nullTime(u.PaidAt), *u.Notes, id}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus sets the approval status of one commission.
func (s *Store) UpdateStatus(ctx context.Context, id string, status commission.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE commissions SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommission(row scanner) (commission.Commission, error) {
	var (
		c                  commission.Commission
		memberID           sql.NullString
		amount             string
		premium            string
		coverage           string
		commissionType     string
		overrideForAgentID sql.NullString
		status             string
		paymentStatus      string
		notes              sql.NullString
		createdAt          string
		paidAt             sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.AgentID, &memberID, &c.EnrollmentID, &amount, &premium,
		&coverage, &commissionType, &overrideForAgentID, &status, &paymentStatus,
		&notes, &c.IdempotencyKey, &createdAt, &paidAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan commission: %w", err)
	}

	c.MemberID = memberID.String
	c.CommissionAmount = parseMoney(amount)
	c.BasePremium = parseMoney(premium)
	c.CoverageType = commission.CoverageCode(coverage)
	c.CommissionType = commission.CommissionType(commissionType)
	c.OverrideForAgentID = overrideForAgentID.String
	c.Status = commission.Status(status)
	c.PaymentStatus = commission.PaymentStatus(paymentStatus)
	c.Notes = notes.String
	c.CreatedAt = parseTime(createdAt)
	if paidAt.Valid {
		t := parseTime(paidAt.String)
		c.PaidAt = &t
	}
	return c, nil
}

// =============================================================================
// AGENT DIRECTORY (commission.AgentDirectory interface)
// =============================================================================

// AgentRecord is a stored agent.
type AgentRecord struct {
	commission.Agent
	CreatedAt time.Time
}

// SaveAgent creates or replaces an agent.
func (s *Store) SaveAgent(ctx context.Context, a commission.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO agents (id, agent_number, upline_agent_id, override_rate, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_number = excluded.agent_number,
			upline_agent_id = excluded.upline_agent_id,
			override_rate = excluded.override_rate
	`

	_, err := s.db.ExecContext(ctx, query,
		a.AgentID,
		nullString(a.AgentNumber),
		nullString(a.UplineAgentID),
		a.OverrideCommissionRate.StringFixed(2),
		formatTime(time.Now()),
	)
	return err
}

// GetAgent returns the agent or commission.ErrAgentNotFound.
func (s *Store) GetAgent(ctx context.Context, id string) (commission.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanAgent(s.db.QueryRowContext(ctx,
		"SELECT id, agent_number, upline_agent_id, override_rate, created_at FROM agents WHERE id = ?",
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return commission.Agent{}, fmt.Errorf("%w: %s", commission.ErrAgentNotFound, id)
	}
	if err != nil {
		return commission.Agent{}, err
	}
	return rec.Agent, nil
}

// ListAgents returns all agents.
func (s *Store) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, agent_number, upline_agent_id, override_rate, created_at FROM agents ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []AgentRecord
	for rows.Next() {
		rec, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, rec)
	}
	return agents, rows.Err()
}

func scanAgent(row scanner) (AgentRecord, error) {
	var (
		rec       AgentRecord
		number    sql.NullString
		upline    sql.NullString
		rate      string
		createdAt string
	)
	if err := row.Scan(&rec.AgentID, &number, &upline, &rate, &createdAt); err != nil {
		return rec, err
	}
	rec.AgentNumber = number.String
	rec.UplineAgentID = upline.String
	rec.OverrideCommissionRate = parseMoney(rate)
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.UTC()
}

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return commission.RoundMoney(d)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return commission.ErrCommissionNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
