package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Bdkelp/getmydpc-enrollment-sub008/commission"
)

// =============================================================================
// LEGACY STORE (commission.LegacyStore interface)
// =============================================================================

// Legacy is the legacy commissions table: camelCase columns, REAL money, a
// single paid flag and no commission type. It lives in its own database.
type Legacy struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewLegacy opens the legacy store at dbPath.
func NewLegacy(dbPath string) (*Legacy, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS legacy_commissions (
		id TEXT PRIMARY KEY,
		agentId TEXT NOT NULL,
		memberId TEXT,
		enrollmentId TEXT,
		commissionAmount REAL NOT NULL,
		planType TEXT,
		planPrice REAL,
		status TEXT,
		paid INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		createdAt TEXT NOT NULL,
		paidAt TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_legacy_agent_created
		ON legacy_commissions(agentId, createdAt);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate legacy database: %w", err)
	}
	return &Legacy{db: db}, nil
}

// Close closes the database connection.
func (l *Legacy) Close() error {
	return l.db.Close()
}

// Insert writes r, replacing any row with the same id.
func (l *Legacy) Insert(ctx context.Context, r commission.LegacyCommissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	query := `
		INSERT INTO legacy_commissions
		(id, agentId, memberId, enrollmentId, commissionAmount, planType, planPrice,
		 status, paid, notes, createdAt, paidAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			commissionAmount = excluded.commissionAmount,
			status = excluded.status,
			paid = excluded.paid,
			notes = excluded.notes,
			paidAt = excluded.paidAt
	`
	_, err := l.db.ExecContext(ctx, query,
		r.ID,
		r.AgentID,
		nullString(r.MemberID),
		nullString(r.EnrollmentID),
		r.Amount,
		nullString(r.PlanType),
		r.PlanPrice,
		nullString(r.Status),
		r.Paid,
		nullString(r.Notes),
		formatTime(r.CreatedAt),
		nullTime(r.PaidAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert legacy commission: %w", err)
	}
	return nil
}

// Find returns legacy rows for an agent (or all agents) inside a date range.
func (l *Legacy) Find(ctx context.Context, q commission.Query) ([]commission.LegacyCommissionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if q.AgentID != "" {
		where = append(where, "agentId = ?")
		args = append(args, q.AgentID)
	}
	if !q.Range.From.IsZero() {
		where = append(where, "createdAt >= ?")
		args = append(args, formatTime(q.Range.From))
	}
	if !q.Range.To.IsZero() {
		where = append(where, "createdAt <= ?")
		args = append(args, formatTime(q.Range.To))
	}

	query := `SELECT id, agentId, memberId, enrollmentId, commissionAmount, planType, planPrice,
		status, paid, notes, createdAt, paidAt FROM legacy_commissions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY createdAt ASC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy commissions: %w", err)
	}
	defer rows.Close()

	var records []commission.LegacyCommissionRecord
	for rows.Next() {
		var (
			r            commission.LegacyCommissionRecord
			memberID     sql.NullString
			enrollmentID sql.NullString
			planType     sql.NullString
			planPrice    sql.NullFloat64
			status       sql.NullString
			notes        sql.NullString
			createdAt    string
			paidAt       sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.AgentID, &memberID, &enrollmentID, &r.Amount, &planType,
			&planPrice, &status, &r.Paid, &notes, &createdAt, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan legacy commission: %w", err)
		}
		r.MemberID = memberID.String
		r.EnrollmentID = enrollmentID.String
		r.PlanType = planType.String
		r.PlanPrice = planPrice.Float64
		r.Status = status.String
		r.Notes = notes.String
		r.CreatedAt = parseTime(createdAt)
		if paidAt.Valid {
			t := parseTime(paidAt.String)
			r.PaidAt = &t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SetPaid mirrors a payout onto the paid flag.
func (l *Legacy) SetPaid(ctx context.Context, id string, paid bool, paidAt *time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx,
		"UPDATE legacy_commissions SET paid = ?, paidAt = ? WHERE id = ?",
		paid, nullTime(paidAt), id)
	if err != nil {
		return fmt.Errorf("failed to update legacy paid flag: %w", err)
	}
	return requireAffected(res)
}
