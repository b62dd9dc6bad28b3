package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const drawerColumns = `id, branch_id, status, opening_float, opened_by, opened_at,
	closed_by, closed_at, counted_amount, expected_amount, over_short`

func scanDrawerSession(row interface{ Scan(dest ...any) error }) (DrawerSession, error) {
	var s DrawerSession
	err := row.Scan(
		&s.ID,
		&s.BranchID,
		&s.Status,
		&s.OpeningFloat,
		&s.OpenedBy,
		&s.OpenedAt,
		&s.ClosedBy,
		&s.ClosedAt,
		&s.CountedAmount,
		&s.ExpectedAmount,
		&s.OverShort,
	)
	return s, err
}

// GetOpenDrawerSession returns the branch's current open session, if any.
// A partial unique index guarantees at most one per branch.
func (q *Queries) GetOpenDrawerSession(ctx context.Context, branchID uuid.UUID) (DrawerSession, error) {
	const sql = `SELECT ` + drawerColumns + ` FROM drawer_sessions
		WHERE branch_id = $1 AND status = 'OPEN'`
	return scanDrawerSession(q.db.QueryRow(ctx, sql, branchID))
}

type CreateDrawerSessionParams struct {
	BranchID     uuid.UUID
	OpeningFloat pgtype.Numeric
	OpenedBy     uuid.UUID
}

func (q *Queries) CreateDrawerSession(ctx context.Context, arg CreateDrawerSessionParams) (DrawerSession, error) {
	const sql = `
		INSERT INTO drawer_sessions (branch_id, status, opening_float, opened_by)
		VALUES ($1, 'OPEN', $2, $3)
		RETURNING ` + drawerColumns
	return scanDrawerSession(q.db.QueryRow(ctx, sql, arg.BranchID, arg.OpeningFloat, arg.OpenedBy))
}

type CloseDrawerSessionParams struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	ClosedBy       uuid.UUID
	CountedAmount  pgtype.Numeric
	ExpectedAmount pgtype.Numeric
	OverShort      pgtype.Numeric
}

func (q *Queries) CloseDrawerSession(ctx context.Context, arg CloseDrawerSessionParams) (DrawerSession, error) {
	const sql = `
		UPDATE drawer_sessions
		SET status = 'CLOSED', closed_by = $3, closed_at = now(),
			counted_amount = $4, expected_amount = $5, over_short = $6
		WHERE id = $1 AND branch_id = $2 AND status = 'OPEN'
		RETURNING ` + drawerColumns
	return scanDrawerSession(q.db.QueryRow(ctx, sql,
		arg.ID, arg.BranchID, arg.ClosedBy, arg.CountedAmount, arg.ExpectedAmount, arg.OverShort))
}

// SumCashSalesBySession totals completed CASH orders captured during the
// session. Voided cash orders are excluded; the refund leaves the drawer
// when the void happens, so they no longer count toward expected cash.
func (q *Queries) SumCashSalesBySession(ctx context.Context, sessionID uuid.UUID) (pgtype.Numeric, error) {
	const sql = `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE drawer_session_id = $1 AND payment_method = 'CASH' AND status = 'COMPLETED'`
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sql, sessionID).Scan(&n)
	return n, err
}

// --- Cash movements ---

const cashMovementColumns = `id, session_id, direction, amount, note, created_by, created_at`

func scanCashMovement(row interface{ Scan(dest ...any) error }) (CashMovement, error) {
	var m CashMovement
	err := row.Scan(&m.ID, &m.SessionID, &m.Direction, &m.Amount, &m.Note, &m.CreatedBy, &m.CreatedAt)
	return m, err
}

type CreateCashMovementParams struct {
	SessionID uuid.UUID
	Direction CashDirection
	Amount    pgtype.Numeric
	Note      pgtype.Text
	CreatedBy uuid.UUID
}

func (q *Queries) CreateCashMovement(ctx context.Context, arg CreateCashMovementParams) (CashMovement, error) {
	const sql = `
		INSERT INTO cash_movements (session_id, direction, amount, note, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + cashMovementColumns
	return scanCashMovement(q.db.QueryRow(ctx, sql,
		arg.SessionID, arg.Direction, arg.Amount, arg.Note, arg.CreatedBy))
}

func (q *Queries) ListCashMovementsBySession(ctx context.Context, sessionID uuid.UUID) ([]CashMovement, error) {
	const sql = `SELECT ` + cashMovementColumns + ` FROM cash_movements
		WHERE session_id = $1 ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CashMovement
	for rows.Next() {
		m, err := scanCashMovement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type SumCashMovementsRow struct {
	TotalIn  pgtype.Numeric
	TotalOut pgtype.Numeric
}

func (q *Queries) SumCashMovementsBySession(ctx context.Context, sessionID uuid.UUID) (SumCashMovementsRow, error) {
	const sql = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE direction = 'IN'), 0),
			COALESCE(SUM(amount) FILTER (WHERE direction = 'OUT'), 0)
		FROM cash_movements
		WHERE session_id = $1`
	var r SumCashMovementsRow
	err := q.db.QueryRow(ctx, sql, sessionID).Scan(&r.TotalIn, &r.TotalOut)
	return r, err
}
