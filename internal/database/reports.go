package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetDailySalesParams struct {
	BranchID  uuid.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetDailySalesRow struct {
	SaleDate     pgtype.Date
	OrderCount   int64
	VoidedCount  int64
	GrossRevenue pgtype.Numeric
	TotalTips    pgtype.Numeric
	NetRevenue   pgtype.Numeric
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	const sql = `
		SELECT
			created_at::date AS sale_date,
			COUNT(*) FILTER (WHERE status = 'COMPLETED') AS order_count,
			COUNT(*) FILTER (WHERE status = 'VOIDED') AS voided_count,
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'COMPLETED'), 0) AS gross_revenue,
			COALESCE(SUM(tip_amount) FILTER (WHERE status = 'COMPLETED'), 0) AS total_tips,
			COALESCE(SUM(total_amount - tip_amount) FILTER (WHERE status = 'COMPLETED'), 0) AS net_revenue
		FROM orders
		WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3 + interval '1 day'
		GROUP BY created_at::date
		ORDER BY sale_date`
	rows, err := q.db.Query(ctx, sql, arg.BranchID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.VoidedCount, &r.GrossRevenue, &r.TotalTips, &r.NetRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type GetTopItemsParams struct {
	BranchID  uuid.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
}

type GetTopItemsRow struct {
	MenuItemID   uuid.UUID
	Name         string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetTopItems(ctx context.Context, arg GetTopItemsParams) ([]GetTopItemsRow, error) {
	const sql = `
		SELECT oi.menu_item_id, oi.name_snapshot, SUM(oi.quantity)::bigint, COALESCE(SUM(oi.line_total), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.branch_id = $1 AND o.status = 'COMPLETED'
		  AND o.created_at >= $2 AND o.created_at < $3 + interval '1 day'
		GROUP BY oi.menu_item_id, oi.name_snapshot
		ORDER BY SUM(oi.quantity) DESC
		LIMIT $4`
	rows, err := q.db.Query(ctx, sql, arg.BranchID, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetTopItemsRow
	for rows.Next() {
		var r GetTopItemsRow
		if err := rows.Scan(&r.MenuItemID, &r.Name, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type GetPaymentSummaryParams struct {
	BranchID  uuid.UUID
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetPaymentSummaryRow struct {
	PaymentMethod PaymentMethod
	OrderCount    int64
	TotalAmount   pgtype.Numeric
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg GetPaymentSummaryParams) ([]GetPaymentSummaryRow, error) {
	const sql = `
		SELECT payment_method, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE branch_id = $1 AND status = 'COMPLETED'
		  AND created_at >= $2 AND created_at < $3 + interval '1 day'
		GROUP BY payment_method
		ORDER BY payment_method`
	rows, err := q.db.Query(ctx, sql, arg.BranchID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetPaymentSummaryRow
	for rows.Next() {
		var r GetPaymentSummaryRow
		if err := rows.Scan(&r.PaymentMethod, &r.OrderCount, &r.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type GetBranchComparisonParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetBranchComparisonRow struct {
	BranchID     uuid.UUID
	BranchName   string
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetBranchComparison(ctx context.Context, arg GetBranchComparisonParams) ([]GetBranchComparisonRow, error) {
	const sql = `
		SELECT b.id, b.name,
			COUNT(o.id) FILTER (WHERE o.status = 'COMPLETED'),
			COALESCE(SUM(o.total_amount) FILTER (WHERE o.status = 'COMPLETED'), 0)
		FROM branches b
		LEFT JOIN orders o ON o.branch_id = b.id
			AND o.created_at >= $1 AND o.created_at < $2 + interval '1 day'
		WHERE b.is_active = true
		GROUP BY b.id, b.name
		ORDER BY b.name`
	rows, err := q.db.Query(ctx, sql, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetBranchComparisonRow
	for rows.Next() {
		var r GetBranchComparisonRow
		if err := rows.Scan(&r.BranchID, &r.BranchName, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
