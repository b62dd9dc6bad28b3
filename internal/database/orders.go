package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, branch_id, order_number, status, subtotal, discount_amount, tip_amount, total_amount,
	payment_method, amount_received, change_amount, drawer_session_id,
	void_reason, voided_by, voided_at, inventory_restored,
	created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.BranchID,
		&o.OrderNumber,
		&o.Status,
		&o.Subtotal,
		&o.DiscountAmount,
		&o.TipAmount,
		&o.TotalAmount,
		&o.PaymentMethod,
		&o.AmountReceived,
		&o.ChangeAmount,
		&o.DrawerSessionID,
		&o.VoidReason,
		&o.VoidedBy,
		&o.VoidedAt,
		&o.InventoryRestored,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// GetNextOrderNumber returns MAX+1 of the per-branch numeric suffix. Racy
// between concurrent checkouts; callers retry on the unique violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error) {
	const sql = `
		SELECT COALESCE(MAX(CAST(substring(order_number FROM 'KPS-(\d+)') AS INTEGER)), 0) + 1
		FROM orders WHERE branch_id = $1`
	var n int32
	err := q.db.QueryRow(ctx, sql, branchID).Scan(&n)
	return n, err
}

type CreateOrderParams struct {
	BranchID        uuid.UUID
	OrderNumber     string
	Subtotal        pgtype.Numeric
	DiscountAmount  pgtype.Numeric
	TipAmount       pgtype.Numeric
	TotalAmount     pgtype.Numeric
	PaymentMethod   PaymentMethod
	AmountReceived  pgtype.Numeric
	ChangeAmount    pgtype.Numeric
	DrawerSessionID pgtype.UUID
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		INSERT INTO orders (branch_id, order_number, status, subtotal, discount_amount, tip_amount, total_amount,
			payment_method, amount_received, change_amount, drawer_session_id, created_by)
		VALUES ($1, $2, 'COMPLETED', $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.OrderNumber, arg.Subtotal, arg.DiscountAmount, arg.TipAmount, arg.TotalAmount,
		arg.PaymentMethod, arg.AmountReceived, arg.ChangeAmount, arg.DrawerSessionID, arg.CreatedBy))
}

type GetOrderParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND branch_id = $2`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

// GetOrderForUpdate locks the order row so concurrent voids serialize.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders
		WHERE id = $1 AND branch_id = $2
		FOR NO KEY UPDATE`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type ListOrdersParams struct {
	BranchID  uuid.UUID
	Status    pgtype.Text // optional
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders
		WHERE branch_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4 + interval '1 day')
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := q.db.Query(ctx, sql, arg.BranchID, arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type VoidOrderParams struct {
	ID                uuid.UUID
	BranchID          uuid.UUID
	VoidReason        string
	VoidedBy          uuid.UUID
	InventoryRestored bool
}

// VoidOrder transitions COMPLETED -> VOIDED; the WHERE clause makes the
// terminal-state check atomic (no rows updated means wrong state).
func (q *Queries) VoidOrder(ctx context.Context, arg VoidOrderParams) (Order, error) {
	const sql = `
		UPDATE orders
		SET status = 'VOIDED', void_reason = $3, voided_by = $4, voided_at = now(),
			inventory_restored = $5, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND status = 'COMPLETED'
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.ID, arg.BranchID, arg.VoidReason, arg.VoidedBy, arg.InventoryRestored))
}

// --- Order items ---

const orderItemColumns = `id, order_id, menu_item_id, name_snapshot, quantity, unit_price, customization, line_total`

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.NameSnapshot,
		&i.Quantity,
		&i.UnitPrice,
		&i.Customization,
		&i.LineTotal,
	)
	return i, err
}

type CreateOrderItemParams struct {
	OrderID       uuid.UUID
	MenuItemID    uuid.UUID
	NameSnapshot  string
	Quantity      int32
	UnitPrice     pgtype.Numeric
	Customization pgtype.Text
	LineTotal     pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (order_id, menu_item_id, name_snapshot, quantity, unit_price, customization, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + orderItemColumns
	return scanOrderItem(q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.MenuItemID, arg.NameSnapshot, arg.Quantity, arg.UnitPrice, arg.Customization, arg.LineTotal))
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// --- Order item addons ---

const orderItemAddonColumns = `id, order_item_id, addon_id, name_snapshot, price`

func scanOrderItemAddon(row interface{ Scan(dest ...any) error }) (OrderItemAddon, error) {
	var a OrderItemAddon
	err := row.Scan(&a.ID, &a.OrderItemID, &a.AddonID, &a.NameSnapshot, &a.Price)
	return a, err
}

type CreateOrderItemAddonParams struct {
	OrderItemID  uuid.UUID
	AddonID      pgtype.UUID
	NameSnapshot string
	Price        pgtype.Numeric
}

func (q *Queries) CreateOrderItemAddon(ctx context.Context, arg CreateOrderItemAddonParams) (OrderItemAddon, error) {
	const sql = `
		INSERT INTO order_item_addons (order_item_id, addon_id, name_snapshot, price)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + orderItemAddonColumns
	return scanOrderItemAddon(q.db.QueryRow(ctx, sql,
		arg.OrderItemID, arg.AddonID, arg.NameSnapshot, arg.Price))
}

func (q *Queries) ListOrderItemAddonsByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemAddon, error) {
	const sql = `SELECT ` + orderItemAddonColumns + ` FROM order_item_addons WHERE order_item_id = $1 ORDER BY id`
	rows, err := q.db.Query(ctx, sql, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItemAddon
	for rows.Next() {
		a, err := scanOrderItemAddon(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
