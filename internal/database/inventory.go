package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const inventoryColumns = `id, branch_id, name, unit, cost_per_unit, quantity, min_threshold, max_threshold, is_active, created_at, updated_at`

func scanInventoryItem(row interface{ Scan(dest ...any) error }) (InventoryItem, error) {
	var i InventoryItem
	err := row.Scan(
		&i.ID,
		&i.BranchID,
		&i.Name,
		&i.Unit,
		&i.CostPerUnit,
		&i.Quantity,
		&i.MinThreshold,
		&i.MaxThreshold,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) ListInventoryByBranch(ctx context.Context, branchID uuid.UUID) ([]InventoryItem, error) {
	const sql = `SELECT ` + inventoryColumns + ` FROM inventory_items
		WHERE branch_id = $1 AND is_active = true
		ORDER BY name`
	rows, err := q.db.Query(ctx, sql, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryItem
	for rows.Next() {
		i, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type GetInventoryItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetInventoryItem(ctx context.Context, arg GetInventoryItemParams) (InventoryItem, error) {
	const sql = `SELECT ` + inventoryColumns + ` FROM inventory_items
		WHERE id = $1 AND branch_id = $2 AND is_active = true`
	return scanInventoryItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type GetInventoryItemByNameParams struct {
	BranchID uuid.UUID
	Name     string
}

// GetInventoryItemByName does a case-insensitive exact-name lookup; used by
// the legacy addon fallback.
func (q *Queries) GetInventoryItemByName(ctx context.Context, arg GetInventoryItemByNameParams) (InventoryItem, error) {
	const sql = `SELECT ` + inventoryColumns + ` FROM inventory_items
		WHERE branch_id = $1 AND lower(name) = lower($2) AND is_active = true
		LIMIT 1`
	return scanInventoryItem(q.db.QueryRow(ctx, sql, arg.BranchID, arg.Name))
}

type CreateInventoryItemParams struct {
	BranchID     uuid.UUID
	Name         string
	Unit         string
	CostPerUnit  pgtype.Numeric
	Quantity     pgtype.Numeric
	MinThreshold pgtype.Numeric
	MaxThreshold pgtype.Numeric
}

func (q *Queries) CreateInventoryItem(ctx context.Context, arg CreateInventoryItemParams) (InventoryItem, error) {
	const sql = `
		INSERT INTO inventory_items (branch_id, name, unit, cost_per_unit, quantity, min_threshold, max_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING ` + inventoryColumns
	return scanInventoryItem(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.Name, arg.Unit, arg.CostPerUnit, arg.Quantity, arg.MinThreshold, arg.MaxThreshold))
}

type UpdateInventoryItemParams struct {
	ID           uuid.UUID
	BranchID     uuid.UUID
	Name         string
	Unit         string
	CostPerUnit  pgtype.Numeric
	MinThreshold pgtype.Numeric
	MaxThreshold pgtype.Numeric
}

// UpdateInventoryItem deliberately does not touch quantity; stock changes
// go through AdjustStock so every change leaves a movement row.
func (q *Queries) UpdateInventoryItem(ctx context.Context, arg UpdateInventoryItemParams) (InventoryItem, error) {
	const sql = `
		UPDATE inventory_items
		SET name = $3, unit = $4, cost_per_unit = $5, min_threshold = $6, max_threshold = $7, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING ` + inventoryColumns
	return scanInventoryItem(q.db.QueryRow(ctx, sql,
		arg.ID, arg.BranchID, arg.Name, arg.Unit, arg.CostPerUnit, arg.MinThreshold, arg.MaxThreshold))
}

type SoftDeleteInventoryItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) SoftDeleteInventoryItem(ctx context.Context, arg SoftDeleteInventoryItemParams) (uuid.UUID, error) {
	const sql = `
		UPDATE inventory_items SET is_active = false, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID).Scan(&id)
	return id, err
}

type AdjustStockParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
	Delta    pgtype.Numeric // signed: positive adds, negative subtracts
}

// AdjustStock applies a relative quantity change and returns the updated
// row. No floor check: stock may go negative (no reservation model).
func (q *Queries) AdjustStock(ctx context.Context, arg AdjustStockParams) (InventoryItem, error) {
	const sql = `
		UPDATE inventory_items
		SET quantity = quantity + $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING ` + inventoryColumns
	return scanInventoryItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.Delta))
}

func (q *Queries) ListLowStock(ctx context.Context, branchID uuid.UUID) ([]InventoryItem, error) {
	const sql = `SELECT ` + inventoryColumns + ` FROM inventory_items
		WHERE branch_id = $1 AND is_active = true AND quantity <= min_threshold
		ORDER BY quantity - min_threshold`
	rows, err := q.db.Query(ctx, sql, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryItem
	for rows.Next() {
		i, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// --- Stock movements ---

const movementColumns = `id, inventory_item_id, order_id, direction, quantity, quantity_before, quantity_after, note, created_by, created_at`

func scanStockMovement(row interface{ Scan(dest ...any) error }) (StockMovement, error) {
	var m StockMovement
	err := row.Scan(
		&m.ID,
		&m.InventoryItemID,
		&m.OrderID,
		&m.Direction,
		&m.Quantity,
		&m.QuantityBefore,
		&m.QuantityAfter,
		&m.Note,
		&m.CreatedBy,
		&m.CreatedAt,
	)
	return m, err
}

type CreateStockMovementParams struct {
	InventoryItemID uuid.UUID
	OrderID         pgtype.UUID
	Direction       StockDirection
	Quantity        pgtype.Numeric
	QuantityBefore  pgtype.Numeric
	QuantityAfter   pgtype.Numeric
	Note            pgtype.Text
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	const sql = `
		INSERT INTO stock_movements (inventory_item_id, order_id, direction, quantity, quantity_before, quantity_after, note, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + movementColumns
	return scanStockMovement(q.db.QueryRow(ctx, sql,
		arg.InventoryItemID, arg.OrderID, arg.Direction, arg.Quantity,
		arg.QuantityBefore, arg.QuantityAfter, arg.Note, arg.CreatedBy))
}

type ListStockMovementsByItemParams struct {
	InventoryItemID uuid.UUID
	Limit           int32
	Offset          int32
}

func (q *Queries) ListStockMovementsByItem(ctx context.Context, arg ListStockMovementsByItemParams) ([]StockMovement, error) {
	const sql = `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE inventory_item_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.InventoryItemID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockMovement
	for rows.Next() {
		m, err := scanStockMovement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// ListStockMovementsByOrder returns the movements a checkout wrote, oldest
// first. Voids replay these to restore stock symmetrically.
func (q *Queries) ListStockMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]StockMovement, error) {
	const sql = `SELECT ` + movementColumns + ` FROM stock_movements
		WHERE order_id = $1
		ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StockMovement
	for rows.Next() {
		m, err := scanStockMovement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
