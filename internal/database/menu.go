package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, branch_id, category_id, name, description, price, is_available, status, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID,
		&m.BranchID,
		&m.CategoryID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.IsAvailable,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

type ListMenuItemsByBranchParams struct {
	BranchID   uuid.UUID
	CategoryID pgtype.UUID // optional filter
}

func (q *Queries) ListMenuItemsByBranch(ctx context.Context, arg ListMenuItemsByBranchParams) ([]MenuItem, error) {
	const sql = `SELECT ` + menuItemColumns + ` FROM menu_items
		WHERE branch_id = $1
		  AND status <> 'INACTIVE'
		  AND ($2::uuid IS NULL OR category_id = $2)
		ORDER BY name`
	rows, err := q.db.Query(ctx, sql, arg.BranchID, arg.CategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type GetMenuItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	const sql = `SELECT ` + menuItemColumns + ` FROM menu_items
		WHERE id = $1 AND branch_id = $2 AND status <> 'INACTIVE'`
	return scanMenuItem(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type CreateMenuItemParams struct {
	BranchID    uuid.UUID
	CategoryID  pgtype.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	const sql = `
		INSERT INTO menu_items (branch_id, category_id, name, description, price, is_available, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'ACTIVE')
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.IsAvailable))
}

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	CategoryID  pgtype.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	Status      MenuItemStatus
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	const sql = `
		UPDATE menu_items
		SET category_id = $3, name = $4, description = $5, price = $6, is_available = $7, status = $8, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND status <> 'INACTIVE'
		RETURNING ` + menuItemColumns
	return scanMenuItem(q.db.QueryRow(ctx, sql,
		arg.ID, arg.BranchID, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.IsAvailable, arg.Status))
}

type SoftDeleteMenuItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, arg SoftDeleteMenuItemParams) (uuid.UUID, error) {
	const sql = `
		UPDATE menu_items SET status = 'INACTIVE', updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND status <> 'INACTIVE'
		RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID).Scan(&id)
	return id, err
}

// --- Ingredients ---

const ingredientColumns = `id, menu_item_id, inventory_item_id, quantity, unit`

func scanMenuItemIngredient(row interface{ Scan(dest ...any) error }) (MenuItemIngredient, error) {
	var i MenuItemIngredient
	err := row.Scan(&i.ID, &i.MenuItemID, &i.InventoryItemID, &i.Quantity, &i.Unit)
	return i, err
}

func (q *Queries) ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemIngredient, error) {
	const sql = `SELECT ` + ingredientColumns + ` FROM menu_item_ingredients
		WHERE menu_item_id = $1
		ORDER BY id`
	rows, err := q.db.Query(ctx, sql, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItemIngredient
	for rows.Next() {
		i, err := scanMenuItemIngredient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CreateMenuItemIngredientParams struct {
	MenuItemID      uuid.UUID
	InventoryItemID uuid.UUID
	Quantity        pgtype.Numeric
	Unit            string
}

func (q *Queries) CreateMenuItemIngredient(ctx context.Context, arg CreateMenuItemIngredientParams) (MenuItemIngredient, error) {
	const sql = `
		INSERT INTO menu_item_ingredients (menu_item_id, inventory_item_id, quantity, unit)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + ingredientColumns
	return scanMenuItemIngredient(q.db.QueryRow(ctx, sql,
		arg.MenuItemID, arg.InventoryItemID, arg.Quantity, arg.Unit))
}

func (q *Queries) DeleteIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) error {
	const sql = `DELETE FROM menu_item_ingredients WHERE menu_item_id = $1`
	_, err := q.db.Exec(ctx, sql, menuItemID)
	return err
}
