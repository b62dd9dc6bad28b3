package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const addonColumns = `id, branch_id, name, price, category, inventory_item_id, qty_per_serving, is_active, created_at`

func scanAddon(row interface{ Scan(dest ...any) error }) (Addon, error) {
	var a Addon
	err := row.Scan(
		&a.ID,
		&a.BranchID,
		&a.Name,
		&a.Price,
		&a.Category,
		&a.InventoryItemID,
		&a.QtyPerServing,
		&a.IsActive,
		&a.CreatedAt,
	)
	return a, err
}

func (q *Queries) ListAddonsByBranch(ctx context.Context, branchID uuid.UUID) ([]Addon, error) {
	const sql = `SELECT ` + addonColumns + ` FROM addons
		WHERE branch_id = $1 AND is_active = true
		ORDER BY category, name`
	rows, err := q.db.Query(ctx, sql, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Addon
	for rows.Next() {
		a, err := scanAddon(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

type GetAddonParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetAddon(ctx context.Context, arg GetAddonParams) (Addon, error) {
	const sql = `SELECT ` + addonColumns + ` FROM addons
		WHERE id = $1 AND branch_id = $2 AND is_active = true`
	return scanAddon(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID))
}

type CreateAddonParams struct {
	BranchID        uuid.UUID
	Name            string
	Price           pgtype.Numeric
	Category        AddonCategory
	InventoryItemID pgtype.UUID
	QtyPerServing   pgtype.Numeric
}

func (q *Queries) CreateAddon(ctx context.Context, arg CreateAddonParams) (Addon, error) {
	const sql = `
		INSERT INTO addons (branch_id, name, price, category, inventory_item_id, qty_per_serving, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING ` + addonColumns
	return scanAddon(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.Name, arg.Price, arg.Category, arg.InventoryItemID, arg.QtyPerServing))
}

type UpdateAddonParams struct {
	ID              uuid.UUID
	BranchID        uuid.UUID
	Name            string
	Price           pgtype.Numeric
	Category        AddonCategory
	InventoryItemID pgtype.UUID
	QtyPerServing   pgtype.Numeric
}

func (q *Queries) UpdateAddon(ctx context.Context, arg UpdateAddonParams) (Addon, error) {
	const sql = `
		UPDATE addons
		SET name = $3, price = $4, category = $5, inventory_item_id = $6, qty_per_serving = $7
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING ` + addonColumns
	return scanAddon(q.db.QueryRow(ctx, sql,
		arg.ID, arg.BranchID, arg.Name, arg.Price, arg.Category, arg.InventoryItemID, arg.QtyPerServing))
}

type SoftDeleteAddonParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) SoftDeleteAddon(ctx context.Context, arg SoftDeleteAddonParams) (uuid.UUID, error) {
	const sql = `
		UPDATE addons SET is_active = false
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID).Scan(&id)
	return id, err
}

// --- Addon ingredients (recipe linkage) ---

const addonIngredientColumns = `id, addon_id, inventory_item_id, quantity, unit`

func scanAddonIngredient(row interface{ Scan(dest ...any) error }) (AddonIngredient, error) {
	var i AddonIngredient
	err := row.Scan(&i.ID, &i.AddonID, &i.InventoryItemID, &i.Quantity, &i.Unit)
	return i, err
}

func (q *Queries) ListAddonIngredients(ctx context.Context, addonID uuid.UUID) ([]AddonIngredient, error) {
	const sql = `SELECT ` + addonIngredientColumns + ` FROM addon_ingredients
		WHERE addon_id = $1
		ORDER BY id`
	rows, err := q.db.Query(ctx, sql, addonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AddonIngredient
	for rows.Next() {
		i, err := scanAddonIngredient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type CreateAddonIngredientParams struct {
	AddonID         uuid.UUID
	InventoryItemID uuid.UUID
	Quantity        pgtype.Numeric
	Unit            string
}

func (q *Queries) CreateAddonIngredient(ctx context.Context, arg CreateAddonIngredientParams) (AddonIngredient, error) {
	const sql = `
		INSERT INTO addon_ingredients (addon_id, inventory_item_id, quantity, unit)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + addonIngredientColumns
	return scanAddonIngredient(q.db.QueryRow(ctx, sql,
		arg.AddonID, arg.InventoryItemID, arg.Quantity, arg.Unit))
}

func (q *Queries) DeleteAddonIngredientsByAddon(ctx context.Context, addonID uuid.UUID) error {
	const sql = `DELETE FROM addon_ingredients WHERE addon_id = $1`
	_, err := q.db.Exec(ctx, sql, addonID)
	return err
}
