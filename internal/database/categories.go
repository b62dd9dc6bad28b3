package database

import (
	"context"

	"github.com/google/uuid"
)

const categoryColumns = `id, branch_id, name, sort_order, is_active, created_at`

func scanCategory(row interface{ Scan(dest ...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.BranchID, &c.Name, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCategoriesByBranch(ctx context.Context, branchID uuid.UUID) ([]Category, error) {
	const sql = `SELECT ` + categoryColumns + ` FROM categories
		WHERE branch_id = $1 AND is_active = true
		ORDER BY sort_order, name`
	rows, err := q.db.Query(ctx, sql, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

type CreateCategoryParams struct {
	BranchID  uuid.UUID
	Name      string
	SortOrder int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	const sql = `
		INSERT INTO categories (branch_id, name, sort_order, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING ` + categoryColumns
	return scanCategory(q.db.QueryRow(ctx, sql, arg.BranchID, arg.Name, arg.SortOrder))
}

type UpdateCategoryParams struct {
	ID        uuid.UUID
	BranchID  uuid.UUID
	Name      string
	SortOrder int32
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	const sql = `
		UPDATE categories SET name = $3, sort_order = $4
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING ` + categoryColumns
	return scanCategory(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.Name, arg.SortOrder))
}

type SoftDeleteCategoryParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) SoftDeleteCategory(ctx context.Context, arg SoftDeleteCategoryParams) (uuid.UUID, error) {
	const sql = `
		UPDATE categories SET is_active = false
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID).Scan(&id)
	return id, err
}
