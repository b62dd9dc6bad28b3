package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, branch_id, email, hashed_password, pin, full_name, role, is_active, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.BranchID,
		&u.Email,
		&u.HashedPassword,
		&u.Pin,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

type GetUserByBranchAndPinParams struct {
	BranchID uuid.UUID
	Pin      string
}

func (q *Queries) GetUserByBranchAndPin(ctx context.Context, arg GetUserByBranchAndPinParams) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE branch_id = $1 AND pin = $2 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, arg.BranchID, arg.Pin))
}

func (q *Queries) ListUsersByBranch(ctx context.Context, branchID uuid.UUID) ([]User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE branch_id = $1 AND is_active = true ORDER BY full_name`
	rows, err := q.db.Query(ctx, sql, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

type CreateUserParams struct {
	BranchID       uuid.UUID
	Email          string
	HashedPassword string
	Pin            pgtype.Text
	FullName       string
	Role           UserRole
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const sql = `
		INSERT INTO users (branch_id, email, hashed_password, pin, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql,
		arg.BranchID, arg.Email, arg.HashedPassword, arg.Pin, arg.FullName, arg.Role))
}

type UpdateUserParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
	FullName string
	Role     UserRole
	Pin      pgtype.Text
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	const sql = `
		UPDATE users
		SET full_name = $3, role = $4, pin = $5
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID, arg.FullName, arg.Role, arg.Pin))
}

type DeactivateUserParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) DeactivateUser(ctx context.Context, arg DeactivateUserParams) (uuid.UUID, error) {
	const sql = `
		UPDATE users SET is_active = false
		WHERE id = $1 AND branch_id = $2 AND is_active = true
		RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.BranchID).Scan(&id)
	return id, err
}
