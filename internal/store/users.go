package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/armeria/internal/model"
)

const userSelect = `SELECT id, username, password_hash, role, created_at, deleted_at FROM users`

func scanUser(s scanner) (*model.User, error) {
	u := &model.User{}
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser adds an account. Names of soft-deleted accounts may be reused.
func CreateUser(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if uniqueViolation(err, "idx_users_username_active") {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}
	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID, deleted or not.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	return getUser(ctx, db, id)
}

func getUser(ctx context.Context, q querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, userSelect+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername returns a user by username. The active account wins over
// soft-deleted ones with the same name, which are still returned so callers
// can reject them.
func GetUserByUsername(ctx context.Context, db *sql.DB, username string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		userSelect+` WHERE username = ? ORDER BY deleted_at IS NOT NULL, id DESC LIMIT 1`,
		strings.TrimSpace(username),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", username, err)
	}
	return u, nil
}

// ListUsers returns the active accounts.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx, userSelect+` WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountActiveAdmins returns the number of active administrators.
func CountActiveAdmins(ctx context.Context, db *sql.DB) (int, error) {
	return countActiveAdmins(ctx, db)
}

func countActiveAdmins(ctx context.Context, q querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = ? AND deleted_at IS NULL`, model.RoleAdmin,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

// activeUserForChange loads an active account that is about to lose its
// role or be deleted and fails with ErrLastAdmin when it is the only
// administrator left. keepsAdmin is true when the account stays an admin.
func activeUserForChange(ctx context.Context, q querier, id int64, keepsAdmin bool) (*model.User, error) {
	u, err := getUser(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.DeletedAt != nil {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if u.Role != model.RoleAdmin || keepsAdmin {
		return u, nil
	}
	n, err := countActiveAdmins(ctx, q)
	if err != nil {
		return nil, err
	}
	if n <= 1 {
		return nil, fmt.Errorf("%w: %s", ErrLastAdmin, u.Username)
	}
	return u, nil
}

// UpdateUser changes a user's role and returns the updated account. The
// last active administrator cannot be demoted.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := activeUserForChange(ctx, tx, id, role == model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id); err != nil {
		return nil, fmt.Errorf("updating user %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user update: %w", err)
	}
	u.Role = role
	return u, nil
}

// UpdateUserPassword replaces the password hash of an active user.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password of user %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteUser soft-deletes a user and returns the deleted account. The last
// active administrator cannot be deleted.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := activeUserForChange(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	); err != nil {
		return nil, fmt.Errorf("deleting user %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user deletion: %w", err)
	}
	return u, nil
}
