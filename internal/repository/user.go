package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tinote/tinote/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrStudentIDExists = errors.New("student id already exists")
)

const userColumns = `id, name, student_id, daily_credits, created_at`

// CreateUser inserts a new user into the database.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	return createUser(ctx, r.pool, user)
}

// CreateUser inserts a new user as part of the transaction.
func (t *Tx) CreateUser(ctx context.Context, user *model.User) error {
	return createUser(ctx, t.tx, user)
}

func createUser(ctx context.Context, q querier, user *model.User) error {
	query := `
		INSERT INTO users (id, name, student_id, daily_credits, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.Exec(ctx, query,
		user.ID,
		user.Name,
		user.StudentID,
		user.DailyCredits,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrStudentIDExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUserByCredentials retrieves a user by display name and student id.
func (r *Repository) GetUserByCredentials(ctx context.Context, name, studentID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = $1 AND student_id = $2`

	user, err := scanUser(r.pool.QueryRow(ctx, query, name, studentID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by credentials: %w", err)
	}
	return user, nil
}

// ListUsers returns users in creation order.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// DeleteUser removes a user together with their keys and notes.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// scanUser scans a single row into a User model.
func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.StudentID,
		&user.DailyCredits,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}
