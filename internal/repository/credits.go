package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrInsufficientCredits is returned when a debit would take a balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// GetCredits returns a user's current balance.
func (r *Repository) GetCredits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := r.pool.QueryRow(ctx, `SELECT daily_credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}
	return credits, nil
}

// DebitCredits subtracts amount from a user's balance in one statement.
func (r *Repository) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	return debitCredits(ctx, r.pool, userID, amount)
}

// DebitCredits subtracts amount from a user's balance as part of the transaction.
func (t *Tx) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	return debitCredits(ctx, t.tx, userID, amount)
}

// debitCredits is a conditional single-row update: the row lock taken by
// UPDATE serializes concurrent debits, and the WHERE clause enforces the
// zero floor, so there is no read-then-write window.
func debitCredits(ctx context.Context, q querier, userID string, amount int) (int, error) {
	query := `
		UPDATE users
		SET daily_credits = daily_credits - $2
		WHERE id = $1 AND daily_credits >= $2
		RETURNING daily_credits
	`

	var balance int
	err := q.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		if isCheckViolation(err) {
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("failed to debit credits: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, ErrInsufficientCredits
}

// ResetAllCredits sets every user's balance to value in one bulk statement
// and returns the number of rows updated.
func (r *Repository) ResetAllCredits(ctx context.Context, value int) (int64, error) {
	result, err := r.pool.Exec(ctx, `UPDATE users SET daily_credits = $1`, value)
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}
	return result.RowsAffected(), nil
}
