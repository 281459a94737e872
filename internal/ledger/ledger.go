// Package ledger owns every change to a user's daily credit balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinote/tinote/internal/metrics"
	"github.com/tinote/tinote/internal/repository"
)

// Ledger errors.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidResetValue   = errors.New("reset value must not be negative")
)

// Store reads balances and performs bulk resets.
type Store interface {
	GetCredits(ctx context.Context, userID string) (int, error)
	ResetAllCredits(ctx context.Context, value int) (int64, error)
}

// Debiter performs one conditional debit. Both *repository.Repository and
// *repository.Tx satisfy it, so a debit can join the caller's transaction.
type Debiter interface {
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)
}

// Ledger enforces the zero floor and records resets.
type Ledger struct {
	store   Store
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time

	mu        sync.RWMutex
	lastReset time.Time
}

// New creates a Ledger.
func New(store Store, logger *slog.Logger, recorder metrics.Recorder) *Ledger {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Ledger{
		store:   store,
		logger:  logger.With("component", "ledger"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Balance returns the user's current credits.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.store.GetCredits(ctx, userID)
}

// CheckAndReserve reports whether the user has any credits left. It is
// advisory: the authoritative check happens in Debit.
func (l *Ledger) CheckAndReserve(ctx context.Context, userID string) (bool, error) {
	credits, err := l.store.GetCredits(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check credits: %w", err)
	}
	return credits > 0, nil
}

// Debit subtracts amount through d and returns the new balance. A debit that
// would take the balance below zero is refused with ErrInsufficientCredits and
// leaves the balance unchanged.
func (l *Ledger) Debit(ctx context.Context, d Debiter, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := d.DebitCredits(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			l.logger.Info("debit refused", "user_id", userID, "amount", amount)
			return 0, ErrInsufficientCredits
		}
		return 0, fmt.Errorf("debit credits: %w", err)
	}

	l.metrics.AddCreditsDebited(amount)
	l.logger.Debug("credits debited", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

// ResetAll sets every user's balance to value and returns how many users were
// updated. Running it twice with the same value yields the same state.
func (l *Ledger) ResetAll(ctx context.Context, value int) (int64, error) {
	if value < 0 {
		return 0, ErrInvalidResetValue
	}

	n, err := l.store.ResetAllCredits(ctx, value)
	if err != nil {
		l.metrics.IncCreditResetFailure()
		return 0, fmt.Errorf("reset credits: %w", err)
	}

	l.mu.Lock()
	l.lastReset = l.now()
	l.mu.Unlock()

	l.metrics.IncCreditReset(n)
	l.logger.Info("credits reset", "users", n, "value", value)
	return n, nil
}

// LastReset returns when ResetAll last succeeded in this process, or the zero
// time if it never has.
func (l *Ledger) LastReset() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastReset
}
