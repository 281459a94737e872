package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tinote/tinote/internal/auth"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/repository"
)

// AuthCache drops cached auth contexts when keys are revoked.
type AuthCache interface {
	InvalidateUserAuthContexts(ctx context.Context, userID string) error
}

// Resetter restores every user's balance.
type Resetter interface {
	ResetAll(ctx context.Context, value int) (int64, error)
}

// AccountService manages users and their API keys.
type AccountService struct {
	store    AccountStore
	cache    AuthCache
	resetter Resetter
	keyEnv   string
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService. keyEnv selects the
// "live" or "test" key format.
func NewAccountService(store AccountStore, cache AuthCache, resetter Resetter, keyEnv string, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:    store,
		cache:    cache,
		resetter: resetter,
		keyEnv:   keyEnv,
		logger:   logger.With("component", "account"),
	}
}

// CreateUserInput defines input for creating a user.
type CreateUserInput struct {
	Name         string
	StudentID    string
	DailyCredits *int
	Scopes       []string
}

// Login verifies name and student id and issues a fresh API key. Keys are
// stored hashed, so an earlier key can never be returned again.
func (s *AccountService) Login(ctx context.Context, name, studentID string) (*model.User, *model.IssuedKey, error) {
	user, err := s.store.GetUserByCredentials(ctx, strings.TrimSpace(name), strings.TrimSpace(studentID))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	key, row, err := s.newKey(user.ID, model.StudentScopes, "login")
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.CreateAPIKey(ctx, row); err != nil {
		return nil, nil, fmt.Errorf("failed to store API key: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID, "key_prefix", row.KeyPrefix)
	return user, key, nil
}

// Me returns the user with a live balance.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// CreateUser registers a user and issues their first key in one transaction.
func (s *AccountService) CreateUser(ctx context.Context, input CreateUserInput) (*model.User, *model.IssuedKey, error) {
	credits := model.DefaultDailyCredits
	if input.DailyCredits != nil {
		credits = *input.DailyCredits
	}
	scopes := input.Scopes
	if len(scopes) == 0 {
		scopes = model.StudentScopes
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Name:         strings.TrimSpace(input.Name),
		StudentID:    strings.TrimSpace(input.StudentID),
		DailyCredits: credits,
		CreatedAt:    time.Now().UTC(),
	}

	key, row, err := s.newKey(user.ID, scopes, "initial")
	if err != nil {
		return nil, nil, err
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.CreateAPIKey(ctx, row)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStudentIDExists) {
			return nil, nil, ErrStudentIDExists
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "scopes", scopes)
	return user, key, nil
}

// ListUsers returns users in creation order.
func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListUsers(ctx, limit, offset)
}

// DeleteUser removes a user, their keys, and their notes.
func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.invalidate(ctx, id)
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// RevokeKeys revokes all of a user's keys.
func (s *AccountService) RevokeKeys(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.RevokeUserAPIKeys(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// ResetCredits sets every user's balance to credits.
func (s *AccountService) ResetCredits(ctx context.Context, credits int) (int64, error) {
	return s.resetter.ResetAll(ctx, credits)
}

func (s *AccountService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUserAuthContexts(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate auth cache", "user_id", userID, "error", err)
	}
}

func (s *AccountService) newKey(userID string, scopes []string, name string) (*model.IssuedKey, *model.APIKey, error) {
	generated, err := auth.GenerateAPIKey(s.keyEnv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	now := time.Now().UTC()
	row := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        userID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        scopes,
		RateLimitTier: model.TierStandard,
		Name:          name,
		CreatedAt:     now,
	}
	issued := &model.IssuedKey{
		ID:        row.ID,
		Key:       generated.Plaintext,
		TokenType: "bearer",
		KeyPrefix: row.KeyPrefix,
		Scopes:    scopes,
		CreatedAt: now,
	}
	return issued, row, nil
}
