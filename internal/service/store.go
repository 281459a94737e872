package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/repository"
)

// Tx is the set of writes that must commit together.
type Tx interface {
	CreateUser(ctx context.Context, user *model.User) error
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	CreateNote(ctx context.Context, note *model.Note) error
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)
}

// Transactor runs fn in one transaction that commits only if fn returns nil.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// NoteStore persists notes.
type NoteStore interface {
	Transactor
	GetNote(ctx context.Context, id uuid.UUID, ownerID string) (*model.Note, error)
	ListNotesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.Note, error)
	DeleteNote(ctx context.Context, id uuid.UUID, ownerID string) error
}

// AccountStore persists users and their keys.
type AccountStore interface {
	Transactor
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByCredentials(ctx context.Context, name, studentID string) (*model.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	RevokeUserAPIKeys(ctx context.Context, userID string) (int64, error)
}

// RepositoryStore adapts *repository.Repository to NoteStore and AccountStore.
type RepositoryStore struct {
	*repository.Repository
}

// NewRepositoryStore wraps repo.
func NewRepositoryStore(repo *repository.Repository) *RepositoryStore {
	return &RepositoryStore{Repository: repo}
}

// WithTx implements Transactor.
func (s *RepositoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.InTx(ctx, func(tx *repository.Tx) error {
		return fn(tx)
	})
}
