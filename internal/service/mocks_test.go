package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tinote/tinote/internal/ai"
	"github.com/tinote/tinote/internal/ledger"
	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/repository"
)

type mockQuota struct{ mock.Mock }

func (m *mockQuota) CheckAndReserve(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockQuota) Balance(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockQuota) Debit(ctx context.Context, d ledger.Debiter, userID string, amount int) (int, error) {
	args := m.Called(ctx, d, userID, amount)
	return args.Int(0), args.Error(1)
}

type mockTranscriber struct{ mock.Mock }

func (m *mockTranscriber) Transcribe(ctx context.Context, audio ai.Audio, languageHint string) (string, error) {
	args := m.Called(ctx, audio, languageHint)
	return args.String(0), args.Error(1)
}

type mockSummarizer struct{ mock.Mock }

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (ai.Summary, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(ai.Summary), args.Error(1)
}

type mockAuthCache struct{ mock.Mock }

func (m *mockAuthCache) InvalidateUserAuthContexts(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockResetter struct{ mock.Mock }

func (m *mockResetter) ResetAll(ctx context.Context, value int) (int64, error) {
	args := m.Called(ctx, value)
	return args.Get(0).(int64), args.Error(1)
}

// memStore is an in-memory NoteStore and AccountStore whose transactions
// apply staged writes only when the callback succeeds.
type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	keys  []*model.APIKey
	notes []*model.Note

	createNoteErr error
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*model.User)}
}

type memTx struct {
	store *memStore
	users []*model.User
	keys  []*model.APIKey
	notes []*model.Note
}

func (t *memTx) CreateUser(ctx context.Context, user *model.User) error {
	for _, u := range t.store.users {
		if u.StudentID == user.StudentID {
			return repository.ErrStudentIDExists
		}
	}
	t.users = append(t.users, user)
	return nil
}

func (t *memTx) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	t.keys = append(t.keys, key)
	return nil
}

func (t *memTx) CreateNote(ctx context.Context, note *model.Note) error {
	if t.store.createNoteErr != nil {
		return t.store.createNoteErr
	}
	t.notes = append(t.notes, note)
	return nil
}

func (t *memTx) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	return 0, nil
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	for _, u := range tx.users {
		s.users[u.ID] = u
	}
	s.keys = append(s.keys, tx.keys...)
	s.notes = append(s.notes, tx.notes...)
	return nil
}

func (s *memStore) GetNote(ctx context.Context, id uuid.UUID, ownerID string) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notes {
		if n.ID == id && n.OwnerID == ownerID {
			return n, nil
		}
	}
	return nil, repository.ErrNoteNotFound
}

func (s *memStore) ListNotesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Note
	for _, n := range s.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return []*model.Note{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) DeleteNote(ctx context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notes {
		if n.ID == id && n.OwnerID == ownerID {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			return nil
		}
	}
	return repository.ErrNoteNotFound
}

func (s *memStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *memStore) GetUserByCredentials(ctx context.Context, name, studentID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name && u.StudentID == studentID {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *memStore) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func (s *memStore) RevokeUserAPIKeys(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, k := range s.keys {
		if k.UserID == userID && k.RevokedAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) noteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}
