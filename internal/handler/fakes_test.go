package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/tinote/tinote/internal/model"
	"github.com/tinote/tinote/internal/service"
)

type fakeNotes struct {
	created  *model.Note
	err      error
	notes    []*model.Note
	lastIn   service.CreateNoteInput
	calls    int
	gotLimit int
	gotOff   int
}

func (f *fakeNotes) CreateNote(_ context.Context, input service.CreateNoteInput) (*model.Note, error) {
	f.calls++
	f.lastIn = input
	if f.err != nil {
		return nil, f.err
	}
	return f.created, nil
}

func (f *fakeNotes) ListNotes(_ context.Context, ownerID string, limit, offset int) ([]*model.Note, error) {
	f.gotLimit, f.gotOff = limit, offset
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Note
	for _, n := range f.notes {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotes) GetNote(_ context.Context, ownerID string, id uuid.UUID) (*model.Note, error) {
	for _, n := range f.notes {
		if n.ID == id && n.OwnerID == ownerID {
			return n, nil
		}
	}
	return nil, service.ErrNoteNotFound
}

func (f *fakeNotes) DeleteNote(_ context.Context, ownerID string, id uuid.UUID) error {
	for i, n := range f.notes {
		if n.ID == id && n.OwnerID == ownerID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return service.ErrNoteNotFound
}

type fakeAccounts struct {
	users    map[string]*model.User
	loginErr error
	issued   *model.IssuedKey

	created    service.CreateUserInput
	createErr  error
	resetValue int
	resetCount int64
	resetErr   error
	deleted    []string
	revoked    string
}

func newFakeAccounts(users ...*model.User) *fakeAccounts {
	f := &fakeAccounts{
		users:  make(map[string]*model.User),
		issued: &model.IssuedKey{ID: "key-1", Key: "tn_test_abc123_secret", TokenType: "bearer"},
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeAccounts) Login(_ context.Context, name, studentID string) (*model.User, *model.IssuedKey, error) {
	if f.loginErr != nil {
		return nil, nil, f.loginErr
	}
	for _, u := range f.users {
		if u.Name == name && u.StudentID == studentID {
			return u, f.issued, nil
		}
	}
	return nil, nil, service.ErrInvalidCredentials
}

func (f *fakeAccounts) Me(_ context.Context, userID string) (*model.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAccounts) CreateUser(_ context.Context, input service.CreateUserInput) (*model.User, *model.IssuedKey, error) {
	f.created = input
	if f.createErr != nil {
		return nil, nil, f.createErr
	}
	u := &model.User{ID: "01HZX3K8Q9V2M4N6P7R8S9T0ZZ", Name: input.Name, StudentID: input.StudentID, DailyCredits: model.DefaultDailyCredits}
	if input.DailyCredits != nil {
		u.DailyCredits = *input.DailyCredits
	}
	f.users[u.ID] = u
	return u, f.issued, nil
}

func (f *fakeAccounts) ListUsers(_ context.Context, limit, offset int) ([]*model.User, error) {
	out := make([]*model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeAccounts) DeleteUser(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return service.ErrUserNotFound
	}
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAccounts) RevokeKeys(_ context.Context, userID string) (int64, error) {
	f.revoked = userID
	return 2, nil
}

func (f *fakeAccounts) ResetCredits(_ context.Context, credits int) (int64, error) {
	f.resetValue = credits
	return f.resetCount, f.resetErr
}
