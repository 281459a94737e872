// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/tinote/tinote/internal/model"
)

const (
	maxNameLength      = 100
	maxStudentIDLength = 32
)

var studentIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// LoginRequest is the body of POST /api/v1/login.
type LoginRequest struct {
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
}

// Validate implements validation.Validatable.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.StudentID, validation.Required, validation.Length(1, maxStudentIDLength)),
	)
}

// CredentialsResponse carries a user and a freshly issued key.
// The plaintext key appears in this response only.
type CredentialsResponse struct {
	User   model.UserResponse `json:"user"`
	APIKey *model.IssuedKey   `json:"api_key"`
}

// CreateUserRequest is the body of POST /api/v1/admin/users.
type CreateUserRequest struct {
	Name         string   `json:"name"`
	StudentID    string   `json:"student_id"`
	DailyCredits *int     `json:"daily_credits,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Validate implements validation.Validatable.
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&r.StudentID, validation.Required, validation.Length(1, maxStudentIDLength),
			validation.Match(studentIDPattern).Error("must contain only letters, digits, '-' or '_'")),
		validation.Field(&r.DailyCredits, validation.Min(0)),
		validation.Field(&r.Scopes, validation.Each(validation.In(anySlice(model.ValidScopes)...))),
	)
}

// ResetCreditsRequest is the body of POST /api/v1/admin/reset-credits.
type ResetCreditsRequest struct {
	Credits *int `json:"credits,omitempty"`
}

// Validate implements validation.Validatable.
func (r ResetCreditsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Credits, validation.Min(0)),
	)
}

// ResetCreditsResponse reports how many users were reset.
type ResetCreditsResponse struct {
	UpdatedCount int64  `json:"updated_count"`
	Credits      int    `json:"credits"`
	Message      string `json:"message"`
}

// RevokeKeysResponse reports how many keys were revoked.
type RevokeKeysResponse struct {
	RevokedCount int64 `json:"revoked_count"`
}

// Pagination describes an offset page.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// NoteListResponse is a page of notes.
type NoteListResponse struct {
	Data       []model.NoteResponse `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// UserListResponse is a page of users.
type UserListResponse struct {
	Data       []model.UserResponse `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// ToNoteListResponse converts notes to a list response.
func ToNoteListResponse(notes []*model.Note, limit, offset int) NoteListResponse {
	data := make([]model.NoteResponse, len(notes))
	for i, n := range notes {
		data[i] = n.ToResponse()
	}
	return NoteListResponse{
		Data:       data,
		Pagination: Pagination{Limit: limit, Offset: offset, Count: len(data)},
	}
}

// ToUserListResponse converts users to a list response.
func ToUserListResponse(users []*model.User, limit, offset int) UserListResponse {
	data := make([]model.UserResponse, len(users))
	for i, u := range users {
		data[i] = u.ToResponse()
	}
	return UserListResponse{
		Data:       data,
		Pagination: Pagination{Limit: limit, Offset: offset, Count: len(data)},
	}
}

func anySlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
