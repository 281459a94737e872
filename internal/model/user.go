// Package model defines domain entities for the application.
package model

import "time"

// DefaultDailyCredits is the balance a new user starts with.
const DefaultDailyCredits = 10

// User is a student account. DailyCredits is a snapshot read from storage;
// balances change only through the quota ledger.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StudentID    string    `json:"student_id"`
	DailyCredits int       `json:"daily_credits"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasCredits reports whether the snapshot shows a positive balance.
func (u User) HasCredits() bool {
	return u.DailyCredits > 0
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StudentID    string    `json:"student_id"`
	DailyCredits int       `json:"daily_credits"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToResponse converts a User to UserResponse.
func (u User) ToResponse() UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		StudentID:    u.StudentID,
		DailyCredits: u.DailyCredits,
		CreatedAt:    u.CreatedAt,
	}
}
