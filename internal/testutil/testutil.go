// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/tinote/tinote/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// NopLogger returns a logger that discards everything.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestUser creates a user with the given balance and a unique student id.
func NewTestUser(t testing.TB, credits int) *model.User {
	t.Helper()
	id := ulid.Make().String()
	return &model.User{
		ID:           id,
		Name:         "Test Student",
		StudentID:    UniqueStudentID(),
		DailyCredits: credits,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestNote creates a document note owned by ownerID.
func NewTestNote(t testing.TB, ownerID string) *model.Note {
	t.Helper()
	return &model.Note{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Title:        "Photosynthesis",
		OriginalText: "light + water + co2",
		Summary:      "- plants make sugar",
		NoteType:     model.NoteTypeDocument,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestAPIKey creates an API key row for userID with student scopes.
func NewTestAPIKey(t testing.TB, userID, prefix, hash string) *model.APIKey {
	t.Helper()
	return &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        userID,
		KeyHash:       hash,
		KeyPrefix:     prefix,
		Scopes:        model.StudentScopes,
		RateLimitTier: model.TierStandard,
		Name:          "test",
		CreatedAt:     time.Now().UTC(),
	}
}

// UniqueStudentID generates a student id that will not collide across tests.
func UniqueStudentID() string {
	return fmt.Sprintf("s%d", time.Now().UnixNano())
}
