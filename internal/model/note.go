package model

import (
	"time"

	"github.com/google/uuid"
)

// NoteType discriminates how a note's source text was obtained.
type NoteType string

const (
	NoteTypeAudio    NoteType = "audio"
	NoteTypeDocument NoteType = "document"
)

// IsValid checks if the note type is known.
func (t NoteType) IsValid() bool {
	return t == NoteTypeAudio || t == NoteTypeDocument
}

// MaxTitleLength is the storage limit for note titles, in characters.
const MaxTitleLength = 100

// Note is a generated study note. Notes are immutable once stored.
type Note struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	OriginalText string    `json:"original_text"`
	Summary      string    `json:"summary"`
	NoteType     NoteType  `json:"note_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// NoteResponse is the public representation of a note.
type NoteResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	OriginalText string    `json:"original_text"`
	Summary      string    `json:"summary"`
	NoteType     NoteType  `json:"note_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToResponse converts a Note to NoteResponse.
func (n Note) ToResponse() NoteResponse {
	return NoteResponse{
		ID:           n.ID.String(),
		Title:        n.Title,
		OriginalText: n.OriginalText,
		Summary:      n.Summary,
		NoteType:     n.NoteType,
		CreatedAt:    n.CreatedAt,
	}
}
