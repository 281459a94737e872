package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tinote/tinote/internal/model"
)

// ErrNoteNotFound is returned when a note does not exist or belongs to another user.
var ErrNoteNotFound = errors.New("note not found")

const noteColumns = `id, owner_id, title, original_text, summary, note_type, created_at`

// CreateNote inserts a new note.
func (r *Repository) CreateNote(ctx context.Context, note *model.Note) error {
	return createNote(ctx, r.pool, note)
}

// CreateNote inserts a new note as part of the transaction.
func (t *Tx) CreateNote(ctx context.Context, note *model.Note) error {
	return createNote(ctx, t.tx, note)
}

func createNote(ctx context.Context, q querier, note *model.Note) error {
	query := `
		INSERT INTO notes (id, owner_id, title, original_text, summary, note_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query,
		note.ID,
		note.OwnerID,
		note.Title,
		note.OriginalText,
		note.Summary,
		string(note.NoteType),
		note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// GetNote retrieves a note owned by ownerID.
func (r *Repository) GetNote(ctx context.Context, id uuid.UUID, ownerID string) (*model.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1 AND owner_id = $2`

	note, err := scanNote(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return note, nil
}

// ListNotesByOwner returns a user's notes, oldest first.
func (r *Repository) ListNotesByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := make([]*model.Note, 0, limit)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// DeleteNote removes a note owned by ownerID.
func (r *Repository) DeleteNote(ctx context.Context, id uuid.UUID, ownerID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNoteNotFound
	}

	return nil
}

// scanNote scans a single row into a Note model.
func scanNote(row pgx.Row) (*model.Note, error) {
	var note model.Note
	var noteType string

	err := row.Scan(
		&note.ID,
		&note.OwnerID,
		&note.Title,
		&note.OriginalText,
		&note.Summary,
		&noteType,
		&note.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	note.NoteType = model.NoteType(noteType)
	return &note, nil
}
