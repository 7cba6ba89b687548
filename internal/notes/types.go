// Package notes manages the user's notes: PostgreSQL persistence plus
// automatic indexing into the knowledge store so the chat pipeline can
// retrieve them.
package notes

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound indicates the note does not exist.
var ErrNotFound = errors.New("note not found")

// Note is one user note.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SourceID returns the knowledge-store source identifier of the note.
func (n *Note) SourceID() string {
	return "note:" + n.ID.String()
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}
