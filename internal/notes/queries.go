package notes

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx executors the queries need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes the note SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const createNoteSQL = `
INSERT INTO notes (title, content, tags)
VALUES ($1, $2, $3)
RETURNING id, title, content, tags, created_at, updated_at`

// CreateNote inserts a note and returns it.
func (q *Queries) CreateNote(ctx context.Context, title, content string, tags []string) (Note, error) {
	if tags == nil {
		tags = []string{}
	}
	return scanNote(q.db.QueryRow(ctx, createNoteSQL, title, content, tags))
}

const getNoteSQL = `
SELECT id, title, content, tags, created_at, updated_at
FROM notes
WHERE id = $1`

// GetNote fetches one note by id.
func (q *Queries) GetNote(ctx context.Context, id pgtype.UUID) (Note, error) {
	return scanNote(q.db.QueryRow(ctx, getNoteSQL, id))
}

const listNotesSQL = `
SELECT id, title, content, tags, created_at, updated_at
FROM notes
ORDER BY updated_at DESC
LIMIT $1 OFFSET $2`

// ListNotes returns notes most recently updated first.
func (q *Queries) ListNotes(ctx context.Context, limit, offset int32) ([]Note, error) {
	rows, err := q.db.Query(ctx, listNotesSQL, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const updateNoteSQL = `
UPDATE notes
SET title = $2, content = $3, tags = $4, updated_at = now()
WHERE id = $1
RETURNING id, title, content, tags, created_at, updated_at`

// UpdateNote replaces a note's title, content, and tags.
func (q *Queries) UpdateNote(ctx context.Context, id pgtype.UUID, title, content string, tags []string) (Note, error) {
	if tags == nil {
		tags = []string{}
	}
	return scanNote(q.db.QueryRow(ctx, updateNoteSQL, id, title, content, tags))
}

const deleteNoteSQL = `
DELETE FROM notes
WHERE id = $1`

// DeleteNote removes a note.
func (q *Queries) DeleteNote(ctx context.Context, id pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, deleteNoteSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanNote(row pgx.Row) (Note, error) {
	var (
		n  Note
		id pgtype.UUID
	)
	if err := row.Scan(&id, &n.Title, &n.Content, &n.Tags, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return Note{}, err
	}
	n.ID = pgToUUID(id)
	return n, nil
}
