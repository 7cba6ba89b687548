package knowledge

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/alexkamer/recall/internal/chat"
)

// DBTX is the subset of pgx executors the queries need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes the chunk SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// UpsertChunkParams are the columns of one chunk upsert.
type UpsertChunkParams struct {
	SourceID     string
	SourceType   string
	Title        string
	SectionTitle string
	ChunkIndex   int32
	Content      string
	Embedding    *pgvector.Vector
}

const upsertChunkSQL = `
INSERT INTO chunks (source_id, source_type, title, section_title, chunk_index, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (source_id, chunk_index)
DO UPDATE SET
	source_type = EXCLUDED.source_type,
	title = EXCLUDED.title,
	section_title = EXCLUDED.section_title,
	content = EXCLUDED.content,
	embedding = EXCLUDED.embedding`

// UpsertChunk inserts or replaces one chunk.
func (q *Queries) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	_, err := q.db.Exec(ctx, upsertChunkSQL,
		arg.SourceID,
		arg.SourceType,
		arg.Title,
		arg.SectionTitle,
		arg.ChunkIndex,
		arg.Content,
		arg.Embedding,
	)
	return err
}

const deleteChunksBySourceSQL = `
DELETE FROM chunks
WHERE source_id = $1`

// DeleteChunksBySource removes every chunk of a source.
func (q *Queries) DeleteChunksBySource(ctx context.Context, sourceID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteChunksBySourceSQL, sourceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SearchChunksParams are the inputs of a similarity search.
type SearchChunksParams struct {
	QueryEmbedding *pgvector.Vector
	SourceTypes    []string
	ResultLimit    int32
}

const searchChunksSQL = `
SELECT id, source_id, source_type, title, section_title, chunk_index, content, created_at,
	embedding <=> $1 AS distance
FROM chunks
WHERE source_type = ANY($2)
ORDER BY embedding <=> $1
LIMIT $3`

const searchChunksAllSQL = `
SELECT id, source_id, source_type, title, section_title, chunk_index, content, created_at,
	embedding <=> $1 AS distance
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

// SearchChunks returns the chunks nearest to the query embedding, closest
// first. An empty SourceTypes slice searches every source type.
func (q *Queries) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]Result, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(arg.SourceTypes) > 0 {
		rows, err = q.db.Query(ctx, searchChunksSQL, arg.QueryEmbedding, arg.SourceTypes, arg.ResultLimit)
	} else {
		rows, err = q.db.Query(ctx, searchChunksAllSQL, arg.QueryEmbedding, arg.ResultLimit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			r          Result
			id         pgtype.UUID
			sourceType string
		)
		if err := rows.Scan(&id, &r.SourceID, &sourceType, &r.Title, &r.SectionTitle,
			&r.ChunkIndex, &r.Content, &r.CreatedAt, &r.Distance); err != nil {
			return nil, err
		}
		if id.Valid {
			r.ID = id.Bytes
		}
		r.SourceType = chat.SourceType(sourceType)
		out = append(out, r)
	}
	return out, rows.Err()
}

const countChunksSQL = `
SELECT COUNT(*)
FROM chunks`

// CountChunks returns the total number of indexed chunks.
func (q *Queries) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countChunksSQL).Scan(&n)
	return n, err
}
