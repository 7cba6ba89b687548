package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/ingest"
	"github.com/alexkamer/recall/internal/knowledge"
	"github.com/alexkamer/recall/internal/log"
)

// Querier is the database surface the service consumes. *Queries
// implements it; tests substitute a mock.
type Querier interface {
	CreateNote(ctx context.Context, title, content string, tags []string) (Note, error)
	GetNote(ctx context.Context, id pgtype.UUID) (Note, error)
	ListNotes(ctx context.Context, limit, offset int32) ([]Note, error)
	UpdateNote(ctx context.Context, id pgtype.UUID, title, content string, tags []string) (Note, error)
	DeleteNote(ctx context.Context, id pgtype.UUID) error
}

// Indexer is the knowledge store surface used to keep notes searchable.
type Indexer interface {
	Add(ctx context.Context, chunks []knowledge.Chunk) error
	RemoveSource(ctx context.Context, sourceID string) (int64, error)
}

// Service is the note CRUD layer. Every write keeps the knowledge index in
// sync: created and updated notes are re-chunked and re-embedded, deleted
// notes leave the index.
//
// Indexing is best-effort: a note whose embedding fails still exists, it is
// just not retrievable until the next update re-indexes it.
type Service struct {
	querier Querier
	index   Indexer
	chunker *ingest.Chunker
	logger  log.Logger
}

// NewService creates a Service. index may be nil to disable indexing.
func NewService(querier Querier, index Indexer, chunker *ingest.Chunker, logger log.Logger) (*Service, error) {
	if querier == nil {
		return nil, errors.New("notes: querier is required")
	}
	if chunker == nil {
		chunker = ingest.NewChunker(ingest.ChunkerConfig{})
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{querier: querier, index: index, chunker: chunker, logger: logger}, nil
}

// Create stores a new note and indexes it.
func (s *Service) Create(ctx context.Context, title, content string, tags []string) (*Note, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("note title is required")
	}

	note, err := s.querier.CreateNote(ctx, title, content, tags)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.reindex(ctx, &note)
	return &note, nil
}

// Get fetches a note by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	note, err := s.querier.GetNote(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}
	return &note, nil
}

// List returns notes most recently updated first.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]Note, error) {
	notes, err := s.querier.ListNotes(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// Update replaces a note's content and re-indexes it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, title, content string, tags []string) (*Note, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("note title is required")
	}

	note, err := s.querier.UpdateNote(ctx, uuidToPg(id), title, content, tags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update note %s: %w", id, err)
	}

	s.reindex(ctx, &note)
	return &note, nil
}

// Delete removes a note and its index entries.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeleteNote(ctx, uuidToPg(id)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete note %s: %w", id, err)
	}

	if s.index != nil {
		sourceID := "note:" + id.String()
		if _, err := s.index.RemoveSource(ctx, sourceID); err != nil {
			s.logger.Warn("note index cleanup failed",
				"note_id", id,
				"error", err)
		}
	}
	return nil
}

func (s *Service) reindex(ctx context.Context, note *Note) {
	if s.index == nil {
		return
	}

	if _, err := s.index.RemoveSource(ctx, note.SourceID()); err != nil {
		s.logger.Warn("note reindex cleanup failed", "note_id", note.ID, "error", err)
		return
	}

	parts := s.chunker.Split(note.Content)
	if len(parts) == 0 {
		return
	}

	chunks := make([]knowledge.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, knowledge.Chunk{
			SourceID:   note.SourceID(),
			SourceType: chat.SourceNote,
			Title:      note.Title,
			ChunkIndex: int32(i), // #nosec G115 -- chunk count is bounded by note size
			Content:    part,
		})
	}

	if err := s.index.Add(ctx, chunks); err != nil {
		s.logger.Warn("note indexing failed",
			"note_id", note.ID,
			"chunks", len(chunks),
			"error", err)
		return
	}

	s.logger.Debug("indexed note", "note_id", note.ID, "chunks", len(chunks))
}
