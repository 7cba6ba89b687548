package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/log"
)

// ErrEmptyEmbedding indicates the embedder returned no vector for a text.
var ErrEmptyEmbedding = errors.New("empty embedding returned")

// Querier is the database surface the store consumes. *Queries implements
// it; tests substitute a mock.
type Querier interface {
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error
	DeleteChunksBySource(ctx context.Context, sourceID string) (int64, error)
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]Result, error)
	CountChunks(ctx context.Context) (int64, error)
}

// Store indexes chunks and performs similarity search over them. Embedding
// generation goes through the configured genkit embedder; vectors live in
// PostgreSQL with pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store.
func New(querier Querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, embedder: embedder, logger: logger}
}

// Add embeds and upserts chunks. Re-adding a (source, index) pair replaces
// the stored chunk. Chunks are processed in order; on failure the already
// written chunks remain indexed.
func (s *Store) Add(ctx context.Context, chunks []Chunk) error {
	for i, chunk := range chunks {
		embedding, err := s.embed(ctx, chunk.Content)
		if err != nil {
			return fmt.Errorf("embed chunk %d of %q: %w", i, chunk.SourceID, err)
		}

		if err := s.querier.UpsertChunk(ctx, UpsertChunkParams{
			SourceID:     chunk.SourceID,
			SourceType:   string(chunk.SourceType),
			Title:        chunk.Title,
			SectionTitle: chunk.SectionTitle,
			ChunkIndex:   chunk.ChunkIndex,
			Content:      chunk.Content,
			Embedding:    embedding,
		}); err != nil {
			return fmt.Errorf("upsert chunk %d of %q: %w", i, chunk.SourceID, err)
		}
	}

	s.logger.Debug("indexed chunks", "count", len(chunks))
	return nil
}

// RemoveSource deletes every chunk of a source and reports how many were
// removed.
func (s *Store) RemoveSource(ctx context.Context, sourceID string) (int64, error) {
	removed, err := s.querier.DeleteChunksBySource(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %q: %w", sourceID, err)
	}
	s.logger.Debug("removed source", "source_id", sourceID, "chunks", removed)
	return removed, nil
}

// Search returns the chunks most similar to query, closest first. The
// search runs under its own timeout so a slow vector scan cannot stall the
// caller indefinitely.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sourceTypes := make([]string, 0, len(cfg.scope))
	for _, st := range cfg.scope {
		sourceTypes = append(sourceTypes, string(st))
	}

	results, err := s.querier.SearchChunks(queryCtx, SearchChunksParams{
		QueryEmbedding: embedding,
		SourceTypes:    sourceTypes,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	s.logger.Debug("searched chunks",
		"results", len(results),
		"top_k", cfg.topK,
		"scoped", len(sourceTypes) > 0)
	return results, nil
}

// Count returns the number of indexed chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.querier.CountChunks(ctx)
}

func (s *Store) embed(ctx context.Context, text string) (*pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	v := pgvector.NewVector(resp.Embeddings[0].Embedding)
	return &v, nil
}

// Retriever adapts a Store to the chat pipeline's retrieval interface.
type Retriever struct {
	store *Store
}

// NewRetriever wraps store.
func NewRetriever(store *Store) *Retriever {
	return &Retriever{store: store}
}

// Search implements the retrieval boundary of the chat pipeline. Results
// come back in relevance order with citation indexes unset.
func (r *Retriever) Search(ctx context.Context, query string, scope chat.ScopeFilter, maxResults int) ([]chat.SourceChunk, error) {
	results, err := r.store.Search(ctx, query,
		WithScope(scope),
		WithTopK(int32(maxResults)), // #nosec G115 -- bounded by the pipeline's result cap
	)
	if err != nil {
		return nil, err
	}

	chunks := make([]chat.SourceChunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, chat.SourceChunk{
			SourceID:     res.SourceID,
			SourceType:   res.SourceType,
			Title:        res.Title,
			SectionTitle: res.SectionTitle,
			ChunkIndex:   int(res.ChunkIndex),
			Distance:     res.Distance,
			Content:      res.Content,
		})
	}
	return chunks, nil
}
