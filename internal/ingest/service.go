// Package ingest turns external sources (web pages, YouTube transcripts,
// uploaded documents) into indexed knowledge chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/knowledge"
	"github.com/alexkamer/recall/internal/log"
)

// ErrEmptySource indicates a source yielded no indexable text.
var ErrEmptySource = errors.New("source has no indexable text")

// Indexer is the knowledge store surface the service consumes.
type Indexer interface {
	Add(ctx context.Context, chunks []knowledge.Chunk) error
	RemoveSource(ctx context.Context, sourceID string) (int64, error)
}

// Result summarizes one ingestion.
type Result struct {
	SourceID string `json:"sourceId"`
	Title    string `json:"title"`
	Chunks   int    `json:"chunks"`
}

// Service fetches, chunks, and indexes sources.
type Service struct {
	index   Indexer
	web     *WebFetcher
	youtube *TranscriptFetcher
	chunker *Chunker
	logger  log.Logger
}

// NewService creates a Service. web and youtube may be nil when the
// corresponding source kinds are not needed.
func NewService(index Indexer, web *WebFetcher, youtube *TranscriptFetcher, chunker *Chunker, logger log.Logger) (*Service, error) {
	if index == nil {
		return nil, errors.New("ingest: indexer is required")
	}
	if chunker == nil {
		chunker = NewChunker(ChunkerConfig{})
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{index: index, web: web, youtube: youtube, chunker: chunker, logger: logger}, nil
}

// IngestWeb fetches a web page and indexes its readable text. Re-ingesting
// the same URL replaces its chunks.
func (s *Service) IngestWeb(ctx context.Context, rawURL string) (*Result, error) {
	if s.web == nil {
		return nil, errors.New("web ingestion not configured")
	}

	page, err := s.web.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return s.indexSource(ctx, "web:"+page.URL, chat.SourceWeb, page.Title, page.Text)
}

// IngestYouTube fetches a video transcript and indexes it.
func (s *Service) IngestYouTube(ctx context.Context, videoURL, lang string) (*Result, error) {
	if s.youtube == nil {
		return nil, errors.New("youtube ingestion not configured")
	}

	transcript, err := s.youtube.Fetch(ctx, videoURL, lang)
	if err != nil {
		return nil, err
	}

	return s.indexSource(ctx, "youtube:"+transcript.VideoID, chat.SourceWeb, transcript.Title, transcript.Text)
}

// IngestDocument indexes pasted or uploaded text under the given name.
func (s *Service) IngestDocument(ctx context.Context, name, text string) (*Result, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("document name is required")
	}
	return s.indexSource(ctx, "doc:"+name, chat.SourceDocument, name, text)
}

// Remove deletes every chunk of a previously ingested source.
func (s *Service) Remove(ctx context.Context, sourceID string) (int64, error) {
	return s.index.RemoveSource(ctx, sourceID)
}

func (s *Service) indexSource(ctx context.Context, sourceID string, sourceType chat.SourceType, title, text string) (*Result, error) {
	parts := s.chunker.Split(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, sourceID)
	}

	// Replace rather than append so re-ingestion cannot leave stale chunks
	// behind when the source shrank.
	if _, err := s.index.RemoveSource(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("clear previous chunks of %s: %w", sourceID, err)
	}

	chunks := make([]knowledge.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, knowledge.Chunk{
			SourceID:   sourceID,
			SourceType: sourceType,
			Title:      title,
			ChunkIndex: int32(i), // #nosec G115 -- chunk count is bounded by source size
			Content:    part,
		})
	}

	if err := s.index.Add(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index %s: %w", sourceID, err)
	}

	s.logger.Info("ingested source",
		"source_id", sourceID,
		"source_type", sourceType,
		"chunks", len(chunks))

	return &Result{SourceID: sourceID, Title: title, Chunks: len(chunks)}, nil
}
