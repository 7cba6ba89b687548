package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/knowledge"
)

// mockIndexer records indexed chunks in memory.
type mockIndexer struct {
	addErr  error
	added   []knowledge.Chunk
	removed []string
}

func (m *mockIndexer) Add(ctx context.Context, chunks []knowledge.Chunk) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, chunks...)
	return nil
}

func (m *mockIndexer) RemoveSource(ctx context.Context, sourceID string) (int64, error) {
	m.removed = append(m.removed, sourceID)
	return 0, nil
}

// TestService_IngestDocument tests chunking and indexing of pasted text
func TestService_IngestDocument(t *testing.T) {
	t.Parallel()

	index := &mockIndexer{}
	svc, err := NewService(index, nil, nil, NewChunker(ChunkerConfig{MaxChars: 40, Overlap: 8}), nil)
	require.NoError(t, err)

	text := "First paragraph about koji.\n\nSecond paragraph about rice preparation."
	result, err := svc.IngestDocument(context.Background(), "fermentation.md", text)
	require.NoError(t, err)

	assert.Equal(t, "doc:fermentation.md", result.SourceID)
	assert.Equal(t, "fermentation.md", result.Title)
	assert.Equal(t, result.Chunks, len(index.added))

	// Old chunks are cleared before the new ones land.
	assert.Equal(t, []string{"doc:fermentation.md"}, index.removed)

	for i, chunk := range index.added {
		assert.Equal(t, "doc:fermentation.md", chunk.SourceID)
		assert.Equal(t, chat.SourceDocument, chunk.SourceType)
		assert.Equal(t, int32(i), chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.Content)
	}
}

// TestService_IngestDocument_Empty tests rejection of empty sources
func TestService_IngestDocument_Empty(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&mockIndexer{}, nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.IngestDocument(context.Background(), "empty.md", "   \n\n ")
	assert.ErrorIs(t, err, ErrEmptySource)

	_, err = svc.IngestDocument(context.Background(), "", "text")
	assert.Error(t, err)
}

// TestService_IngestWeb tests the fetch-extract-index path
func TestService_IngestWeb(t *testing.T) {
	t.Parallel()

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Koji Guide</title></head><body>
			<article><h1>Koji Guide</h1>` +
			strings.Repeat("<p>Koji is grown on steamed rice in a warm, humid chamber for about two days.</p>", 10) +
			`</article></body></html>`))
	}))
	defer page.Close()

	index := &mockIndexer{}
	svc, err := NewService(index, NewWebFetcher(page.Client(), nil), nil, nil, nil)
	require.NoError(t, err)

	result, err := svc.IngestWeb(context.Background(), page.URL)
	require.NoError(t, err)

	assert.Equal(t, "web:"+page.URL, result.SourceID)
	assert.Greater(t, result.Chunks, 0)
	require.NotEmpty(t, index.added)
	assert.Equal(t, chat.SourceWeb, index.added[0].SourceType)
	assert.Contains(t, index.added[0].Content, "steamed rice")
}

// TestService_IngestWeb_NotConfigured tests the missing-fetcher guard
func TestService_IngestWeb_NotConfigured(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&mockIndexer{}, nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.IngestWeb(context.Background(), "https://example.com")
	assert.Error(t, err)
}
