package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/log"
	"github.com/alexkamer/recall/internal/notes"
)

type stubSearcher struct {
	chunks []chat.SourceChunk
	err    error

	lastQuery string
	lastScope chat.ScopeFilter
	lastMax   int
}

func (s *stubSearcher) Search(_ context.Context, query string, scope chat.ScopeFilter, maxResults int) ([]chat.SourceChunk, error) {
	s.lastQuery, s.lastScope, s.lastMax = query, scope, maxResults
	return s.chunks, s.err
}

type stubNoteWriter struct {
	note *notes.Note
	err  error

	lastTitle   string
	lastContent string
}

func (s *stubNoteWriter) Create(_ context.Context, title, content string, _ []string) (*notes.Note, error) {
	s.lastTitle, s.lastContent = title, content
	return s.note, s.err
}

func newTestServer(t *testing.T, searcher Searcher, writer NoteWriter) *Server {
	t.Helper()

	srv, err := NewServer(Config{
		Name:     "recall",
		Version:  "test",
		Searcher: searcher,
		Notes:    writer,
		Logger:   log.NewNop(),
	})
	require.NoError(t, err)
	return srv
}

func TestNewServerValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing name", cfg: Config{Version: "1", Searcher: &stubSearcher{}, Logger: log.NewNop()}},
		{name: "missing version", cfg: Config{Name: "recall", Searcher: &stubSearcher{}, Logger: log.NewNop()}},
		{name: "missing searcher", cfg: Config{Name: "recall", Version: "1", Logger: log.NewNop()}},
		{name: "missing logger", cfg: Config{Name: "recall", Version: "1", Searcher: &stubSearcher{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewServer(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestSearchFormatsResults(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{chunks: []chat.SourceChunk{
		{SourceID: "note:1", SourceType: chat.SourceNote, Title: "Raft", SectionTitle: "Leader election", Distance: 0.12, Content: "Leaders are elected by majority vote."},
		{SourceID: "web:x", SourceType: chat.SourceWeb, Title: "Consensus post", Distance: 0.3, Content: "Paxos and Raft compared."},
	}}
	srv := newTestServer(t, searcher, nil)

	result, _, err := srv.Search(context.Background(), nil, SearchInput{Query: "how does raft elect a leader"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)

	text := result.Content[0].(*sdk.TextContent).Text
	assert.Contains(t, text, "[1] Raft")
	assert.Contains(t, text, "Leader election")
	assert.Contains(t, text, "[2] Consensus post")
	assert.Contains(t, text, "majority vote")

	assert.Equal(t, "how does raft elect a leader", searcher.lastQuery)
	assert.Equal(t, chat.DefaultScope(), searcher.lastScope)
	assert.Equal(t, defaultSearchResults, searcher.lastMax)
}

func TestSearchScopeAndLimit(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{}
	srv := newTestServer(t, searcher, nil)

	_, _, err := srv.Search(context.Background(), nil, SearchInput{
		Query:      "channels",
		Scope:      []string{"note"},
		MaxResults: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, chat.ScopeFilter{chat.SourceNote}, searcher.lastScope)
	assert.Equal(t, 2, searcher.lastMax)
}

func TestSearchRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{}, nil)

	result, _, err := srv.Search(context.Background(), nil, SearchInput{Query: "   "})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = srv.Search(context.Background(), nil, SearchInput{Query: "x", Scope: []string{"wiki"}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSearchEngineErrorPropagates(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{err: errors.New("pool closed")}, nil)

	_, _, err := srv.Search(context.Background(), nil, SearchInput{Query: "x"})
	require.Error(t, err)
}

func TestSearchNoResults(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{chunks: []chat.SourceChunk{}}, nil)

	result, _, err := srv.Search(context.Background(), nil, SearchInput{Query: "nothing"})
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].(*sdk.TextContent).Text, "No matching knowledge")
}

func TestStore(t *testing.T) {
	t.Parallel()

	writer := &stubNoteWriter{note: &notes.Note{ID: uuid.New(), Title: "Raft"}}
	srv := newTestServer(t, &stubSearcher{}, writer)

	result, _, err := srv.Store(context.Background(), nil, StoreInput{Title: "Raft", Content: "notes on raft"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Raft", writer.lastTitle)
	assert.Equal(t, "notes on raft", writer.lastContent)
}

func TestStoreFailure(t *testing.T) {
	t.Parallel()

	writer := &stubNoteWriter{err: errors.New("title must not be empty")}
	srv := newTestServer(t, &stubSearcher{}, writer)

	result, _, err := srv.Store(context.Background(), nil, StoreInput{Content: "untitled"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestStoreNotConfigured(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubSearcher{}, nil)

	result, _, err := srv.Store(context.Background(), nil, StoreInput{Title: "x", Content: "y"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
