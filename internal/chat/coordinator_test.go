package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is an in-memory Store with injectable failures.
type mockStore struct {
	mu            sync.Mutex
	createErr     error
	appendErr     error
	historyErr    error
	history       []Exchange
	created       []uuid.UUID
	appendedTurns []*Turn
	lastMessageID uuid.UUID
}

func (m *mockStore) CreateConversation(ctx context.Context, title string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return uuid.Nil, m.createErr
	}
	id := uuid.New()
	m.created = append(m.created, id)
	return id, nil
}

func (m *mockStore) AppendTurn(ctx context.Context, conversationID uuid.UUID, turn *Turn) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return uuid.Nil, m.appendErr
	}
	m.appendedTurns = append(m.appendedTurns, turn)
	m.lastMessageID = uuid.New()
	return m.lastMessageID, nil
}

func (m *mockStore) History(ctx context.Context, conversationID uuid.UUID, limit int32) ([]Exchange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

func (m *mockStore) appended() []*Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Turn(nil), m.appendedTurns...)
}

// mockCompletion drives the three LLM operations with injectable behavior.
type mockCompletion struct {
	queryType   QueryType
	classifyErr error

	answer        string
	answerChunks  []string
	synthesizeErr error
	synthesized   atomic.Int32

	suggestions []string
	suggestErr  error
}

func (m *mockCompletion) Classify(ctx context.Context, text string, history []Exchange) (QueryType, Complexity, error) {
	if m.classifyErr != nil {
		return "", "", m.classifyErr
	}
	qt := m.queryType
	if qt == "" {
		qt = QueryFactual
	}
	return qt, ComplexitySimple, nil
}

func (m *mockCompletion) Synthesize(ctx context.Context, req SynthesisRequest, onChunk func(context.Context, string) error) (string, error) {
	m.synthesized.Add(1)
	if m.synthesizeErr != nil {
		return "", m.synthesizeErr
	}
	chunks := m.answerChunks
	if chunks == nil {
		chunks = []string{m.answer}
	}
	for _, chunk := range chunks {
		if err := onChunk(ctx, chunk); err != nil {
			return "", err
		}
	}
	return strings.Join(chunks, ""), nil
}

func (m *mockCompletion) Suggest(ctx context.Context, userText, answer string) ([]string, error) {
	return m.suggestions, m.suggestErr
}

// eventRecorder collects emitted events and can fail on demand.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	failOn EventKind
}

func (r *eventRecorder) emit(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && ev.Kind() == r.failOn {
		return errors.New("client gone")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind()
	}
	return kinds
}

func (r *eventRecorder) find(kind EventKind) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind() == kind {
			return ev
		}
	}
	return nil
}

func newTestCoordinator(t *testing.T, store *mockStore, completion *mockCompletion, retriever Retriever) *Coordinator {
	t.Helper()
	if retriever == nil {
		retriever = retrieverFunc(func(ctx context.Context, query string, scope ScopeFilter, maxResults int) ([]SourceChunk, error) {
			return nil, nil
		})
	}
	c, err := NewCoordinator(Config{
		Store:      store,
		Completion: completion,
		Retriever:  retriever,
	})
	require.NoError(t, err)
	return c
}

// TestNewCoordinator_Validation tests constructor dependency checks
func TestNewCoordinator_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         Config
		errContains string
	}{
		{"missing store", Config{Completion: &mockCompletion{}, Retriever: retrieverFunc(nil)}, "store is required"},
		{"missing completion", Config{Store: &mockStore{}, Retriever: retrieverFunc(nil)}, "completion engine is required"},
		{"missing retriever", Config{Store: &mockStore{}, Completion: &mockCompletion{}}, "retriever is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewCoordinator(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

// TestStream_DirectAnswer tests a turn where the decision skips retrieval
func TestStream_DirectAnswer(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{
		queryType:    QueryConversational,
		answerChunks: []string{"Hello! ", "How can I help?"},
	}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "hi"}, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventStatus,
		EventContent,
		EventContent,
		EventDone,
	}, rec.kinds())

	assert.Nil(t, rec.find(EventSources), "no search means no sources event")

	turns := store.appended()
	require.Len(t, turns, 1)
	assert.Equal(t, TurnCompleted, turns[0].Status)
	assert.False(t, turns[0].Decision.ShouldSearch)
	assert.Nil(t, turns[0].ToolCall)
	assert.Equal(t, "Hello! How can I help?", turns[0].AnswerText)

	done, ok := rec.find(EventDone).(DoneEvent)
	require.True(t, ok)
	assert.Equal(t, store.lastMessageID, done.MessageID)
}

// TestStream_SearchAndCite tests the full retrieval turn with citations
func TestStream_SearchAndCite(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{
		queryType:   QueryFactual,
		answer:      "Use preserved lemons [1] and let it rest overnight (Source 2).",
		suggestions: []string{"How long do preserved lemons keep?"},
	}
	retriever := retrieverFunc(func(ctx context.Context, query string, scope ScopeFilter, maxResults int) ([]SourceChunk, error) {
		return []SourceChunk{
			{SourceID: "n1", SourceType: SourceNote, Title: "Tagine notes", Content: "lemons"},
			{SourceID: "n2", SourceType: SourceNote, Title: "Resting dough", Content: "overnight"},
		}, nil
	})
	c := newTestCoordinator(t, store, completion, retriever)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "how do I make tagine?"}, rec.emit)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventStatus,
		EventToolCall,
		EventToolResult,
		EventStatus,
		EventContent,
		EventSources,
		EventSuggestions,
		EventDone,
	}, rec.kinds())

	result, ok := rec.find(EventToolResult).(ToolResultEvent)
	require.True(t, ok)
	assert.Equal(t, ToolSuccess, result.Status)
	assert.Equal(t, 2, result.ResultCount)

	sources, ok := rec.find(EventSources).(SourcesEvent)
	require.True(t, ok)
	require.Len(t, sources.Sources, 2)
	assert.Equal(t, 1, sources.Sources[0].CitationIndex)

	turns := store.appended()
	require.Len(t, turns, 1)
	assert.Equal(t, "Use preserved lemons [1] and let it rest overnight [2].", turns[0].AnswerText)
	require.NotNil(t, turns[0].ToolCall)
	assert.Equal(t, ToolSuccess, turns[0].ToolCall.Status)
	assert.Len(t, turns[0].Citations, 2)
	assert.Equal(t, completion.suggestions, turns[0].SuggestedQuestions)
}

// TestStream_RetrievalFailureDegrades tests that a broken retriever does not fail the turn
func TestStream_RetrievalFailureDegrades(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{
		queryType: QueryFactual,
		answer:    "I could not reach your notes, but generally speaking it rests overnight.",
	}
	retriever := retrieverFunc(func(ctx context.Context, query string, scope ScopeFilter, maxResults int) ([]SourceChunk, error) {
		return nil, errors.New("vector index offline")
	})
	c := newTestCoordinator(t, store, completion, retriever)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "how long does it rest?"}, rec.emit)
	require.NoError(t, err)

	result, ok := rec.find(EventToolResult).(ToolResultEvent)
	require.True(t, ok)
	assert.Equal(t, ToolError, result.Status)
	assert.Equal(t, "vector index offline", result.ErrorReason)
	assert.Zero(t, result.ResultCount)

	// The search ran, so a sources event still arrives, carrying nothing.
	sources, ok := rec.find(EventSources).(SourcesEvent)
	require.True(t, ok)
	assert.NotNil(t, sources.Sources)
	assert.Empty(t, sources.Sources)

	turns := store.appended()
	require.Len(t, turns, 1)
	require.NotNil(t, turns[0].ToolCall)
	assert.True(t, turns[0].ToolCall.Failed())
	assert.Nil(t, turns[0].ToolCall.Result)
}

// TestStream_NewConversation tests id assignment and the conversation_id event
func TestStream_NewConversation(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{queryType: QueryConversational, answer: "Hi."}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{Text: "hello"}, rec.emit)
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	ev, ok := rec.find(EventConversationID).(ConversationEvent)
	require.True(t, ok, "new conversation must announce its id")
	assert.Equal(t, store.created[0], ev.ConversationID)

	kinds := rec.kinds()
	assert.Equal(t, EventDone, kinds[len(kinds)-1], "conversation_id precedes done")

	turns := store.appended()
	require.Len(t, turns, 1)
	assert.Equal(t, store.created[0], turns[0].ConversationID)
}

// TestStream_EmptyMessage tests rejection of blank input
func TestStream_EmptyMessage(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(t, &mockStore{}, &mockCompletion{}, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{Text: "   \n\t"}, rec.emit)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, rec.kinds())
}

// TestStream_GenerationFailure tests the fatal synthesis path
func TestStream_GenerationFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{
		queryType:     QueryConversational,
		synthesizeErr: errors.New("model overloaded"),
	}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "hi"}, rec.emit)
	assert.ErrorIs(t, err, ErrGeneration)

	require.NotNil(t, rec.find(EventError))
	assert.Nil(t, rec.find(EventDone))
	assert.Empty(t, store.appended(), "failed turns are never persisted")
}

// TestStream_CommitFailure tests that a store rejection surfaces as an error event
func TestStream_CommitFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{appendErr: errors.New("deadlock detected")}
	completion := &mockCompletion{queryType: QueryConversational, answer: "Hi."}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "hi"}, rec.emit)
	assert.ErrorIs(t, err, ErrCommit)

	errEv, ok := rec.find(EventError).(ErrorEvent)
	require.True(t, ok)
	assert.NotEmpty(t, errEv.Message)
	assert.Nil(t, rec.find(EventDone))
}

// TestStream_ClientDisconnect tests that a dead client aborts without persisting
func TestStream_ClientDisconnect(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{queryType: QueryConversational, answer: "Hi."}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{failOn: EventContent}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "hi"}, rec.emit)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, store.appended())
}

// TestStream_HistoryErrorTolerated tests degradation when history cannot load
func TestStream_HistoryErrorTolerated(t *testing.T) {
	t.Parallel()

	store := &mockStore{historyErr: errors.New("connection reset")}
	completion := &mockCompletion{queryType: QueryConversational, answer: "Hi."}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "hi"}, rec.emit)
	require.NoError(t, err)
	assert.NotNil(t, rec.find(EventDone))
}

// TestStream_SuggestionFailureTolerated tests that suggestion errors are silent
func TestStream_SuggestionFailureTolerated(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	completion := &mockCompletion{
		queryType:  QueryConversational,
		answer:     "Hi.",
		suggestErr: errors.New("quota exhausted"),
	}
	c := newTestCoordinator(t, store, completion, nil)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{ConversationID: uuid.New(), Text: "hi"}, rec.emit)
	require.NoError(t, err)
	assert.Nil(t, rec.find(EventSuggestions))
	assert.NotNil(t, rec.find(EventDone))

	turns := store.appended()
	require.Len(t, turns, 1)
	assert.Empty(t, turns[0].SuggestedQuestions)
}

// TestStream_SameConversationSerialized tests per-conversation turn ordering
func TestStream_SameConversationSerialized(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	store := &mockStore{}
	completion := &mockCompletion{queryType: QueryConversational, answer: "ok"}
	retriever := retrieverFunc(func(ctx context.Context, query string, scope ScopeFilter, maxResults int) ([]SourceChunk, error) {
		return nil, nil
	})

	c, err := NewCoordinator(Config{Store: store, Completion: completion, Retriever: retriever})
	require.NoError(t, err)

	// Track overlap inside synthesis, the longest phase of the turn.
	tracked := &trackingCompletion{inner: completion, inFlight: &inFlight, maxInFlight: &maxInFlight}
	c.completion = tracked
	c.decider = NewDecider(tracked, 0, nil)

	conversationID := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &eventRecorder{}
			err := c.Stream(context.Background(), Request{ConversationID: conversationID, Text: "hi"}, rec.emit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load(), "turns on one conversation must not overlap")
	assert.Len(t, store.appended(), 4)
}

// trackingCompletion wraps a Completion and records synthesis concurrency.
type trackingCompletion struct {
	inner       Completion
	inFlight    *atomic.Int32
	maxInFlight *atomic.Int32
}

func (tc *trackingCompletion) Classify(ctx context.Context, text string, history []Exchange) (QueryType, Complexity, error) {
	return tc.inner.Classify(ctx, text, history)
}

func (tc *trackingCompletion) Synthesize(ctx context.Context, req SynthesisRequest, onChunk func(context.Context, string) error) (string, error) {
	n := tc.inFlight.Add(1)
	for {
		old := tc.maxInFlight.Load()
		if n <= old || tc.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	defer tc.inFlight.Add(-1)
	return tc.inner.Synthesize(ctx, req, onChunk)
}

func (tc *trackingCompletion) Suggest(ctx context.Context, userText, answer string) ([]string, error) {
	return tc.inner.Suggest(ctx, userText, answer)
}

// TestStream_ScopeLimitsSearch tests that the request scope reaches the retriever
func TestStream_ScopeLimitsSearch(t *testing.T) {
	t.Parallel()

	var gotScope ScopeFilter
	store := &mockStore{}
	completion := &mockCompletion{queryType: QueryFactual, answer: "See [1]."}
	retriever := retrieverFunc(func(ctx context.Context, query string, scope ScopeFilter, maxResults int) ([]SourceChunk, error) {
		gotScope = scope
		return []SourceChunk{{SourceID: "a", SourceType: SourceNote, Title: "A"}}, nil
	})
	c := newTestCoordinator(t, store, completion, retriever)
	rec := &eventRecorder{}

	err := c.Stream(context.Background(), Request{
		ConversationID: uuid.New(),
		Text:           "what did I write about sourdough?",
		Scope:          ScopeFilter{SourceNote},
	}, rec.emit)
	require.NoError(t, err)
	assert.Equal(t, ScopeFilter{SourceNote}, gotScope)
}

// TestDeriveTitle tests conversation title derivation
func TestDeriveTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short message", deriveTitle("short  message"))
	assert.Equal(t, "a b c", deriveTitle("\n a\tb   c \n"))

	long := deriveTitle(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len([]rune(long)), 80)
	assert.True(t, strings.HasSuffix(long, "…"))
}
