package chat

import (
	"context"

	"github.com/google/uuid"
)

// Retriever is the external retrieval engine. Implementations perform
// vector-similarity search over the private corpus and return chunks in
// relevance order with CitationIndex unset.
type Retriever interface {
	Search(ctx context.Context, query string, scope ScopeFilter, maxResults int) ([]SourceChunk, error)
}

// SynthesisRequest carries everything the completion engine needs to
// generate an answer for one turn.
type SynthesisRequest struct {
	UserText string
	History  []Exchange
	// Chunks are the retrieved sources, already numbered by citation index.
	// Empty or nil when no search ran or retrieval failed; the engine then
	// answers from general knowledge.
	Chunks []SourceChunk
}

// Completion is the external LLM backend.
type Completion interface {
	// Classify determines the intent and complexity of a user message.
	Classify(ctx context.Context, text string, history []Exchange) (QueryType, Complexity, error)

	// Synthesize generates the answer, invoking onChunk for each partial
	// text fragment as it is produced. It returns the full accumulated text
	// after the stream ends. An error from onChunk aborts generation.
	Synthesize(ctx context.Context, req SynthesisRequest, onChunk func(context.Context, string) error) (string, error)

	// Suggest proposes follow-up questions for a finished turn. Failures
	// are non-fatal; callers degrade to no suggestions.
	Suggest(ctx context.Context, userText, answer string) ([]string, error)
}

// Store is the conversation persistence boundary consumed by the
// coordinator. AppendTurn must be atomic: either the whole turn becomes
// visible in history or none of it does.
type Store interface {
	CreateConversation(ctx context.Context, title string) (uuid.UUID, error)
	AppendTurn(ctx context.Context, conversationID uuid.UUID, turn *Turn) (uuid.UUID, error)
	History(ctx context.Context, conversationID uuid.UUID, limit int32) ([]Exchange, error)
}
