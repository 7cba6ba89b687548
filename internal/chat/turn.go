package chat

import (
	"time"

	"github.com/google/uuid"
)

// ToolName is the single retrieval tool the pipeline can invoke.
const ToolName = "knowledge_search"

// MaxToolCalls bounds the number of retrieval invocations per turn. The
// state machine consults this constant rather than assuming a single search,
// so raising it later does not require restructuring the pipeline.
const MaxToolCalls = 1

// SourceType categorizes where a knowledge chunk came from.
type SourceType string

const (
	SourceNote     SourceType = "note"
	SourceDocument SourceType = "document"
	SourceWeb      SourceType = "web"
)

// ScopeFilter restricts retrieval to a set of source types. An empty scope
// means retrieval is disabled for the request; the decision engine's
// conservative fallback keys off this.
type ScopeFilter []SourceType

// IsEmpty reports whether no source types are enabled.
func (s ScopeFilter) IsEmpty() bool { return len(s) == 0 }

// Contains reports whether t is within scope.
func (s ScopeFilter) Contains(t SourceType) bool {
	for _, st := range s {
		if st == t {
			return true
		}
	}
	return false
}

// DefaultScope enables every private-corpus source type.
func DefaultScope() ScopeFilter {
	return ScopeFilter{SourceNote, SourceDocument, SourceWeb}
}

// QueryType is the classified intent of a user message.
type QueryType string

const (
	QueryFactual        QueryType = "factual"
	QueryProcedural     QueryType = "procedural"
	QueryConversational QueryType = "conversational"
	QueryComputational  QueryType = "computational"
	QueryGeneral        QueryType = "general"
)

// Complexity is a coarse estimate of how involved answering will be.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Decision is the output of the search-decision engine for one turn.
type Decision struct {
	ShouldSearch bool       `json:"shouldSearch"`
	QueryType    QueryType  `json:"queryType"`
	Complexity   Complexity `json:"complexity"`
}

// TurnStatus is the lifecycle state of a turn.
type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnStreaming TurnStatus = "streaming"
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
)

// ToolStatus is the outcome of a tool invocation.
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// SourceChunk is one retrieved unit of knowledge. Chunks are produced by the
// retrieval engine and read-only to the pipeline; CitationIndex is assigned
// by the tool runner in result order, 1-based and contiguous within a turn.
type SourceChunk struct {
	SourceID      string     `json:"sourceId"`
	SourceType    SourceType `json:"sourceType"`
	Title         string     `json:"title"`
	SectionTitle  string     `json:"sectionTitle,omitempty"`
	ChunkIndex    int        `json:"chunkIndex"`
	Distance      float64    `json:"distance"` // similarity distance, lower is closer
	CitationIndex int        `json:"citationIndex"`
	Content       string     `json:"-"` // fed to synthesis, not serialized on the wire
}

// SearchParams are the parameters of one knowledge_search invocation.
type SearchParams struct {
	Query      string      `json:"query"`
	Scope      ScopeFilter `json:"scope,omitempty"`
	MaxResults int         `json:"maxResults"`
}

// ToolCall records a single retrieval invocation. Immutable once the tool
// runner returns it.
//
// Result distinguishes two different empty outcomes: a nil slice means the
// retrieval call itself failed (see ErrorReason), while a non-nil empty
// slice means retrieval succeeded and found nothing.
type ToolCall struct {
	Name        string        `json:"name"`
	Params      SearchParams  `json:"params"`
	Status      ToolStatus    `json:"status"`
	Result      []SourceChunk `json:"result"`
	ErrorReason string        `json:"errorReason,omitempty"`
	Duration    time.Duration `json:"durationMs"`
}

// Failed reports whether the retrieval call errored (as opposed to
// succeeding with zero matches).
func (tc *ToolCall) Failed() bool { return tc.Status == ToolError }

// Chunks returns the retrieved chunks, or nil when the call failed or no
// call happened.
func (tc *ToolCall) Chunks() []SourceChunk {
	if tc == nil || tc.Status != ToolSuccess {
		return nil
	}
	return tc.Result
}

// Exchange is one prior message used as classification and synthesis
// context.
type Exchange struct {
	Role string // "user" or "assistant"
	Text string
}

// Turn is one user message and its assistant response. Only the coordinator
// mutates a Turn; it becomes immutable once Status is TurnCompleted or
// TurnFailed.
type Turn struct {
	ConversationID     uuid.UUID
	UserText           string
	Decision           Decision
	ToolCall           *ToolCall
	AnswerText         string
	Citations          []SourceChunk
	SuggestedQuestions []string
	Status             TurnStatus
}
