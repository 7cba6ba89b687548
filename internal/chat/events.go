package chat

import (
	"context"

	"github.com/google/uuid"
)

// EventKind names one of the closed set of stream event kinds.
type EventKind string

const (
	EventStatus         EventKind = "status"
	EventToolCall       EventKind = "tool_call"
	EventToolResult     EventKind = "tool_result"
	EventContent        EventKind = "content"
	EventSources        EventKind = "sources"
	EventSuggestions    EventKind = "suggested_questions"
	EventConversationID EventKind = "conversation_id"
	EventDone           EventKind = "done"
	EventError          EventKind = "error"
)

// Event is one unit on the per-turn stream. The set of implementations is
// closed: every event is one of the structs below, each with a fixed field
// set, and the serialization boundary rejects anything else. Events exist
// only on the transport; they are never persisted.
type Event interface {
	Kind() EventKind
	sealed()
}

// StatusEvent carries a free-text progress string.
type StatusEvent struct {
	Message string `json:"message"`
}

// ToolCallEvent announces that a retrieval invocation is starting.
type ToolCallEvent struct {
	Name   string       `json:"name"`
	Params SearchParams `json:"params"`
}

// ToolResultEvent reports how the retrieval invocation ended. It is always
// emitted after a ToolCallEvent, including on retrieval failure.
type ToolResultEvent struct {
	Status      ToolStatus `json:"status"`
	ResultCount int        `json:"resultCount"`
	ErrorReason string     `json:"errorReason,omitempty"`
}

// ContentEvent is one incremental answer chunk; the client concatenates
// them in arrival order.
type ContentEvent struct {
	Text string `json:"text"`
}

// SourcesEvent carries the resolved citation list for the turn.
type SourcesEvent struct {
	Sources []SourceChunk `json:"sources"`
}

// SuggestionsEvent carries follow-up questions.
type SuggestionsEvent struct {
	Questions []string `json:"questions"`
}

// ConversationEvent reports the identifier of a freshly created
// conversation. Emitted only on the first turn, before DoneEvent.
type ConversationEvent struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

// DoneEvent terminates a successful turn with the persisted message id.
type DoneEvent struct {
	MessageID uuid.UUID `json:"messageId"`
}

// ErrorEvent terminates a failed turn.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (StatusEvent) Kind() EventKind       { return EventStatus }
func (ToolCallEvent) Kind() EventKind     { return EventToolCall }
func (ToolResultEvent) Kind() EventKind   { return EventToolResult }
func (ContentEvent) Kind() EventKind      { return EventContent }
func (SourcesEvent) Kind() EventKind      { return EventSources }
func (SuggestionsEvent) Kind() EventKind  { return EventSuggestions }
func (ConversationEvent) Kind() EventKind { return EventConversationID }
func (DoneEvent) Kind() EventKind         { return EventDone }
func (ErrorEvent) Kind() EventKind        { return EventError }

func (StatusEvent) sealed()       {}
func (ToolCallEvent) sealed()     {}
func (ToolResultEvent) sealed()   {}
func (ContentEvent) sealed()      {}
func (SourcesEvent) sealed()      {}
func (SuggestionsEvent) sealed()  {}
func (ConversationEvent) sealed() {}
func (DoneEvent) sealed()         {}
func (ErrorEvent) sealed()        {}

// EmitFunc delivers one event to the client. Returning an error aborts the
// turn; the coordinator treats it as a client disconnect.
type EmitFunc func(ctx context.Context, ev Event) error
