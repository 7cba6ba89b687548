package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/alexkamer/recall/internal/chat"
)

// setSSEHeaders prepares a response for Server-Sent Events streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeStreamEvent serializes one turn event onto the wire. The type switch
// is exhaustive over the sealed event set; an event kind this boundary does
// not know is a programming error and is rejected rather than guessed at.
func writeStreamEvent(w io.Writer, flusher http.Flusher, ev chat.Event) error {
	switch e := ev.(type) {
	case chat.StatusEvent:
		return writeSSE(w, flusher, chat.EventStatus, e)
	case chat.ToolCallEvent:
		return writeSSE(w, flusher, chat.EventToolCall, e)
	case chat.ToolResultEvent:
		return writeSSE(w, flusher, chat.EventToolResult, e)
	case chat.ContentEvent:
		return writeSSE(w, flusher, chat.EventContent, e)
	case chat.SourcesEvent:
		return writeSSE(w, flusher, chat.EventSources, e)
	case chat.SuggestionsEvent:
		return writeSSE(w, flusher, chat.EventSuggestions, e)
	case chat.ConversationEvent:
		return writeSSE(w, flusher, chat.EventConversationID, e)
	case chat.DoneEvent:
		return writeSSE(w, flusher, chat.EventDone, e)
	case chat.ErrorEvent:
		return writeSSE(w, flusher, chat.EventError, e)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind())
	}
}

// writeSSE writes a single SSE frame with a JSON-encoded payload.
// SSE format: "event: <name>\ndata: <json>\n\n".
func writeSSE[T any](w io.Writer, flusher http.Flusher, name chat.EventKind, data T) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
