package api

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexkamer/recall/internal/chat"
)

type countingFlusher struct {
	flushes int
}

func (f *countingFlusher) Flush() { f.flushes++ }

func TestWriteStreamEvent(t *testing.T) {
	t.Parallel()

	convID := uuid.New()
	msgID := uuid.New()

	tests := []struct {
		name      string
		event     chat.Event
		wantName  string
		wantInput string
	}{
		{
			name:      "status",
			event:     chat.StatusEvent{Message: "Searching your knowledge base"},
			wantName:  "status",
			wantInput: `"Searching your knowledge base"`,
		},
		{
			name: "tool call",
			event: chat.ToolCallEvent{
				Name:   chat.ToolName,
				Params: chat.SearchParams{Query: "go routines", MaxResults: 5},
			},
			wantName:  "tool_call",
			wantInput: `"knowledge_search"`,
		},
		{
			name:      "tool result",
			event:     chat.ToolResultEvent{Status: chat.ToolSuccess, ResultCount: 3},
			wantName:  "tool_result",
			wantInput: `"resultCount":3`,
		},
		{
			name:      "content",
			event:     chat.ContentEvent{Text: "Goroutines are"},
			wantName:  "content",
			wantInput: `"Goroutines are"`,
		},
		{
			name:      "sources",
			event:     chat.SourcesEvent{Sources: []chat.SourceChunk{}},
			wantName:  "sources",
			wantInput: `"sources":[]`,
		},
		{
			name:      "suggestions",
			event:     chat.SuggestionsEvent{Questions: []string{"What about channels?"}},
			wantName:  "suggested_questions",
			wantInput: `"What about channels?"`,
		},
		{
			name:      "conversation id",
			event:     chat.ConversationEvent{ConversationID: convID},
			wantName:  "conversation_id",
			wantInput: convID.String(),
		},
		{
			name:      "done",
			event:     chat.DoneEvent{MessageID: msgID},
			wantName:  "done",
			wantInput: msgID.String(),
		},
		{
			name:      "error",
			event:     chat.ErrorEvent{Message: "answer generation failed"},
			wantName:  "error",
			wantInput: `"answer generation failed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			flusher := &countingFlusher{}

			require.NoError(t, writeStreamEvent(&buf, flusher, tt.event))

			out := buf.String()
			assert.Contains(t, out, "event: "+tt.wantName+"\n")
			assert.Contains(t, out, tt.wantInput)
			assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n\n")), "frame must end with blank line")
			assert.Equal(t, 1, flusher.flushes)
		})
	}
}

func TestWriteStreamEventPayloadIsValidJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeStreamEvent(&buf, &countingFlusher{}, chat.ContentEvent{Text: "line one\nline two"}))

	// The payload must stay a single data line even when the text contains
	// newlines, since JSON escapes them.
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("data: ")))

	var payload chat.ContentEvent
	start := bytes.Index(buf.Bytes(), []byte("data: ")) + len("data: ")
	end := bytes.Index(buf.Bytes()[start:], []byte("\n")) + start
	require.NoError(t, json.Unmarshal(buf.Bytes()[start:end], &payload))
	assert.Equal(t, "line one\nline two", payload.Text)
}
