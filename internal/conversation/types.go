package conversation

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alexkamer/recall/internal/chat"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one chat thread.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	MessageCount int32     `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is one stored message. Assistant messages carry the turn metadata
// (decision, tool call record, citations, suggestions); user messages carry
// only text.
type Message struct {
	ID             uuid.UUID          `json:"id"`
	ConversationID uuid.UUID          `json:"conversationId"`
	Role           string             `json:"role"`
	Content        string             `json:"content"`
	Decision       *chat.Decision     `json:"decision,omitempty"`
	ToolCall       *chat.ToolCall     `json:"toolCall,omitempty"`
	Citations      []chat.SourceChunk `json:"citations,omitempty"`
	Suggestions    []string           `json:"suggestions,omitempty"`
	SequenceNumber int32              `json:"sequenceNumber"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// uuidToPg converts a uuid.UUID to the pgtype representation used in query
// parameters.
func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgToUUID converts a pgtype.UUID back to uuid.UUID. Invalid (NULL) values
// become uuid.Nil.
func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}
