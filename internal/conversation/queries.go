package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alexkamer/recall/internal/chat"
)

// DBTX is the subset of pgx executors the queries need. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries executes the conversation SQL against a DBTX.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const createConversationSQL = `
INSERT INTO conversations (title)
VALUES ($1)
RETURNING id, title, message_count, created_at, updated_at`

// CreateConversation inserts a conversation and returns it. A nil title is
// stored as NULL.
func (q *Queries) CreateConversation(ctx context.Context, title *string) (Conversation, error) {
	row := q.db.QueryRow(ctx, createConversationSQL, title)
	return scanConversation(row)
}

const getConversationSQL = `
SELECT id, title, message_count, created_at, updated_at
FROM conversations
WHERE id = $1`

// GetConversation fetches one conversation by id.
func (q *Queries) GetConversation(ctx context.Context, id pgtype.UUID) (Conversation, error) {
	row := q.db.QueryRow(ctx, getConversationSQL, id)
	return scanConversation(row)
}

const listConversationsSQL = `
SELECT id, title, message_count, created_at, updated_at
FROM conversations
ORDER BY updated_at DESC
LIMIT $1 OFFSET $2`

// ListConversations returns conversations newest-activity first.
func (q *Queries) ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	rows, err := q.db.Query(ctx, listConversationsSQL, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const deleteConversationSQL = `
DELETE FROM conversations
WHERE id = $1`

// DeleteConversation removes a conversation; messages cascade.
func (q *Queries) DeleteConversation(ctx context.Context, id pgtype.UUID) error {
	tag, err := q.db.Exec(ctx, deleteConversationSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const lockConversationSQL = `
SELECT id
FROM conversations
WHERE id = $1
FOR UPDATE`

// LockConversation takes a row lock on the conversation for the duration of
// the enclosing transaction.
func (q *Queries) LockConversation(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error) {
	var locked pgtype.UUID
	err := q.db.QueryRow(ctx, lockConversationSQL, id).Scan(&locked)
	return locked, err
}

const touchConversationSQL = `
UPDATE conversations
SET updated_at = now(), message_count = $2
WHERE id = $1`

// TouchConversation bumps updated_at and records the new message count.
func (q *Queries) TouchConversation(ctx context.Context, id pgtype.UUID, messageCount int32) error {
	_, err := q.db.Exec(ctx, touchConversationSQL, id, messageCount)
	return err
}

const maxSequenceNumberSQL = `
SELECT COALESCE(MAX(sequence_number), 0)
FROM messages
WHERE conversation_id = $1`

// MaxSequenceNumber returns the highest sequence number in the
// conversation, or 0 when it has no messages.
func (q *Queries) MaxSequenceNumber(ctx context.Context, conversationID pgtype.UUID) (int32, error) {
	var max int32
	err := q.db.QueryRow(ctx, maxSequenceNumberSQL, conversationID).Scan(&max)
	return max, err
}

// AddMessageParams are the columns of one message insert. The jsonb fields
// are pre-marshaled; nil stores NULL.
type AddMessageParams struct {
	ConversationID pgtype.UUID
	Role           string
	Content        string
	Decision       []byte
	ToolCall       []byte
	Citations      []byte
	Suggestions    []byte
	SequenceNumber int32
}

const addMessageSQL = `
INSERT INTO messages (conversation_id, role, content, decision, tool_call, citations, suggestions, sequence_number)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`

// AddMessage inserts one message and returns its id.
func (q *Queries) AddMessage(ctx context.Context, arg AddMessageParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := q.db.QueryRow(ctx, addMessageSQL,
		arg.ConversationID,
		arg.Role,
		arg.Content,
		arg.Decision,
		arg.ToolCall,
		arg.Citations,
		arg.Suggestions,
		arg.SequenceNumber,
	).Scan(&id)
	return id, err
}

const listMessagesSQL = `
SELECT id, conversation_id, role, content, decision, tool_call, citations, suggestions, sequence_number, created_at
FROM messages
WHERE conversation_id = $1
ORDER BY sequence_number ASC`

// ListMessages returns every message of a conversation in order.
func (q *Queries) ListMessages(ctx context.Context, conversationID pgtype.UUID) ([]Message, error) {
	rows, err := q.db.Query(ctx, listMessagesSQL, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

const recentMessagesSQL = `
SELECT id, conversation_id, role, content, decision, tool_call, citations, suggestions, sequence_number, created_at
FROM (
	SELECT id, conversation_id, role, content, decision, tool_call, citations, suggestions, sequence_number, created_at
	FROM messages
	WHERE conversation_id = $1
	ORDER BY sequence_number DESC
	LIMIT $2
) recent
ORDER BY sequence_number ASC`

// RecentMessages returns the last limit messages in chronological order.
func (q *Queries) RecentMessages(ctx context.Context, conversationID pgtype.UUID, limit int32) ([]Message, error) {
	rows, err := q.db.Query(ctx, recentMessagesSQL, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		c     Conversation
		id    pgtype.UUID
		title *string
	)
	if err := row.Scan(&id, &title, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	c.ID = pgToUUID(id)
	if title != nil {
		c.Title = *title
	}
	return c, nil
}

func collectMessages(rows pgx.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var (
			m              Message
			id             pgtype.UUID
			conversationID pgtype.UUID
			decision       []byte
			toolCall       []byte
			citations      []byte
			suggestions    []byte
		)
		if err := rows.Scan(&id, &conversationID, &m.Role, &m.Content,
			&decision, &toolCall, &citations, &suggestions,
			&m.SequenceNumber, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ID = pgToUUID(id)
		m.ConversationID = pgToUUID(conversationID)

		if len(decision) > 0 {
			m.Decision = new(chat.Decision)
			if err := json.Unmarshal(decision, m.Decision); err != nil {
				return nil, fmt.Errorf("decode decision for message %s: %w", m.ID, err)
			}
		}
		if len(toolCall) > 0 {
			m.ToolCall = new(chat.ToolCall)
			if err := json.Unmarshal(toolCall, m.ToolCall); err != nil {
				return nil, fmt.Errorf("decode tool call for message %s: %w", m.ID, err)
			}
		}
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				return nil, fmt.Errorf("decode citations for message %s: %w", m.ID, err)
			}
		}
		if len(suggestions) > 0 {
			if err := json.Unmarshal(suggestions, &m.Suggestions); err != nil {
				return nil, fmt.Errorf("decode suggestions for message %s: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
