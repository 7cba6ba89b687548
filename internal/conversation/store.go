package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/log"
)

// Querier is the database surface the store consumes. *Queries implements
// it; tests substitute a mock.
type Querier interface {
	CreateConversation(ctx context.Context, title *string) (Conversation, error)
	GetConversation(ctx context.Context, id pgtype.UUID) (Conversation, error)
	ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id pgtype.UUID) error
	LockConversation(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error)
	TouchConversation(ctx context.Context, id pgtype.UUID, messageCount int32) error
	MaxSequenceNumber(ctx context.Context, conversationID pgtype.UUID) (int32, error)
	AddMessage(ctx context.Context, arg AddMessageParams) (pgtype.UUID, error)
	ListMessages(ctx context.Context, conversationID pgtype.UUID) ([]Message, error)
	RecentMessages(ctx context.Context, conversationID pgtype.UUID, limit int32) ([]Message, error)
}

// Store persists conversations and their messages in PostgreSQL. It
// implements the chat pipeline's persistence boundary.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool
	logger  log.Logger
}

// New creates a Store. pool provides transaction support and may be nil in
// tests with a mock querier; AppendTurn then runs non-transactionally.
func New(querier Querier, pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{querier: querier, pool: pool, logger: logger}
}

// CreateConversation starts a new conversation and returns its id.
func (s *Store) CreateConversation(ctx context.Context, title string) (uuid.UUID, error) {
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	c, err := s.querier.CreateConversation(ctx, titlePtr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "title", c.Title)
	return c.ID, nil
}

// Get retrieves a conversation by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	c, err := s.querier.GetConversation(ctx, uuidToPg(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

// List returns conversations ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	conversations, err := s.querier.ListConversations(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// Delete removes a conversation and all its messages.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeleteConversation(ctx, uuidToPg(id)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// Messages returns the full message history of a conversation in order.
func (s *Store) Messages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	messages, err := s.querier.ListMessages(ctx, uuidToPg(conversationID))
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}
	return messages, nil
}

// History returns the last limit messages as chat exchanges, oldest first.
func (s *Store) History(ctx context.Context, conversationID uuid.UUID, limit int32) ([]chat.Exchange, error) {
	messages, err := s.querier.RecentMessages(ctx, uuidToPg(conversationID), limit)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", conversationID, err)
	}

	exchanges := make([]chat.Exchange, 0, len(messages))
	for _, m := range messages {
		exchanges = append(exchanges, chat.Exchange{Role: m.Role, Text: m.Content})
	}
	return exchanges, nil
}

// AppendTurn atomically appends a finished turn as a user message followed
// by an assistant message carrying the turn metadata. It returns the
// assistant message id.
//
// The conversation row is locked for the duration of the transaction so
// concurrent appends cannot race on sequence numbers. Either both messages
// become visible or neither does.
func (s *Store) AppendTurn(ctx context.Context, conversationID uuid.UUID, turn *chat.Turn) (uuid.UUID, error) {
	if turn.Status != chat.TurnCompleted {
		return uuid.Nil, ErrTurnNotFinished
	}

	if s.pool == nil {
		return s.appendTurnNonTransactional(ctx, conversationID, turn)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	q := NewQueries(tx)

	if _, err := q.LockConversation(ctx, uuidToPg(conversationID)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lock conversation: %w", err)
	}

	messageID, err := s.appendTurnMessages(ctx, q, conversationID, turn)
	if err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("appended turn",
		"conversation_id", conversationID,
		"message_id", messageID,
		"searched", turn.ToolCall != nil)
	return messageID, nil
}

// appendTurnNonTransactional is the fallback for tests with a mock querier.
// Without a pool there is no row lock, so callers must serialize appends to
// the same conversation externally.
func (s *Store) appendTurnNonTransactional(ctx context.Context, conversationID uuid.UUID, turn *chat.Turn) (uuid.UUID, error) {
	return s.appendTurnMessages(ctx, s.querier, conversationID, turn)
}

func (s *Store) appendTurnMessages(ctx context.Context, q Querier, conversationID uuid.UUID, turn *chat.Turn) (uuid.UUID, error) {
	maxSeq, err := q.MaxSequenceNumber(ctx, uuidToPg(conversationID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("read sequence number: %w", err)
	}

	if _, err := q.AddMessage(ctx, AddMessageParams{
		ConversationID: uuidToPg(conversationID),
		Role:           RoleUser,
		Content:        turn.UserText,
		SequenceNumber: maxSeq + 1,
	}); err != nil {
		return uuid.Nil, fmt.Errorf("insert user message: %w", err)
	}

	assistant, err := assistantParams(conversationID, turn, maxSeq+2)
	if err != nil {
		return uuid.Nil, err
	}
	assistantID, err := q.AddMessage(ctx, assistant)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert assistant message: %w", err)
	}

	if err := q.TouchConversation(ctx, uuidToPg(conversationID), maxSeq+2); err != nil {
		return uuid.Nil, fmt.Errorf("update conversation metadata: %w", err)
	}

	return pgToUUID(assistantID), nil
}

// assistantParams marshals the turn metadata onto the assistant message.
func assistantParams(conversationID uuid.UUID, turn *chat.Turn, seq int32) (AddMessageParams, error) {
	params := AddMessageParams{
		ConversationID: uuidToPg(conversationID),
		Role:           RoleAssistant,
		Content:        turn.AnswerText,
		SequenceNumber: seq,
	}

	decision, err := json.Marshal(turn.Decision)
	if err != nil {
		return AddMessageParams{}, fmt.Errorf("marshal decision: %w", err)
	}
	params.Decision = decision

	if turn.ToolCall != nil {
		toolCall, err := json.Marshal(turn.ToolCall)
		if err != nil {
			return AddMessageParams{}, fmt.Errorf("marshal tool call: %w", err)
		}
		params.ToolCall = toolCall
	}
	if len(turn.Citations) > 0 {
		citations, err := json.Marshal(turn.Citations)
		if err != nil {
			return AddMessageParams{}, fmt.Errorf("marshal citations: %w", err)
		}
		params.Citations = citations
	}
	if len(turn.SuggestedQuestions) > 0 {
		suggestions, err := json.Marshal(turn.SuggestedQuestions)
		if err != nil {
			return AddMessageParams{}, fmt.Errorf("marshal suggestions: %w", err)
		}
		params.Suggestions = suggestions
	}

	return params, nil
}
