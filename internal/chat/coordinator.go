package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/alexkamer/recall/internal/log"
)

// Default budgets for the non-core phases of a turn. Search and
// classification have their own bounds; the turn timeout caps everything.
const (
	DefaultTurnTimeout    = 60 * time.Second
	DefaultSuggestTimeout = 5 * time.Second
	DefaultHistoryLimit   = 12
	maxTitleLength        = 80
)

// Config wires a Coordinator.
type Config struct {
	Store      Store
	Completion Completion
	Retriever  Retriever
	Logger     log.Logger

	// TurnTimeout bounds one whole turn end to end. Zero selects
	// DefaultTurnTimeout.
	TurnTimeout time.Duration

	// SearchTimeout bounds a single retrieval invocation. Zero selects the
	// tool runner default.
	SearchTimeout time.Duration

	// ClassifyTimeout bounds the decision classification. Zero selects the
	// decider default.
	ClassifyTimeout time.Duration

	// MaxResults caps retrieved chunks per search. Zero selects the tool
	// runner default.
	MaxResults int

	// HistoryLimit is how many prior messages are loaded for context. Zero
	// selects DefaultHistoryLimit.
	HistoryLimit int32
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("chat: store is required")
	}
	if c.Completion == nil {
		return errors.New("chat: completion engine is required")
	}
	if c.Retriever == nil {
		return errors.New("chat: retriever is required")
	}
	return nil
}

// Request is one inbound chat turn.
type Request struct {
	// ConversationID identifies an existing conversation. uuid.Nil starts a
	// new one; the client learns the assigned id from the
	// conversation_id event.
	ConversationID uuid.UUID

	// Text is the user's message.
	Text string

	// Scope restricts which source types retrieval may touch. Nil means
	// every source type.
	Scope ScopeFilter
}

// Coordinator drives a chat turn through its phases: decide, optionally
// search, synthesize, resolve citations, persist. It owns the turn's
// mutable state; collaborators are pure services behind the Config
// interfaces. Safe for concurrent use; turns on the same conversation are
// serialized, turns on different conversations run in parallel.
type Coordinator struct {
	store          Store
	completion     Completion
	decider        *Decider
	tools          *ToolRunner
	locks          *conversationLocks
	logger         log.Logger
	turnTimeout    time.Duration
	suggestTimeout time.Duration
	maxResults     int
	historyLimit   int32
}

// NewCoordinator creates a Coordinator from cfg.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Coordinator{
		store:          cfg.Store,
		completion:     cfg.Completion,
		decider:        NewDecider(cfg.Completion, cfg.ClassifyTimeout, logger),
		tools:          NewToolRunner(cfg.Retriever, cfg.SearchTimeout, logger),
		locks:          newConversationLocks(),
		logger:         logger,
		turnTimeout:    turnTimeout,
		suggestTimeout: DefaultSuggestTimeout,
		maxResults:     maxResults,
		historyLimit:   historyLimit,
	}, nil
}

// Stream executes one turn, delivering events through emit as they occur.
//
// On success the persisted turn is terminated by a done event. On failure
// Stream returns a sentinel-wrapped error; an error event is emitted unless
// the failure was the client going away. Nothing is persisted on any
// failure path.
func (c *Coordinator) Stream(ctx context.Context, req Request, emit EmitFunc) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyMessage
	}

	ctx, cancel := context.WithTimeout(ctx, c.turnTimeout)
	defer cancel()

	scope := req.Scope
	if scope == nil {
		scope = DefaultScope()
	}

	conversationID := req.ConversationID
	created := false
	if conversationID == uuid.Nil {
		id, err := c.store.CreateConversation(ctx, deriveTitle(req.Text))
		if err != nil {
			c.emitError(ctx, emit, "failed to start conversation")
			return fmt.Errorf("create conversation: %w", err)
		}
		conversationID = id
		created = true
	}

	release := c.locks.acquire(conversationID)
	defer release()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	turn := &Turn{
		ConversationID: conversationID,
		UserText:       req.Text,
		Status:         TurnPending,
	}

	history, err := c.store.History(ctx, conversationID, c.historyLimit)
	if err != nil {
		// Degrade to a contextless turn rather than failing it.
		c.logger.Warn("history load failed",
			"conversation_id", conversationID,
			"error", err)
		history = nil
	}

	turn.Decision = c.decider.Decide(ctx, req.Text, history, scope)

	if turn.Decision.ShouldSearch {
		if err := c.runSearch(ctx, turn, scope, emit); err != nil {
			return err
		}
	}

	if err := emit(ctx, StatusEvent{Message: "Generating answer"}); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	turn.Status = TurnStreaming
	answer, err := c.completion.Synthesize(ctx, SynthesisRequest{
		UserText: req.Text,
		History:  history,
		Chunks:   turn.ToolCall.Chunks(),
	}, func(chunkCtx context.Context, text string) error {
		return emit(chunkCtx, ContentEvent{Text: text})
	})
	if err != nil {
		turn.Status = TurnFailed
		if ctx.Err() != nil {
			// Client gone or deadline hit; there is no one to tell.
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		c.logger.Error("answer generation failed",
			"conversation_id", conversationID,
			"error", err)
		c.emitError(ctx, emit, "failed to generate a response")
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	res := Resolve(answer, turn.ToolCall.Chunks())
	turn.AnswerText = res.Text
	turn.Citations = res.Citations

	// Sources are reported whenever a search ran, even when nothing ended
	// up cited, so the client can always show what the answer drew on.
	if turn.ToolCall != nil {
		citations := res.Citations
		if citations == nil {
			citations = []SourceChunk{}
		}
		if err := emit(ctx, SourcesEvent{Sources: citations}); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	turn.SuggestedQuestions = c.suggest(ctx, req.Text, turn.AnswerText)
	if len(turn.SuggestedQuestions) > 0 {
		if err := emit(ctx, SuggestionsEvent{Questions: turn.SuggestedQuestions}); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	if created {
		if err := emit(ctx, ConversationEvent{ConversationID: conversationID}); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	turn.Status = TurnCompleted
	messageID, err := c.store.AppendTurn(ctx, conversationID, turn)
	if err != nil {
		turn.Status = TurnFailed
		c.logger.Error("turn commit failed",
			"conversation_id", conversationID,
			"answer_length", len(turn.AnswerText),
			"error", err)
		c.emitError(ctx, emit, "failed to save the conversation")
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}

	if err := emit(ctx, DoneEvent{MessageID: messageID}); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// runSearch performs the turn's retrieval invocation and emits the tool
// lifecycle events. Retrieval failure is not fatal: the error is recorded
// on the ToolCall and synthesis proceeds without sources.
func (c *Coordinator) runSearch(ctx context.Context, turn *Turn, scope ScopeFilter, emit EmitFunc) error {
	params := SearchParams{
		Query:      turn.UserText,
		Scope:      scope,
		MaxResults: c.maxResults,
	}

	if err := emit(ctx, StatusEvent{Message: "Searching your knowledge base"}); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := emit(ctx, ToolCallEvent{Name: ToolName, Params: params}); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	turn.ToolCall = c.tools.Invoke(ctx, params)

	result := ToolResultEvent{
		Status:      turn.ToolCall.Status,
		ResultCount: len(turn.ToolCall.Result),
		ErrorReason: turn.ToolCall.ErrorReason,
	}
	if err := emit(ctx, result); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// suggest asks for follow-up questions under its own budget. Any failure
// degrades to no suggestions.
func (c *Coordinator) suggest(ctx context.Context, userText, answer string) []string {
	suggestCtx, cancel := context.WithTimeout(ctx, c.suggestTimeout)
	defer cancel()

	questions, err := c.completion.Suggest(suggestCtx, userText, answer)
	if err != nil {
		c.logger.Debug("suggestion generation failed", "error", err)
		return nil
	}
	return questions
}

// emitError delivers a terminal error event on a best-effort basis. When
// the client is already gone the emit fails and that is fine.
func (c *Coordinator) emitError(ctx context.Context, emit EmitFunc, message string) {
	if ctx.Err() != nil {
		return
	}
	if err := emit(ctx, ErrorEvent{Message: message}); err != nil {
		c.logger.Debug("error event not delivered", "error", err)
	}
}

// deriveTitle builds a conversation title from the first user message.
func deriveTitle(text string) string {
	title := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(title) <= maxTitleLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleLength-1])) + "…"
}
