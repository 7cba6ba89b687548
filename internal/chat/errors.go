package chat

import "errors"

// Sentinel errors for the fatal turn outcomes. Retrieval failures are not
// here: they are absorbed into the ToolCall record and never terminate a
// turn. Check with errors.Is().
var (
	// ErrGeneration indicates the completion engine failed while producing
	// the answer. The turn is aborted and nothing is persisted.
	ErrGeneration = errors.New("answer generation failed")

	// ErrCancelled indicates the client disconnected or the turn deadline
	// elapsed. Nothing is persisted; partial output already flushed to the
	// client is not retracted.
	ErrCancelled = errors.New("turn cancelled")

	// ErrCommit indicates the conversation store rejected the finished
	// turn. The answer was generated but lost; the failure is logged for
	// recovery and surfaced to the client as an error event.
	ErrCommit = errors.New("turn commit failed")

	// ErrEmptyMessage indicates the request carried no user text.
	ErrEmptyMessage = errors.New("empty user message")
)
