package conversation

import "errors"

var (
	// ErrNotFound indicates the conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrTurnNotFinished indicates an attempt to persist a turn that has
	// not reached a completed state.
	ErrTurnNotFinished = errors.New("turn is not finished")
)
