package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/log"
)

// maxChatBodyBytes bounds the chat request body size.
const maxChatBodyBytes = 1 << 20

// Streamer runs one chat turn, delivering events through emit.
type Streamer interface {
	Stream(ctx context.Context, req chat.Request, emit chat.EmitFunc) error
}

// chatRequest is the JSON body of a streaming chat request.
type chatRequest struct {
	ConversationID string   `json:"conversationId,omitempty"`
	Message        string   `json:"message"`
	Scope          []string `json:"scope,omitempty"`
}

type chatHandler struct {
	streamer Streamer
	logger   log.Logger
}

// stream handles POST /api/v1/chat/stream. The response is an SSE stream of
// turn events; request validation errors are plain JSON since no event has
// been written yet.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required", h.logger)
		return
	}

	req := chat.Request{Text: body.Message}

	if body.ConversationID != "" {
		id, err := uuid.Parse(body.ConversationID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_conversation_id", "conversationId must be a UUID", h.logger)
			return
		}
		req.ConversationID = id
	}

	scope, err := parseScope(body.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_scope", err.Error(), h.logger)
		return
	}
	req.Scope = scope

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	setSSEHeaders(w)

	emit := func(ctx context.Context, ev chat.Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return writeStreamEvent(w, flusher, ev)
	}

	err = h.streamer.Stream(r.Context(), req, emit)
	switch {
	case err == nil:
		h.logger.Debug("chat stream completed")
	case errors.Is(err, chat.ErrCancelled):
		h.logger.Debug("chat stream cancelled", "error", err)
	default:
		// The coordinator has already emitted an error event where one was
		// due; nothing more can be sent on a stream already in progress.
		h.logger.Error("chat stream failed", "error", err)
	}
}

// parseScope converts wire scope strings into a ScopeFilter. A nil slice
// means the caller wants the default scope; an explicitly empty slice
// disables retrieval.
func parseScope(raw []string) (chat.ScopeFilter, error) {
	if raw == nil {
		return nil, nil
	}

	scope := make(chat.ScopeFilter, 0, len(raw))
	for _, s := range raw {
		st := chat.SourceType(s)
		switch st {
		case chat.SourceNote, chat.SourceDocument, chat.SourceWeb:
			scope = append(scope, st)
		default:
			return nil, fmt.Errorf("unknown source type %q", s)
		}
	}
	return scope, nil
}
