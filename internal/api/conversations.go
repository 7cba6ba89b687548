package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/alexkamer/recall/internal/conversation"
	"github.com/alexkamer/recall/internal/log"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ConversationStore is the conversation persistence surface the API reads.
type ConversationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*conversation.Conversation, error)
	List(ctx context.Context, limit, offset int32) ([]conversation.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type conversationHandler struct {
	store  ConversationStore
	logger log.Logger
}

// list handles GET /api/v1/conversations.
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	conversations, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list conversations", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations}, h.logger)
}

// get handles GET /api/v1/conversations/{id}.
func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
	case err != nil:
		h.logger.Error("get conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load conversation", h.logger)
	default:
		writeJSON(w, http.StatusOK, conv, h.logger)
	}
}

// messages handles GET /api/v1/conversations/{id}/messages.
func (h *conversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	msgs, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.logger.Error("list messages", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load messages", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs}, h.logger)
}

// remove handles DELETE /api/v1/conversations/{id}.
func (h *conversationHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
	case err != nil:
		h.logger.Error("delete conversation", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete conversation", h.logger)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// pathUUID parses the {id} path segment, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, logger log.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", logger)
		return uuid.Nil, false
	}
	return id, true
}

// pagination extracts limit/offset query parameters with bounded defaults.
func pagination(r *http.Request) (limit, offset int32) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = int32(min(n, maxPageLimit))
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}
