package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/alexkamer/recall/internal/log"
	"github.com/alexkamer/recall/internal/notes"
)

// NoteService is the note management surface the API exposes.
type NoteService interface {
	Create(ctx context.Context, title, content string, tags []string) (*notes.Note, error)
	Get(ctx context.Context, id uuid.UUID) (*notes.Note, error)
	List(ctx context.Context, limit, offset int32) ([]notes.Note, error)
	Update(ctx context.Context, id uuid.UUID, title, content string, tags []string) (*notes.Note, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// notePayload is the JSON body for note create and update requests.
type notePayload struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

type noteHandler struct {
	service NoteService
	logger  log.Logger
}

// create handles POST /api/v1/notes.
func (h *noteHandler) create(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeNote(w, r, h.logger)
	if !ok {
		return
	}

	note, err := h.service.Create(r.Context(), payload.Title, payload.Content, payload.Tags)
	if err != nil {
		h.logger.Error("create note", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_note", err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, note, h.logger)
}

// get handles GET /api/v1/notes/{id}.
func (h *noteHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	note, err := h.service.Get(r.Context(), id)
	switch {
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "note not found", h.logger)
	case err != nil:
		h.logger.Error("get note", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load note", h.logger)
	default:
		writeJSON(w, http.StatusOK, note, h.logger)
	}
}

// list handles GET /api/v1/notes.
func (h *noteHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	result, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list notes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list notes", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"notes": result}, h.logger)
}

// update handles PUT /api/v1/notes/{id}.
func (h *noteHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	payload, ok := decodeNote(w, r, h.logger)
	if !ok {
		return
	}

	note, err := h.service.Update(r.Context(), id, payload.Title, payload.Content, payload.Tags)
	switch {
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "note not found", h.logger)
	case err != nil:
		h.logger.Error("update note", "id", id, "error", err)
		writeError(w, http.StatusBadRequest, "invalid_note", err.Error(), h.logger)
	default:
		writeJSON(w, http.StatusOK, note, h.logger)
	}
}

// remove handles DELETE /api/v1/notes/{id}.
func (h *noteHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}

	err := h.service.Delete(r.Context(), id)
	switch {
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "note not found", h.logger)
	case err != nil:
		h.logger.Error("delete note", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete note", h.logger)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeNote(w http.ResponseWriter, r *http.Request, logger log.Logger) (notePayload, bool) {
	var payload notePayload
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", logger)
		return notePayload{}, false
	}
	return payload, true
}
