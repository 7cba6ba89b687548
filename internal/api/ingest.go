package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexkamer/recall/internal/ingest"
	"github.com/alexkamer/recall/internal/log"
)

// maxDocumentBytes bounds uploaded document text.
const maxDocumentBytes = 8 << 20

// IngestService is the content ingestion surface the API exposes.
type IngestService interface {
	IngestWeb(ctx context.Context, rawURL string) (*ingest.Result, error)
	IngestYouTube(ctx context.Context, videoURL, lang string) (*ingest.Result, error)
	IngestDocument(ctx context.Context, name, text string) (*ingest.Result, error)
	Remove(ctx context.Context, sourceID string) (int64, error)
}

type ingestHandler struct {
	service IngestService
	logger  log.Logger
}

type webIngestRequest struct {
	URL string `json:"url"`
}

type youtubeIngestRequest struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}

type documentIngestRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// web handles POST /api/v1/ingest/web.
func (h *ingestHandler) web(w http.ResponseWriter, r *http.Request) {
	var req webIngestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required", h.logger)
		return
	}

	result, err := h.service.IngestWeb(r.Context(), req.URL)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result, h.logger)
}

// youtube handles POST /api/v1/ingest/youtube.
func (h *ingestHandler) youtube(w http.ResponseWriter, r *http.Request) {
	var req youtubeIngestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required", h.logger)
		return
	}

	result, err := h.service.IngestYouTube(r.Context(), req.URL, req.Language)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result, h.logger)
}

// document handles POST /api/v1/ingest/document.
func (h *ingestHandler) document(w http.ResponseWriter, r *http.Request) {
	var req documentIngestRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and text are required", h.logger)
		return
	}

	result, err := h.service.IngestDocument(r.Context(), req.Name, req.Text)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result, h.logger)
}

// removeSource handles DELETE /api/v1/sources. The source identifier comes
// from the source_id query parameter because identifiers contain slashes.
func (h *ingestHandler) removeSource(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "source_id is required", h.logger)
		return
	}

	removed, err := h.service.Remove(r.Context(), sourceID)
	if err != nil {
		h.logger.Error("remove source", "source_id", sourceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to remove source", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"removedChunks": removed}, h.logger)
}

// writeIngestError maps ingestion failures to client or server errors.
func (h *ingestHandler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrBadVideoURL):
		writeError(w, http.StatusBadRequest, "invalid_video_url", err.Error(), h.logger)
	case errors.Is(err, ingest.ErrNoTranscript):
		writeError(w, http.StatusUnprocessableEntity, "no_transcript", err.Error(), h.logger)
	case errors.Is(err, ingest.ErrNotHTML):
		writeError(w, http.StatusUnprocessableEntity, "not_html", err.Error(), h.logger)
	case errors.Is(err, ingest.ErrEmptySource):
		writeError(w, http.StatusUnprocessableEntity, "empty_source", err.Error(), h.logger)
	default:
		h.logger.Error("ingest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "ingestion failed", h.logger)
	}
}
