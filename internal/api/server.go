// Package api exposes the JSON and SSE HTTP surface of the assistant.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexkamer/recall/internal/engine"
	"github.com/alexkamer/recall/internal/log"
)

// ServerConfig carries the dependencies for the API server. Streamer and
// Conversations are required; the remaining services are optional and their
// routes are simply not registered when absent.
type ServerConfig struct {
	Logger        log.Logger
	Streamer      Streamer
	Conversations ConversationStore
	Notes         NoteService
	Ingest        IngestService
	Pool          *pgxpool.Pool
	BreakerState  func() engine.BreakerState
	CORSOrigins   []string
}

// Server is the HTTP server for the JSON API.
type Server struct {
	mux *http.ServeMux
}

// NewServer builds the route table and middleware stack.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Streamer == nil {
		return nil, errors.New("streamer is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	ch := &chatHandler{streamer: cfg.Streamer, logger: logger}
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	cv := &conversationHandler{store: cfg.Conversations, logger: logger}
	mux.HandleFunc("GET /api/v1/conversations", cv.list)
	mux.HandleFunc("GET /api/v1/conversations/{id}", cv.get)
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", cv.messages)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", cv.remove)

	if cfg.Notes != nil {
		nh := &noteHandler{service: cfg.Notes, logger: logger}
		mux.HandleFunc("POST /api/v1/notes", nh.create)
		mux.HandleFunc("GET /api/v1/notes", nh.list)
		mux.HandleFunc("GET /api/v1/notes/{id}", nh.get)
		mux.HandleFunc("PUT /api/v1/notes/{id}", nh.update)
		mux.HandleFunc("DELETE /api/v1/notes/{id}", nh.remove)
	}

	if cfg.Ingest != nil {
		ih := &ingestHandler{service: cfg.Ingest, logger: logger}
		mux.HandleFunc("POST /api/v1/ingest/web", ih.web)
		mux.HandleFunc("POST /api/v1/ingest/youtube", ih.youtube)
		mux.HandleFunc("POST /api/v1/ingest/document", ih.document)
		mux.HandleFunc("DELETE /api/v1/sources", ih.removeSource)
	}

	// Middleware stack, outermost first: Recovery, Logging, CORS.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, cfg.BreakerState, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
