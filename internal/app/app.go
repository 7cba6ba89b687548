// Package app wires the application together: configuration, database,
// Genkit, and every service built on top of them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexkamer/recall/db"
	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/config"
	"github.com/alexkamer/recall/internal/conversation"
	"github.com/alexkamer/recall/internal/database"
	"github.com/alexkamer/recall/internal/engine"
	"github.com/alexkamer/recall/internal/ingest"
	"github.com/alexkamer/recall/internal/knowledge"
	"github.com/alexkamer/recall/internal/log"
	"github.com/alexkamer/recall/internal/notes"
)

// App is the application container. Setup builds it; Close releases it.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Engine        *engine.Engine
	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	Notes         *notes.Service
	Ingest        *ingest.Service
	Coordinator   *chat.Coordinator
}

// Setup initializes every component in dependency order. On failure,
// resources already acquired are released before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{Config: cfg, Logger: newLogger(cfg)}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	connURL := cfg.PostgresURL()
	if err := db.Migrate(connURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	pool, err := database.Connect(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool

	a.Genkit = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	a.Embedder = googlegenai.GoogleAIEmbedder(a.Genkit, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Engine, err = engine.New(engine.Config{
		Genkit:    a.Genkit,
		ModelName: cfg.ModelName,
		Logger:    a.Logger.With("component", "engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("completion engine: %w", err)
	}

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), a.Embedder, a.Logger.With("component", "knowledge"))
	a.Conversations = conversation.New(conversation.NewQueries(pool), pool, a.Logger.With("component", "conversation"))

	chunker := ingest.NewChunker(ingest.ChunkerConfig{})

	a.Notes, err = notes.NewService(notes.NewQueries(pool), a.Knowledge, chunker, a.Logger.With("component", "notes"))
	if err != nil {
		return nil, fmt.Errorf("notes service: %w", err)
	}

	httpClient := &http.Client{}
	a.Ingest, err = ingest.NewService(
		a.Knowledge,
		ingest.NewWebFetcher(httpClient, a.Logger.With("component", "ingest")),
		ingest.NewTranscriptFetcher(httpClient, a.Logger.With("component", "ingest")),
		chunker,
		a.Logger.With("component", "ingest"),
	)
	if err != nil {
		return nil, fmt.Errorf("ingest service: %w", err)
	}

	a.Coordinator, err = chat.NewCoordinator(chat.Config{
		Store:      a.Conversations,
		Completion: a.Engine,
		Retriever:  knowledge.NewRetriever(a.Knowledge),
		Logger:     a.Logger.With("component", "chat"),
		MaxResults: cfg.SearchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("chat coordinator: %w", err)
	}

	return a, nil
}

// Close releases pooled resources. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Pool = nil
	}
}

// newLogger builds the root logger from config.
func newLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}
