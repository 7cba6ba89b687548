// Package mcp exposes the knowledge base over the Model Context Protocol.
//
// The server registers two tools: knowledge_search runs a scoped
// vector-similarity search over the indexed corpus, and knowledge_store
// saves a note that becomes searchable once indexed. External MCP clients
// (editors, agent runtimes) get the same retrieval surface the chat
// pipeline uses.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alexkamer/recall/internal/chat"
	"github.com/alexkamer/recall/internal/log"
	"github.com/alexkamer/recall/internal/notes"
)

// Tool names exposed over MCP.
const (
	ToolKnowledgeSearch = "knowledge_search"
	ToolKnowledgeStore  = "knowledge_store"
)

const defaultSearchResults = 5

// Searcher runs vector-similarity search over the knowledge base.
type Searcher interface {
	Search(ctx context.Context, query string, scope chat.ScopeFilter, maxResults int) ([]chat.SourceChunk, error)
}

// NoteWriter persists notes created through the store tool.
type NoteWriter interface {
	Create(ctx context.Context, title, content string, tags []string) (*notes.Note, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Searcher Searcher
	Notes    NoteWriter
	Logger   log.Logger
}

// Server wraps the MCP SDK server around the knowledge base.
type Server struct {
	mcpServer *mcp.Server
	searcher  Searcher
	notes     NoteWriter
	logger    log.Logger
}

// NewServer creates the MCP server and registers the knowledge tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, errors.New("server name is required")
	}
	if cfg.Version == "" {
		return nil, errors.New("server version is required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("searcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		searcher:  cfg.Searcher,
		notes:     cfg.Notes,
		logger:    logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	return s, nil
}

// Run serves the MCP protocol on the given transport until ctx ends.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// SearchInput is the input schema of the knowledge_search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"The natural-language search query"`
	Scope      []string `json:"scope,omitempty" jsonschema:"Source types to search: note, document, web. Defaults to all."`
	MaxResults int      `json:"maxResults,omitempty" jsonschema:"Maximum number of chunks to return (default 5)"`
}

// StoreInput is the input schema of the knowledge_store tool.
type StoreInput struct {
	Title   string   `json:"title" jsonschema:"Short title for the stored entry"`
	Content string   `json:"content" jsonschema:"The text to store and index"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Optional tags for organization"`
}

func (s *Server) registerTools() error {
	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for %s: %w", ToolKnowledgeSearch, err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolKnowledgeSearch,
		Description: "Search the personal knowledge base (notes, documents, web captures) " +
			"using semantic similarity. Returns the most relevant chunks for the query.",
		InputSchema: searchSchema,
	}, s.Search)

	if s.notes != nil {
		storeSchema, err := jsonschema.For[StoreInput](nil)
		if err != nil {
			return fmt.Errorf("schema for %s: %w", ToolKnowledgeStore, err)
		}

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name: ToolKnowledgeStore,
			Description: "Store a note in the knowledge base. The note is indexed and " +
				"becomes retrievable via knowledge_search.",
			InputSchema: storeSchema,
		}, s.Store)
	}

	return nil
}

// Search handles the knowledge_search MCP tool call.
func (s *Server) Search(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query must not be empty"), nil, nil
	}

	scope := chat.DefaultScope()
	if len(input.Scope) > 0 {
		scope = scope[:0]
		for _, raw := range input.Scope {
			st := chat.SourceType(raw)
			switch st {
			case chat.SourceNote, chat.SourceDocument, chat.SourceWeb:
				scope = append(scope, st)
			default:
				return toolError(fmt.Sprintf("unknown source type %q", raw)), nil, nil
			}
		}
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}

	chunks, err := s.searcher.Search(ctx, input.Query, scope, maxResults)
	if err != nil {
		s.logger.Error("knowledge search failed", "query", input.Query, "error", err)
		return nil, nil, fmt.Errorf("knowledge search: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatChunks(chunks)}},
	}, nil, nil
}

// Store handles the knowledge_store MCP tool call.
func (s *Server) Store(ctx context.Context, _ *mcp.CallToolRequest, input StoreInput) (*mcp.CallToolResult, any, error) {
	if s.notes == nil {
		return toolError("note storage is not configured"), nil, nil
	}

	note, err := s.notes.Create(ctx, input.Title, input.Content, input.Tags)
	if err != nil {
		return toolError(fmt.Sprintf("store failed: %v", err)), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("Stored note %s (%s)", note.ID, note.Title),
		}},
	}, nil, nil
}

// formatChunks renders search results as numbered plain text, one block per
// chunk, in relevance order.
func formatChunks(chunks []chat.SourceChunk) string {
	if len(chunks) == 0 {
		return "No matching knowledge found."
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, c.Title)
		if c.SectionTitle != "" {
			fmt.Fprintf(&b, " — %s", c.SectionTitle)
		}
		fmt.Fprintf(&b, " (%s, distance %.3f)\n", c.SourceType, c.Distance)
		b.WriteString(c.Content)
	}
	return b.String()
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
