// Package cmd provides the recall CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE chat streaming
//   - mcp: Model Context Protocol server for editor integration
//   - ingest: index web pages, YouTube transcripts, and documents
//   - migrate: apply database schema migrations
//   - version: show build information
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Recall is a personal knowledge assistant",
	Long: `Recall answers questions from your own notes, documents, and web
captures. It retrieves relevant material with vector search, cites what it
used, and streams the answer as it is generated.

Start the HTTP API with "recall serve", or expose the knowledge base to MCP
clients with "recall mcp".`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
