package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexkamer/recall/internal/app"
	"github.com/alexkamer/recall/internal/config"
	"github.com/alexkamer/recall/internal/ingest"
)

var transcriptLang string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index content into the knowledge base",
}

var ingestWebCmd = &cobra.Command{
	Use:   "web <url>",
	Short: "Fetch a web page and index its readable text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) (*ingest.Result, error) {
			return a.Ingest.IngestWeb(ctx, args[0])
		})
	},
}

var ingestYouTubeCmd = &cobra.Command{
	Use:   "youtube <url>",
	Short: "Fetch a YouTube transcript and index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) (*ingest.Result, error) {
			return a.Ingest.IngestYouTube(ctx, args[0], transcriptLang)
		})
	},
}

var ingestDocCmd = &cobra.Command{
	Use:   "doc <path>",
	Short: "Index a local text document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		name := filepath.Base(args[0])

		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) (*ingest.Result, error) {
			return a.Ingest.IngestDocument(ctx, name, string(text))
		})
	},
}

func init() {
	ingestYouTubeCmd.Flags().StringVar(&transcriptLang, "lang", "", "preferred transcript language code")
	ingestCmd.AddCommand(ingestWebCmd)
	ingestCmd.AddCommand(ingestYouTubeCmd)
	ingestCmd.AddCommand(ingestDocCmd)
	rootCmd.AddCommand(ingestCmd)
}

// withApp runs one ingestion against a fully wired application and prints
// the outcome.
func withApp(parent context.Context, run func(context.Context, *app.App) (*ingest.Result, error)) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	result, err := run(ctx, a)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %s (%q, %d chunks)\n", result.SourceID, result.Title, result.Chunks)
	return nil
}
