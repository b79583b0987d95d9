package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"qwery/internal/adapter/chunker"
	"qwery/internal/adapter/fs"
	"qwery/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest documents into the vector store",
	Long: `Run the batch ingestion pipeline over a source directory: extract
text files, chunk them, generate embeddings and store the rows.

The path defaults to documents.source_path from the config. Exit codes:
  0  all documents ingested
  1  some documents failed (partial ingestion)
  2  fatal setup error (store, embedder, source path)

Examples:
  qwery ingest
  qwery ingest /srv/corpus`,
	Args: cobra.MaximumNArgs(1),
	Run:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	path := cfg.Documents.SourcePath
	if len(args) > 0 {
		path = args[0]
	}
	path, err := filepath.Abs(path)
	if err != nil {
		fatalSetup(err)
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		fatalSetup(fmt.Errorf("source path is not a directory: %s", path))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		fatalSetup(err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		fatalSetup(err)
	}
	defer st.Close()

	ing := usecase.NewIngestor(
		st,
		embedder,
		chunker.NewWindowChunker(cfg.Chunk.MaxLength, cfg.Chunk.Overlap),
		fs.NewWalker(cfg.Documents.Includes, cfg.Documents.Excludes),
		cfg.Embedding.BatchSize,
		cfg.Embedding.Concurrency,
		logger,
	)

	fmt.Printf("Ingesting %s (model %s, dimension %d)...\n", path, embedder.ModelName(), embedder.Dimension())

	var bar *progressbar.ProgressBar
	ing.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Ingesting"),
				progressbar.OptionOnCompletion(func() { fmt.Println() }),
			)
		}
		bar.Set(done)
	}

	summary, runErr := ing.Run(ctx, path)
	if runErr != nil && summary == nil {
		fatalSetup(runErr)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents total:     %d\n", summary.Total)
	fmt.Printf("  Documents succeeded: %d\n", summary.Succeeded)
	fmt.Printf("  Documents failed:    %d\n", summary.Failed)
	fmt.Printf("  Chunks stored:       %d\n", summary.Chunks)

	if len(summary.Errors) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, e := range summary.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if errors.Is(runErr, context.Canceled) {
		fmt.Println("\nStopped before completion.")
	}

	if summary.Failed > 0 || runErr != nil {
		os.Exit(1)
	}
}

func fatalSetup(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(2)
}
