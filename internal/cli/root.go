package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"qwery/config"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qwery",
	Short: "Vector similarity search and RAG service",
	Long: `Qwery ingests documents into a vector store, serves similarity
search over them, and composes retrieval-grounded answers with an
external generation model.

Example usage:
  qwery ingest ./documents        # One-shot batch ingestion
  qwery search -q "billing api"   # Similarity search
  qwery ask -q "how does billing work?"
  qwery serve                     # HTTP API`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win either way.
		_ = godotenv.Load()

		var err error
		path := cfgFile
		if path == "" {
			path = "qwery.yaml"
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(cfg.Logging.Level),
		}))
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./qwery.yaml)")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
