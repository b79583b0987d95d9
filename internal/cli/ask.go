package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"qwery/internal/usecase"
)

var (
	askQuery string
	askLimit int
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question grounded in the stored documents",
	Long: `Retrieve the most relevant documents for the question and compose
an answer with the configured generation model, citing sources.

Examples:
  qwery ask -q "how do refunds work?"
  qwery ask -q "what ports does the service use?" --limit 3`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question (required)")
	askCmd.Flags().IntVar(&askLimit, "limit", 0, "context documents to retrieve (default from config)")
	askCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	limit := askLimit
	if limit == 0 {
		limit = cfg.Retrieval.DefaultLimit
	}

	engine := usecase.NewEngine(st, embedder)
	results, err := engine.Retrieve(ctx, askQuery, limit, cfg.Retrieval.Threshold, nil)
	if err != nil {
		return err
	}

	composer, err := usecase.NewComposer(newLLM(cfg), cfg.Generation.MaxContextItems)
	if err != nil {
		return err
	}
	answer, err := composer.Compose(ctx, askQuery, results, 0)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range answer.Sources {
			fmt.Printf("  - id=%d score=%.4f\n", src.ID, src.Score)
		}
	}
	return nil
}
