package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"qwery/internal/port"
	"qwery/internal/usecase"
)

var (
	searchQuery     string
	searchLimit     int
	searchThreshold float64
	searchFilters   []string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Similarity search over stored documents",
	Long: `Embed the query and return the most similar stored documents,
ranked by cosine similarity.

Examples:
  qwery search -q "connection pooling"
  qwery search -q "billing" --limit 10 --filter topic=finance
  qwery search -q "billing" --json`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity score")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "metadata equality filter, key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit results as JSON")
	searchCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	limit := searchLimit
	if limit == 0 {
		limit = cfg.Retrieval.DefaultLimit
	}
	threshold := searchThreshold
	if threshold == 0 {
		threshold = cfg.Retrieval.Threshold
	}
	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	engine := usecase.NewEngine(st, embedder)
	results, err := engine.Retrieve(ctx, searchQuery, limit, threshold, filter)
	if err != nil {
		return err
	}

	if searchJSON {
		type item struct {
			ID       uint64         `json:"id"`
			Content  string         `json:"content"`
			Metadata map[string]any `json:"metadata,omitempty"`
			Score    float64        `json:"score"`
		}
		items := make([]item, 0, len(results))
		for _, res := range results {
			items = append(items, item{res.Document.ID, res.Document.Content, res.Document.Metadata, res.Score})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, res := range results {
		fmt.Printf("%d. [id=%d score=%.4f]\n", i+1, res.Document.ID, res.Score)
		fmt.Printf("   %s\n", firstLine(res.Document.Content, 200))
		if src, ok := res.Document.Metadata["source"].(string); ok {
			fmt.Printf("   source: %s\n", src)
		}
	}
	return nil
}

// parseFilters converts repeated key=value flags into a metadata filter.
func parseFilters(pairs []string) (port.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(port.Filter, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", p)
		}
		filter[key] = value
	}
	return filter, nil
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}
