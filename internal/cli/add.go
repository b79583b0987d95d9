package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"qwery/internal/domain"
	"qwery/internal/usecase"
)

var (
	addFile     string
	addMetadata []string
)

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a single document to the store",
	Long: `Embed and store one document. Content comes from the argument,
from --file, or from stdin when neither is given.

Examples:
  qwery add "postgres uses MVCC for concurrency control"
  qwery add --file notes.txt --meta topic=databases
  cat notes.txt | qwery add`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addFile, "file", "", "read content from a file")
	addCmd.Flags().StringArrayVar(&addMetadata, "meta", nil, "metadata key=value (repeatable)")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var content string
	switch {
	case len(args) > 0:
		content = args[0]
	case addFile != "":
		data, err := os.ReadFile(addFile)
		if err != nil {
			return err
		}
		content = string(data)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		content = string(data)
	}

	content = usecase.Normalize(content)
	if content == "" {
		return fmt.Errorf("content must not be empty: %w", domain.ErrInvalidInput)
	}

	filter, err := parseFilters(addMetadata)
	if err != nil {
		return err
	}
	var metadata map[string]any
	if len(filter) > 0 {
		metadata = filter
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	vector, err := embedder.Embed(ctx, content)
	if err != nil {
		return err
	}

	ids, err := st.InsertBatch(ctx, []domain.Document{{
		Content:   content,
		Metadata:  metadata,
		Embedding: vector,
	}})
	if err != nil {
		return err
	}

	fmt.Printf("Stored document %d (%d chars)\n", ids[0], len(content))
	return nil
}
