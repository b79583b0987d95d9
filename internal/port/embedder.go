package port

import "context"

// Embedder generates vector embeddings for text.
//
// Queries and stored documents must be embedded by the same model with the
// same normalization, or similarity scores are meaningless.
type Embedder interface {
	// Embed generates an embedding for a single text. Text that is empty
	// after trimming whitespace fails with domain.ErrInvalidInput.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for the given texts, one vector per
	// input, in input order. Semantically identical to calling Embed in a
	// loop; exists to amortize network round-trips.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
