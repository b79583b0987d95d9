package usecase

import (
	"context"
	"fmt"

	"qwery/internal/domain"
	"qwery/internal/port"
)

// Engine answers similarity queries: it embeds the query text with the
// same model and normalization used at ingestion time and delegates
// ranking to the document store.
type Engine struct {
	store    port.DocumentStore
	embedder port.Embedder
}

func NewEngine(store port.DocumentStore, embedder port.Embedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

// Retrieve returns up to limit documents ranked by similarity to query,
// restricted by filter. A threshold above zero drops results scoring
// below it. An empty store yields an empty result, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, limit int, threshold float64, filter port.Filter) (domain.RetrievalResult, error) {
	query = Normalize(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results, err := e.store.SimilaritySearch(ctx, vector, limit, filter)
	if err != nil {
		return nil, err
	}

	if threshold > 0 {
		kept := make(domain.RetrievalResult, 0, len(results))
		for _, r := range results {
			if r.Score >= threshold {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	return results, nil
}
