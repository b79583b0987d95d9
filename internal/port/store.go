package port

import (
	"context"

	"qwery/internal/domain"
)

// Filter restricts a similarity search to rows whose metadata matches
// every listed key by equality.
type Filter map[string]any

// DocumentStore is a durable repository for documents, their metadata and
// embeddings, supporting nearest-neighbor search.
type DocumentStore interface {
	// CreateSchema creates the underlying collection and similarity index
	// if absent. Idempotent; safe to call on every startup.
	CreateSchema(ctx context.Context) error

	// InsertBatch writes documents and returns their assigned ids, in
	// input order. Each row is written atomically; the batch as a whole is
	// not. A document whose embedding length differs from the store
	// dimension is rejected with domain.ErrDimensionMismatch and halts the
	// rest of the batch.
	InsertBatch(ctx context.Context, docs []domain.Document) ([]uint64, error)

	// SimilaritySearch returns up to limit rows nearest to vector under
	// cosine similarity, restricted to rows matching filter, ordered by
	// non-increasing score with ties broken by lower id.
	SimilaritySearch(ctx context.Context, vector []float32, limit int, filter Filter) (domain.RetrievalResult, error)

	// Get returns the document with the given id, or domain.ErrNotFound.
	Get(ctx context.Context, id uint64) (domain.Document, error)

	// Delete removes the document with the given id, or returns
	// domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uint64) error

	// List returns documents newest-first, paged by limit and offset.
	List(ctx context.Context, limit, offset int) ([]domain.Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	Close() error
}
