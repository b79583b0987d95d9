package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"qwery/internal/domain"
	"qwery/internal/port"
)

func newTestStore(t *testing.T, dimension int) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "test.db"), dimension)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func doc(content string, embedding []float32, metadata map[string]any) domain.Document {
	return domain.Document{Content: content, Embedding: embedding, Metadata: metadata}
}

func TestCreateSchemaIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatalf("first CreateSchema: %v", err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatalf("second CreateSchema: %v", err)
	}
}

func TestCreateSchemaDimensionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewBoltStore(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewBoltStore(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	err = s2.CreateSchema(ctx)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for reconfigured dimension, got %v", err)
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	metadata := map[string]any{"source": "notes.txt", "chunk_index": float64(0)}
	ids, err := s.InsertBatch(ctx, []domain.Document{doc("hello world", []float32{1, 2, 3}, metadata)})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids, want 1", len(ids))
	}

	got, err := s.Get(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "hello world" {
		t.Errorf("content = %q, want %q", got.Content, "hello world")
	}
	if !reflect.DeepEqual(got.Metadata, metadata) {
		t.Errorf("metadata = %v, want %v", got.Metadata, metadata)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(got.Embedding))
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set on write")
	}
}

func TestInsertDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	ids, err := s.InsertBatch(ctx, []domain.Document{
		doc("good", []float32{1, 2, 3}, nil),
		doc("bad", []float32{1, 2, 3, 4}, nil),
		doc("never reached", []float32{1, 2, 3}, nil),
	})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 committed row before the mismatch, got %d", len(ids))
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("mismatched row was persisted: count = %d, want 1", count)
	}
}

func TestInsertEmptyContent(t *testing.T) {
	s := newTestStore(t, 3)

	_, err := s.InsertBatch(context.Background(), []domain.Document{doc("", []float32{1, 2, 3}, nil)})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := newTestStore(t, 3)

	results, err := s.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("empty store search should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSearchRankingOrder(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, []domain.Document{
		doc("exact", []float32{1, 0, 0}, nil),
		doc("close", []float32{1, 0.2, 0}, nil),
		doc("far", []float32{0, 0, 1}, nil),
		doc("opposite", []float32{-1, 0, 0}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %f > %f", i, results[i].Score, results[i-1].Score)
		}
	}
	if results[0].Document.Content != "exact" {
		t.Errorf("best match = %q, want %q", results[0].Document.Content, "exact")
	}
	if results[len(results)-1].Document.Content != "opposite" {
		t.Errorf("worst match = %q, want %q", results[len(results)-1].Document.Content, "opposite")
	}
}

func TestSearchDeterministicWithTies(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	// Three identical vectors score equally; order must fall back to
	// insertion order (lower id first).
	_, err := s.InsertBatch(ctx, []domain.Document{
		doc("first", []float32{1, 1, 0}, nil),
		doc("second", []float32{1, 1, 0}, nil),
		doc("third", []float32{1, 1, 0}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	var previous []uint64
	for run := 0; run < 5; run++ {
		results, err := s.SimilaritySearch(ctx, []float32{1, 1, 0}, 3, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids := make([]uint64, len(results))
		for i, r := range results {
			ids[i] = r.Document.ID
		}
		if previous != nil && !reflect.DeepEqual(ids, previous) {
			t.Fatalf("run %d returned %v, previous run returned %v", run, ids, previous)
		}
		previous = ids
	}

	for i := 1; i < len(previous); i++ {
		if previous[i] < previous[i-1] {
			t.Errorf("tied results not in insertion order: %v", previous)
		}
	}
}

func TestSearchMetadataFilter(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, []domain.Document{
		doc("go doc", []float32{1, 0}, map[string]any{"lang": "go"}),
		doc("py doc", []float32{1, 0}, map[string]any{"lang": "python"}),
		doc("untagged", []float32{1, 0}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 10, port.Filter{"lang": "go"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Document.Content != "go doc" {
		t.Errorf("filtered result = %q, want %q", results[0].Document.Content, "go doc")
	}
}

func TestSearchInvalidLimit(t *testing.T) {
	s := newTestStore(t, 2)

	for _, limit := range []int{0, -1} {
		_, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, limit, nil)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("limit %d: expected ErrInvalidInput, got %v", limit, err)
		}
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t, 2)

	_, err := s.Get(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	ids, err := s.InsertBatch(ctx, []domain.Document{doc("bye", []float32{1, 0}, nil)})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, ids[0]); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for double delete, got %v", err)
	}

	// Deleted rows must not appear in search results.
	results, err := s.SimilaritySearch(ctx, []float32{1, 0}, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("deleted document still searchable")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	_, err := s.InsertBatch(ctx, []domain.Document{
		doc("one", []float32{1, 0}, nil),
		doc("two", []float32{1, 0}, nil),
		doc("three", []float32{1, 0}, nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	docs, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	if docs[0].Content != "three" || docs[1].Content != "two" {
		t.Errorf("list order = [%q, %q], want newest-first", docs[0].Content, docs[1].Content)
	}

	docs, err = s.List(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Content != "one" {
		t.Errorf("offset page wrong: %v", docs)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewBoltStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}
	ids, err := s.InsertBatch(ctx, []domain.Document{doc("durable", []float32{0.5, 0.5}, nil)})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewBoltStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := s2.Get(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "durable" {
		t.Errorf("content after reopen = %q", got.Content)
	}

	results, err := s2.SimilaritySearch(ctx, []float32{0.5, 0.5}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Error("vector cache not rebuilt after reopen")
	}
}
