package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"qwery/internal/domain"
	"qwery/internal/port"
)

var (
	bucketDocuments = []byte("documents")
	bucketSchema    = []byte("schema")
	keyDimension    = []byte("dimension")
)

// BoltStore is a bbolt-backed document store. Vectors and metadata are
// mirrored in memory so similarity search never touches disk; search is
// exact brute-force cosine over all rows, so top-k results are exact, not
// approximate. Ids are assigned from the bucket sequence and are
// monotonically increasing, which makes the insertion-order tie-break
// deterministic.
//
// bbolt serializes writers and gives readers snapshot isolation, so a
// concurrent reader never observes a partially written row.
type BoltStore struct {
	db        *bbolt.DB
	dimension int

	mu      sync.RWMutex
	vectors map[uint64]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	metadata map[string]any
}

type storedDocument struct {
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

// NewBoltStore opens the database file. Call CreateSchema before use.
func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: store dimension must be positive", domain.ErrInvalidInput)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	return &BoltStore{
		db:        db,
		dimension: dimension,
		vectors:   make(map[uint64]vectorEntry),
	}, nil
}

// CreateSchema creates the buckets if absent and records the embedding
// dimension. Idempotent. Opening a store whose recorded dimension differs
// from the configured one fails: that indicates configuration drift
// between the embedding model and the stored rows.
func (s *BoltStore) CreateSchema(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDocuments); err != nil {
			return err
		}
		schema, err := tx.CreateBucketIfNotExists(bucketSchema)
		if err != nil {
			return err
		}

		if existing := schema.Get(keyDimension); existing != nil {
			stored, err := strconv.Atoi(string(existing))
			if err != nil {
				return fmt.Errorf("corrupt dimension record: %q", existing)
			}
			if stored != s.dimension {
				return fmt.Errorf("%w: store holds %d-dimensional vectors, configured for %d", domain.ErrDimensionMismatch, stored, s.dimension)
			}
			return nil
		}
		return schema.Put(keyDimension, []byte(strconv.Itoa(s.dimension)))
	})
	if err != nil {
		return &domain.StorageError{Op: "create schema", Err: err}
	}

	return s.loadVectors()
}

// loadVectors mirrors all stored vectors and metadata into memory.
func (s *BoltStore) loadVectors() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vectors = make(map[uint64]vectorEntry)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedDocument
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt row %d: %w", binary.BigEndian.Uint64(k), err)
			}
			s.vectors[binary.BigEndian.Uint64(k)] = vectorEntry{
				vector:   stored.Embedding,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
	if err != nil {
		return &domain.StorageError{Op: "load vectors", Err: err}
	}
	return nil
}

// InsertBatch writes each document in its own transaction. A dimension
// mismatch halts the batch; rows written before the offending document
// stay committed and their ids are returned alongside the error.
func (s *BoltStore) InsertBatch(ctx context.Context, docs []domain.Document) ([]uint64, error) {
	ids := make([]uint64, 0, len(docs))

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		if doc.Content == "" {
			return ids, fmt.Errorf("%w: document %d has empty content", domain.ErrInvalidInput, i)
		}
		if len(doc.Embedding) != s.dimension {
			return ids, fmt.Errorf("%w: document %d has %d-dimensional embedding, store expects %d", domain.ErrDimensionMismatch, i, len(doc.Embedding), s.dimension)
		}

		id, err := s.insertOne(doc)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (s *BoltStore) insertOne(doc domain.Document) (uint64, error) {
	now := time.Now().UTC()
	var id uint64

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b == nil {
			return fmt.Errorf("schema not created")
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq

		stored := storedDocument{
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
			CreatedAt: now.Unix(),
			UpdatedAt: now.Unix(),
		}
		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		return b.Put(idKey(id), data)
	})
	if err != nil {
		return 0, &domain.StorageError{Op: "insert", Err: err}
	}

	s.mu.Lock()
	s.vectors[id] = vectorEntry{vector: doc.Embedding, metadata: doc.Metadata}
	s.mu.Unlock()

	return id, nil
}

// SimilaritySearch scores every row matching filter against the query
// vector and returns the top limit by cosine similarity, ties broken by
// lower id. An empty store yields an empty result, not an error.
func (s *BoltStore) SimilaritySearch(ctx context.Context, vector []float32, limit int, filter port.Filter) (domain.RetrievalResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store expects %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}

	type scored struct {
		id    uint64
		score float64
	}

	s.mu.RLock()
	candidates := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		if !matchesFilter(entry.metadata, filter) {
			continue
		}
		candidates = append(candidates, scored{id: id, score: cosineSimilarity(vector, entry.vector)})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make(domain.RetrievalResult, 0, limit)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, c := range candidates[:limit] {
			data := b.Get(idKey(c.id))
			if data == nil {
				continue
			}
			doc, err := decodeDocument(c.id, data)
			if err != nil {
				return err
			}
			results = append(results, domain.ScoredDocument{Document: doc, Score: c.score})
		}
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "search", Err: err}
	}

	return results, nil
}

func (s *BoltStore) Get(ctx context.Context, id uint64) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get(idKey(id))
		if data == nil {
			return fmt.Errorf("%w: document %d", domain.ErrNotFound, id)
		}
		var derr error
		doc, derr = decodeDocument(id, data)
		return derr
	})
	return doc, err
}

func (s *BoltStore) Delete(ctx context.Context, id uint64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b.Get(idKey(id)) == nil {
			return fmt.Errorf("%w: document %d", domain.ErrNotFound, id)
		}
		return b.Delete(idKey(id))
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.vectors, id)
	s.mu.Unlock()
	return nil
}

// List returns documents newest-first (descending id).
func (s *BoltStore) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketDocuments).Cursor()
		skipped := 0
		for k, v := c.Last(); k != nil && len(docs) < limit; k, v = c.Prev() {
			if skipped < offset {
				skipped++
				continue
			}
			doc, err := decodeDocument(binary.BigEndian.Uint64(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return docs, nil
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func decodeDocument(id uint64, data []byte) (domain.Document, error) {
	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.Document{}, fmt.Errorf("corrupt row %d: %w", id, err)
	}
	return domain.Document{
		ID:        id,
		Content:   stored.Content,
		Metadata:  stored.Metadata,
		Embedding: stored.Embedding,
		CreatedAt: time.Unix(stored.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(stored.UpdatedAt, 0).UTC(),
	}, nil
}

// matchesFilter reports whether metadata satisfies every filter key by
// equality. Values are compared through their JSON encoding since
// metadata round-trips through JSON and numbers arrive as float64.
func matchesFilter(metadata map[string]any, filter port.Filter) bool {
	if len(filter) == 0 {
		return true
	}
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !equalJSON(got, want) {
			return false
		}
	}
	return true
}

func equalJSON(a, b any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
