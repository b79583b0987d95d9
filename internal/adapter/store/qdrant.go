package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"qwery/internal/domain"
	"qwery/internal/port"
)

// QdrantStore is a document store backed by a remote Qdrant instance over
// its REST API. Qdrant maintains an HNSW index, so similarity search is
// approximate nearest-neighbor: high recall, not provably exact top-k.
// Ids are assigned from a process-local monotonic nanosecond counter.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	lastID     atomic.Uint64
}

// QdrantConfig contains connection details for a Qdrant store.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: store dimension must be positive", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &QdrantStore{
		baseURL:    fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// CreateSchema creates the collection with a cosine-distance vector index
// if it does not exist. Idempotent.
func (s *QdrantStore) CreateSchema(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err != nil {
		return &domain.StorageError{Op: "create schema", Err: err}
	}
	if status == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	status, err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if err != nil {
		return &domain.StorageError{Op: "create schema", Err: err}
	}
	if status >= 300 {
		return &domain.StorageError{Op: "create schema", Err: fmt.Errorf("qdrant returned status %d", status)}
	}
	return nil
}

func (s *QdrantStore) InsertBatch(ctx context.Context, docs []domain.Document) ([]uint64, error) {
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

		id := s.nextID()
		now := time.Now().UTC().Unix()
		point := map[string]any{
			"id":     id,
			"vector": doc.Embedding,
			"payload": map[string]any{
				"content":    doc.Content,
				"metadata":   doc.Metadata,
				"created_at": now,
				"updated_at": now,
			},
		}
		body := map[string]any{"points": []any{point}}
		status, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
		if err != nil {
			return ids, &domain.StorageError{Op: "insert", Err: err}
		}
		if status >= 300 {
			return ids, &domain.StorageError{Op: "insert", Err: fmt.Errorf("qdrant returned status %d", status)}
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (s *QdrantStore) SimilaritySearch(ctx context.Context, vector []float32, limit int, filter port.Filter) (domain.RetrievalResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidInput)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store expects %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if len(filter) > 0 {
		var must []any
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   "metadata." + key,
				"match": map[string]any{"value": value},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if err != nil {
		return nil, &domain.StorageError{Op: "search", Err: err}
	}
	if status >= 300 {
		return nil, &domain.StorageError{Op: "search", Err: fmt.Errorf("qdrant returned status %d", status)}
	}

	results := make(domain.RetrievalResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		results = append(results, domain.ScoredDocument{Document: p.document(), Score: p.Score})
	}

	// Qdrant orders by score; re-sort to enforce the id tie-break.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	return results, nil
}

func (s *QdrantStore) Get(ctx context.Context, id uint64) (domain.Document, error) {
	req := map[string]any{
		"ids":          []uint64{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points"), req, &resp)
	if err != nil {
		return domain.Document{}, &domain.StorageError{Op: "get", Err: err}
	}
	if status >= 300 {
		return domain.Document{}, &domain.StorageError{Op: "get", Err: fmt.Errorf("qdrant returned status %d", status)}
	}
	if len(resp.Result) == 0 {
		return domain.Document{}, fmt.Errorf("%w: document %d", domain.ErrNotFound, id)
	}
	return resp.Result[0].document(), nil
}

func (s *QdrantStore) Delete(ctx context.Context, id uint64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	body := map[string]any{"points": []uint64{id}}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil)
	if err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	if status >= 300 {
		return &domain.StorageError{Op: "delete", Err: fmt.Errorf("qdrant returned status %d", status)}
	}
	return nil
}

// List scrolls the collection and orders locally by descending id. Scroll
// has no server-side ordering, so paging deep offsets reads limit+offset
// points.
func (s *QdrantStore) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	req := map[string]any{
		"limit":        limit + offset,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result struct {
			Points []qdrantPoint `json:"points"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	if status >= 300 {
		return nil, &domain.StorageError{Op: "list", Err: fmt.Errorf("qdrant returned status %d", status)}
	}

	docs := make([]domain.Document, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		docs = append(docs, p.document())
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID > docs[j].ID })

	if offset >= len(docs) {
		return nil, nil
	}
	docs = docs[offset:]
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, &domain.StorageError{Op: "count", Err: err}
	}
	if status >= 300 {
		return 0, &domain.StorageError{Op: "count", Err: fmt.Errorf("qdrant returned status %d", status)}
	}
	return resp.Result.Count, nil
}

func (s *QdrantStore) Close() error {
	return nil
}

// nextID returns a strictly increasing id derived from the wall clock.
func (s *QdrantStore) nextID() uint64 {
	for {
		now := uint64(time.Now().UnixNano())
		last := s.lastID.Load()
		if now <= last {
			now = last + 1
		}
		if s.lastID.CompareAndSwap(last, now) {
			return now
		}
	}
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.baseURL, s.collection, suffix)
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

type qdrantPoint struct {
	ID      uint64         `json:"id"`
	Score   float64        `json:"score"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (p qdrantPoint) document() domain.Document {
	doc := domain.Document{
		ID:        p.ID,
		Embedding: p.Vector,
	}
	if v, ok := p.Payload["content"].(string); ok {
		doc.Content = v
	}
	if v, ok := p.Payload["metadata"].(map[string]any); ok {
		doc.Metadata = v
	}
	if v, ok := p.Payload["created_at"].(float64); ok {
		doc.CreatedAt = time.Unix(int64(v), 0).UTC()
	}
	if v, ok := p.Payload["updated_at"].(float64); ok {
		doc.UpdatedAt = time.Unix(int64(v), 0).UTC()
	}
	return doc
}
