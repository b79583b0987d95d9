package domain

import "time"

// Document is one stored unit of content together with its embedding.
// All documents in a store share one embedding dimension.
type Document struct {
	ID        uint64         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Chunk is a bounded slice of a source document's text, produced by the
// ingestion pipeline before embedding. Each chunk becomes one Document row.
type Chunk struct {
	Source string
	Index  int
	Text   string
}

// ScoredDocument pairs a document with its similarity score for a query.
type ScoredDocument struct {
	Document Document
	Score    float64
}

// RetrievalResult is an ordered result set, scores non-increasing.
type RetrievalResult []ScoredDocument

// Source identifies one document that informed a generated answer.
type Source struct {
	ID    uint64  `json:"id"`
	Score float64 `json:"score"`
}

// Answer carries generated text plus the sources it was grounded on.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}
