package port

import "qwery/internal/domain"

// Chunker splits source text into bounded-length chunks. A text no longer
// than the maximum becomes exactly one chunk.
type Chunker interface {
	Chunk(source, text string) []domain.Chunk
}
