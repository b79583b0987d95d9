package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"qwery/internal/domain"
)

// MockEmbedder produces deterministic vectors derived from the input
// text. Used in tests and as an offline provider; identical texts always
// map to identical vectors, so ranking is reproducible.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	vector := make([]float32, e.dimension)
	for i, r := range text {
		vector[(i+int(r))%e.dimension] += float32(r) / 1000.0
	}

	// Unit-normalize so cosine scores are well-behaved.
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vector {
			vector[i] /= n
		}
	}

	return vector, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
