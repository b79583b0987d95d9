package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"qwery/internal/domain"
)

// OpenAICompatibleEmbedder generates embeddings via the /v1/embeddings
// endpoint exposed by OpenAI-compatible servers. Locally hosted
// HuggingFace models (text-embeddings-inference, llama.cpp, vLLM) speak
// the same protocol, so the "huggingface" provider maps here.
type OpenAICompatibleEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	maxRetries int
	client     *http.Client
}

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data  []openaiEmbedData `json:"data"`
	Error *openaiAPIError   `json:"error,omitempty"`
}

type openaiEmbedData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openaiAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAICompatibleEmbedder creates an embedder for any server exposing
// the OpenAI embeddings protocol. apiKey may be empty for local servers.
func NewOpenAICompatibleEmbedder(baseURL, apiKey, model string, dimension int, timeout time.Duration, maxRetries int) (*OpenAICompatibleEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: embedding base URL is required", domain.ErrInvalidInput)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", domain.ErrInvalidInput)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAICompatibleEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		maxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (e *OpenAICompatibleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAICompatibleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	trimmed := make([]string, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", domain.ErrInvalidInput, i)
		}
		trimmed[i] = text
	}
	if len(trimmed) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := withRetry(ctx, e.maxRetries, func() error {
		v, err := e.embedBatchOnce(ctx, trimmed)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "embedding", Err: err}
	}

	return vectors, nil
}

func (e *OpenAICompatibleEmbedder) embedBatchOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(openaiEmbedRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp openaiEmbedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("embedding server error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("server returned %d embeddings for %d inputs", len(embResp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("server returned out-of-range index %d", data.Index)
		}
		if len(data.Embedding) != e.dimension {
			return nil, fmt.Errorf("model returned %d-dimensional vector, expected %d", len(data.Embedding), e.dimension)
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

func (e *OpenAICompatibleEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAICompatibleEmbedder) ModelName() string {
	return e.model
}
