package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"qwery/config"
	"qwery/internal/adapter/embedding"
	"qwery/internal/adapter/llm"
	"qwery/internal/adapter/store"
	"qwery/internal/port"
)

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	timeout := time.Duration(cfg.Embedding.TimeoutSecs) * time.Second

	switch cfg.Embedding.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimension, timeout, cfg.Embedding.MaxRetries)
	case "huggingface", "local", "openai":
		// Locally hosted HuggingFace models are served through
		// OpenAI-compatible endpoints.
		return embedding.NewOpenAICompatibleEmbedder(cfg.Embedding.BaseURL, os.Getenv("QWERY_EMBEDDING_API_KEY"), cfg.Embedding.Model, cfg.Embedding.Dimension, timeout, cfg.Embedding.MaxRetries)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

// openStore builds the configured store backend and ensures its schema
// exists.
func openStore(ctx context.Context, cfg *config.Config) (port.DocumentStore, error) {
	var (
		st  port.DocumentStore
		err error
	)

	switch cfg.Store.Backend {
	case "bolt", "":
		st, err = store.NewBoltStore(cfg.Store.Path, cfg.Embedding.Dimension)
	case "qdrant":
		st, err = store.NewQdrantStore(store.QdrantConfig{
			Host:       cfg.Store.Host,
			Port:       cfg.Store.Port,
			APIKey:     cfg.Store.Credentials,
			Collection: cfg.Store.Database,
			Dimension:  cfg.Embedding.Dimension,
		})
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := st.CreateSchema(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func newLLM(cfg *config.Config) port.LLM {
	return llm.NewOllamaClient(cfg.Generation.BaseURL, cfg.Generation.Model, time.Duration(cfg.Generation.TimeoutSecs)*time.Second)
}
