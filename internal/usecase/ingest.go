package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"qwery/internal/adapter/fs"
	"qwery/internal/domain"
	"qwery/internal/port"
)

// Ingestor runs the batch ingestion pipeline: discover files under a
// source directory, extract and normalize their text, chunk it, embed the
// chunks and write them to the document store. One failing document never
// aborts the run; it is recorded in the summary and the pipeline moves on.
type Ingestor struct {
	store       port.DocumentStore
	embedder    port.Embedder
	chunker     port.Chunker
	walker      port.FileWalker
	batchSize   int
	concurrency int
	logger      *slog.Logger

	// Progress, when set, is called after each processed file.
	Progress func(done, total int)
}

func NewIngestor(
	store port.DocumentStore,
	embedder port.Embedder,
	chunker port.Chunker,
	walker port.FileWalker,
	batchSize, concurrency int,
	logger *slog.Logger,
) *Ingestor {
	if batchSize <= 0 {
		batchSize = 32
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:       store,
		embedder:    embedder,
		chunker:     chunker,
		walker:      walker,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// IngestSummary reports the outcome of one ingestion run.
type IngestSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Chunks    int
	Errors    []string
}

// Run ingests every matching file under root. Files stream through the
// pipeline one at a time, so the corpus is never held in memory at once.
// Cancelling ctx stops the run gracefully: the in-flight document
// completes, no new one starts, and the summary reflects progress so far.
func (g *Ingestor) Run(ctx context.Context, root string) (*IngestSummary, error) {
	files, err := g.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan source path: %w", err)
	}

	summary := &IngestSummary{Total: len(files)}

	for i, file := range files {
		if ctx.Err() != nil {
			g.logger.Info("ingestion stopped", "processed", i, "total", len(files))
			return summary, ctx.Err()
		}

		chunks, err := g.ingestFile(ctx, file)
		if err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", file.Path, err))
			g.logger.Warn("document failed", "path", file.Path, "error", err)
		} else {
			summary.Succeeded++
			summary.Chunks += chunks
		}

		if g.Progress != nil {
			g.Progress(i+1, len(files))
		}
	}

	return summary, nil
}

// ingestFile runs one source document through
// extraction, chunking, embedding and storage. Returns the number of rows
// written.
func (g *Ingestor) ingestFile(ctx context.Context, file port.FileInfo) (int, error) {
	content, err := fs.ReadFile(file.Path)
	if err != nil {
		return 0, fmt.Errorf("extraction failed: %w", err)
	}
	if !utf8.ValidString(content) {
		return 0, fmt.Errorf("unsupported format: not valid UTF-8 text")
	}

	content = Normalize(content)
	if content == "" {
		return 0, fmt.Errorf("empty document")
	}

	chunks := g.chunker.Chunk(file.Path, content)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("chunking produced no output")
	}

	vectors, err := g.embedChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}

	docs := make([]domain.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = domain.Document{
			Content:   chunk.Text,
			Embedding: vectors[i],
			Metadata: map[string]any{
				"source":      chunk.Source,
				"chunk_index": chunk.Index,
				"filename":    filepath.Base(file.Path),
				"file_type":   fileType(file.Path),
				"size":        file.Size,
			},
		}
	}

	ids, err := g.store.InsertBatch(ctx, docs)
	if err != nil {
		return len(ids), fmt.Errorf("storage failed after %d rows: %w", len(ids), err)
	}
	return len(ids), nil
}

// embedChunks embeds the chunks of one document in batches, running up to
// the configured number of batches in parallel to bound load on the
// embedding provider.
func (g *Ingestor) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for start := 0; start < len(chunks); start += g.batchSize {
		end := start + g.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end

		eg.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = chunks[i].Text
			}
			batch, err := g.embedder.EmbedBatch(egCtx, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func fileType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "unknown"
	}
	return ext[1:]
}
