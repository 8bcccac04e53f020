package ingest

import (
	"context"

	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/reader"
)

// DocumentReader extracts ordered (page, text) pairs from a file on disk.
type DocumentReader interface {
	Read(path string) ([]reader.Page, error)
}

// Embedder vectorizes chunk texts in one batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists chunks with their embeddings. Chunk IDs are
// content-derived, so repeated ingestion of the same document is idempotent.
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
}

// Invalidator drops the cached lexical index so the next query rebuilds it
// over the grown corpus.
type Invalidator interface {
	Invalidate()
}
