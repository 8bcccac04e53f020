package retrieval

import (
	"context"

	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
)

// SemanticHit is one vector search result with its raw cosine distance.
type SemanticHit struct {
	Chunk    chunk.Chunk
	Distance float64
}

// SemanticIndex is the external vector similarity search. Distances are
// cosine distances in [0,2]; the pipeline converts them to similarities.
type SemanticIndex interface {
	Query(ctx context.Context, vector []float32, k int, scope tenant.Filter, exts []string) ([]SemanticHit, error)
}

// LexicalHit is one BM25 result with its raw (unnormalized) score.
type LexicalHit struct {
	Chunk chunk.Chunk
	Score float64
}

// LexicalIndex ranks the tenant-visible corpus against a query. The
// implementation caches a single built index per (department, user) scope
// and rebuilds synchronously when the scope changes.
type LexicalIndex interface {
	Score(ctx context.Context, scope tenant.Filter, query string, topN int) ([]LexicalHit, error)
}

// Reranker is the external cross-encoder scoring a shortlist against the
// literal query text. Scores are unbounded.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
