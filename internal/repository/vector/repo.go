package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/strugglingman/rag-chatbot/internal/db"
	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/repository/lexical"
	"github.com/strugglingman/rag-chatbot/internal/usecase/retrieval"
)

// Compile-time checks: Repo serves both retrieval sides.
var (
	_ retrieval.SemanticIndex = (*Repo)(nil)
	_ lexical.CorpusReader    = (*Repo)(nil)
)

const (
	indexName = "chunks_idx"
	keyPrefix = "chunk:"

	// listPageSize is the FT.SEARCH page size for corpus listing.
	listPageSize = 500
)

// store is the consumer interface for chunk storage (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo persists chunks as Redis hashes under an FT vector index.
type Repo struct {
	store store
	dim   int
}

// New creates a chunk repository. dim is the embedding dimensionality the
// index is created with.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// EnsureIndex creates the chunk FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldDeptID).
		Tag(fieldUserID).
		Tag(fieldShared).
		Tag(fieldExt).
		Tag(fieldSource).
		Tag(fieldFileID).
		Numeric(fieldUploadedTS).
		VectorHNSW(fieldVector, r.dim, db.DistanceCosine, 16, 200).
		MustBuild()

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert stores chunks with their embeddings. Keys are content-derived, so
// re-ingesting the same document overwrites in place.
func (r *Repo) Upsert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i := range chunks {
		items[i] = db.HashSetItem{
			Key:    keyPrefix + chunks[i].ID(),
			Fields: fieldsFromChunk(&chunks[i], vectors[i]),
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// Query runs a tenant-scoped KNN search and returns hits with their raw
// cosine distances.
func (r *Repo) Query(
	ctx context.Context, vector []float32, k int, scope tenant.Filter, exts []string,
) ([]retrieval.SemanticHit, error) {
	q := &db.KNNQuery{
		IndexName:    indexName,
		Filters:      scopeFilter(scope, exts),
		Vector:       vector,
		K:            k,
		ReturnFields: chunkReturnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	hits := make([]retrieval.SemanticHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, keyPrefix)
		c := chunkFromFields(id, entry.Fields)
		if !scope.Visible(&c) {
			// The TAG pre-filter should already exclude these; drop
			// anything that slips through a stale or mis-built index.
			continue
		}
		hits = append(hits, retrieval.SemanticHit{Chunk: c, Distance: entry.Score})
	}
	return hits, nil
}

// ListVisible pages through every chunk visible to the scope. Feeds the
// in-process lexical index build.
func (r *Repo) ListVisible(ctx context.Context, scope tenant.Filter) ([]chunk.Chunk, error) {
	var out []chunk.Chunk

	for offset := 0; ; offset += listPageSize {
		sr, err := r.store.SearchList(ctx, &db.ListQuery{
			IndexName:    indexName,
			Filters:      scopeFilter(scope, nil),
			Offset:       offset,
			Limit:        listPageSize,
			ReturnFields: chunkReturnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("list chunks: %w", err)
		}
		if sr == nil || len(sr.Entries) == 0 {
			break
		}

		for _, entry := range sr.Entries {
			id := strings.TrimPrefix(entry.Key, keyPrefix)
			c := chunkFromFields(id, entry.Fields)
			if !scope.Visible(&c) {
				continue
			}
			out = append(out, c)
		}

		if offset+len(sr.Entries) >= sr.Total {
			break
		}
	}

	return out, nil
}

// scopeFilter builds the tenant pre-filter: department must match, and the
// chunk must be shared or owned by the caller.
func scopeFilter(scope tenant.Filter, exts []string) db.TagFilter {
	f := db.TagFilter{
		Must: []db.TagMatch{
			{Key: fieldDeptID, Values: []string{scope.DeptID()}},
		},
		Should: []db.TagMatch{
			{Key: fieldShared, Values: []string{"true"}},
			{Key: fieldUserID, Values: []string{scope.UserID()}},
		},
	}
	if len(exts) > 0 {
		f.Must = append(f.Must, db.TagMatch{Key: fieldExt, Values: exts})
	}
	return f
}
