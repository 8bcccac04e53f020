package lexical

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/metrics"
	"github.com/strugglingman/rag-chatbot/internal/usecase/retrieval"
)

// CorpusReader lists every chunk visible to a tenant scope. The lexical
// index must never see chunks the caller cannot see.
type CorpusReader interface {
	ListVisible(ctx context.Context, scope tenant.Filter) ([]chunk.Chunk, error)
}

// scopeKey identifies the (department, user) pair an index was built for.
type scopeKey struct {
	deptID string
	userID string
}

// Cache holds the single last-built BM25 index, keyed by tenant scope.
// A scope change invalidates it and forces a synchronous rebuild; readers
// of the current scope share the built index under a read lock.
type Cache struct {
	corpus CorpusReader
	logger *zap.Logger

	mu    sync.RWMutex
	scope scopeKey
	idx   *index
}

// NewCache creates the scope-keyed index cache.
func NewCache(corpus CorpusReader, logger *zap.Logger) *Cache {
	return &Cache{corpus: corpus, logger: logger}
}

var _ retrieval.LexicalIndex = (*Cache)(nil)

// Score ranks the scope's corpus against the query, rebuilding the index
// first if the cached one was built for a different scope.
func (c *Cache) Score(
	ctx context.Context, scope tenant.Filter, query string, topN int,
) ([]retrieval.LexicalHit, error) {
	idx, err := c.ensure(ctx, scope)
	if err != nil {
		return nil, err
	}

	chunks, scores := idx.top(query, topN)
	hits := make([]retrieval.LexicalHit, len(chunks))
	for i := range chunks {
		hits[i] = retrieval.LexicalHit{Chunk: chunks[i], Score: scores[i]}
	}
	return hits, nil
}

// Invalidate drops the cached index. Called after ingestion so the next
// query rebuilds against the updated corpus.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idx = nil
	c.scope = scopeKey{}
}

// ensure returns the index for the scope, rebuilding under the write lock
// when the scope changed. A rebuild in progress is never observed
// half-built: readers wait on the lock and see either the old index (their
// own scope) or the completed new one.
func (c *Cache) ensure(ctx context.Context, scope tenant.Filter) (*index, error) {
	key := scopeKey{deptID: scope.DeptID(), userID: scope.UserID()}

	c.mu.RLock()
	if c.idx != nil && c.scope == key {
		idx := c.idx
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another request may have rebuilt for this scope while we waited.
	if c.idx != nil && c.scope == key {
		return c.idx, nil
	}

	chunks, err := c.corpus.ListVisible(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list corpus: %w", err)
	}

	c.idx = buildIndex(chunks)
	c.scope = key
	metrics.LexicalRebuildsTotal.Inc()
	c.logger.Info("lexical index rebuilt",
		zap.String("dept_id", scope.DeptID()),
		zap.String("user_id", scope.UserID()),
		zap.Int("documents", len(chunks)),
	)
	return c.idx, nil
}
