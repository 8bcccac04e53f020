package lexical

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
)

func makeChunk(dept, user string, shared bool, source, text string) chunk.Chunk {
	return chunk.New(chunk.Meta{
		DeptID: dept,
		UserID: user,
		Shared: shared,
		Source: source,
	}, text)
}

type mockCorpus struct {
	mu     sync.Mutex
	chunks map[scopeKey][]chunk.Chunk
	err    error
	calls  int
}

func (m *mockCorpus) ListVisible(_ context.Context, scope tenant.Filter) ([]chunk.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks[scopeKey{deptID: scope.DeptID(), userID: scope.UserID()}], nil
}

func TestBM25_RanksTermMatchesHigher(t *testing.T) {
	idx := buildIndex([]chunk.Chunk{
		makeChunk("d", "u", true, "a.txt", "the quarterly revenue report for berlin"),
		makeChunk("d", "u", true, "b.txt", "employee onboarding checklist and forms"),
		makeChunk("d", "u", true, "c.txt", "berlin office opening hours"),
	})

	scores := idx.scores("berlin revenue")
	if scores[0] <= scores[1] {
		t.Errorf("doc with both terms should outscore doc with none: %v", scores)
	}
	if scores[0] <= scores[2] {
		t.Errorf("doc with both terms should outscore doc with one: %v", scores)
	}
	if scores[1] != 0 {
		t.Errorf("doc with no query terms should score 0, got %v", scores[1])
	}
}

func TestBM25_EmptyCorpus(t *testing.T) {
	idx := buildIndex(nil)
	chunks, scores := idx.top("anything", 10)
	if len(chunks) != 0 || len(scores) != 0 {
		t.Errorf("empty corpus must return nothing, got %d chunks", len(chunks))
	}
}

func TestBM25_TopTruncates(t *testing.T) {
	idx := buildIndex([]chunk.Chunk{
		makeChunk("d", "u", true, "a.txt", "alpha beta"),
		makeChunk("d", "u", true, "b.txt", "alpha gamma"),
		makeChunk("d", "u", true, "c.txt", "alpha delta"),
	})
	chunks, _ := idx.top("alpha", 2)
	if len(chunks) != 2 {
		t.Errorf("expected 2 results, got %d", len(chunks))
	}
}

func TestCache_RebuildOnScopeChange(t *testing.T) {
	scopeA := tenant.New("d1", "alice")
	scopeB := tenant.New("d1", "bob")
	corpus := &mockCorpus{chunks: map[scopeKey][]chunk.Chunk{
		{deptID: "d1", userID: "alice"}: {makeChunk("d1", "alice", false, "a.txt", "alice notes")},
		{deptID: "d1", userID: "bob"}:   {makeChunk("d1", "bob", false, "b.txt", "bob notes")},
	}}
	cache := NewCache(corpus, zap.NewNop())

	ctx := context.Background()
	if _, err := cache.Score(ctx, scopeA, "notes", 10); err != nil {
		t.Fatalf("score A: %v", err)
	}
	if corpus.calls != 1 {
		t.Fatalf("expected 1 build, got %d", corpus.calls)
	}

	// Same scope: cached index reused.
	if _, err := cache.Score(ctx, scopeA, "notes", 10); err != nil {
		t.Fatalf("score A again: %v", err)
	}
	if corpus.calls != 1 {
		t.Errorf("same scope must not rebuild, got %d builds", corpus.calls)
	}

	// Scope change: synchronous rebuild.
	hits, err := cache.Score(ctx, scopeB, "notes", 10)
	if err != nil {
		t.Fatalf("score B: %v", err)
	}
	if corpus.calls != 2 {
		t.Errorf("scope change must rebuild, got %d builds", corpus.calls)
	}
	for _, h := range hits {
		if h.Chunk.UserID() != "bob" {
			t.Errorf("scope B index served chunk owned by %s", h.Chunk.UserID())
		}
	}
}

func TestCache_InvalidateForcesRebuild(t *testing.T) {
	scope := tenant.New("d1", "alice")
	corpus := &mockCorpus{chunks: map[scopeKey][]chunk.Chunk{
		{deptID: "d1", userID: "alice"}: {makeChunk("d1", "alice", false, "a.txt", "alice notes")},
	}}
	cache := NewCache(corpus, zap.NewNop())

	ctx := context.Background()
	if _, err := cache.Score(ctx, scope, "notes", 10); err != nil {
		t.Fatal(err)
	}
	cache.Invalidate()
	if _, err := cache.Score(ctx, scope, "notes", 10); err != nil {
		t.Fatal(err)
	}
	if corpus.calls != 2 {
		t.Errorf("invalidate must force rebuild, got %d builds", corpus.calls)
	}
}

func TestCache_CorpusErrorPropagates(t *testing.T) {
	corpus := &mockCorpus{err: errors.New("store down")}
	cache := NewCache(corpus, zap.NewNop())

	_, err := cache.Score(context.Background(), tenant.New("d1", "u1"), "query", 10)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCache_ConcurrentReadsOneRebuild(t *testing.T) {
	scope := tenant.New("d1", "alice")
	corpus := &mockCorpus{chunks: map[scopeKey][]chunk.Chunk{
		{deptID: "d1", userID: "alice"}: {makeChunk("d1", "alice", false, "a.txt", "alice notes here")},
	}}
	cache := NewCache(corpus, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Score(context.Background(), scope, "notes", 5); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if corpus.calls != 1 {
		t.Errorf("concurrent same-scope queries built %d times, want 1", corpus.calls)
	}
}

func TestTenantIsolation_PrivateChunksNotIndexed(t *testing.T) {
	// A chunk owned by alice with shared=false must never appear for bob,
	// because the corpus reader is called with bob's scope. This asserts
	// the filter contract at the visibility level.
	aliceChunk := makeChunk("d1", "alice", false, "private.txt", "alice secret notes")
	bobScope := tenant.New("d1", "bob")

	if bobScope.Visible(&aliceChunk) {
		t.Fatal("private chunk owned by alice visible to bob")
	}

	shared := makeChunk("d1", "alice", true, "shared.txt", "department handbook")
	if !bobScope.Visible(&shared) {
		t.Fatal("shared department chunk not visible to bob")
	}

	otherDept := makeChunk("d2", "bob", true, "other.txt", "other department doc")
	if bobScope.Visible(&otherDept) {
		t.Fatal("chunk from another department visible")
	}
}
