package chat

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain/candidate"
	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/repository/session"
	"github.com/strugglingman/rag-chatbot/internal/usecase/retrieval"
)

type mockRetriever struct {
	fn func(ctx context.Context, scope tenant.Filter, query string, exts []string) (retrieval.Result, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, scope tenant.Filter, query string, exts []string) (retrieval.Result, error) {
	return m.fn(ctx, scope, query, exts)
}

type mockGenerator struct {
	fn func(ctx context.Context, msgs []Message, onDelta func(delta string) error) error

	gotMessages []Message
}

func (m *mockGenerator) Stream(ctx context.Context, msgs []Message, onDelta func(delta string) error) error {
	m.gotMessages = msgs
	return m.fn(ctx, msgs, onDelta)
}

// streamOf yields the given deltas in order and ends cleanly.
func streamOf(deltas ...string) *mockGenerator {
	g := &mockGenerator{}
	g.fn = func(_ context.Context, _ []Message, onDelta func(string) error) error {
		for _, d := range deltas {
			if err := onDelta(d); err != nil {
				return err
			}
		}
		return nil
	}
	return g
}

func retrieverOf(cands ...candidate.Candidate) *mockRetriever {
	return &mockRetriever{fn: func(context.Context, tenant.Filter, string, []string) (retrieval.Result, error) {
		return retrieval.Result{Candidates: cands}, nil
	}}
}

func newTestService(t *testing.T, r Retriever, g Generator) (*Service, *session.Store) {
	t.Helper()
	hist := session.New(3)
	return New(r, g, hist, Config{MaxHistory: 3}, zap.NewNop()), hist
}

func testScope() tenant.Filter { return tenant.New("eng", "u1") }

func testCandidate(source, text, tags string, page int) candidate.Candidate {
	c := chunk.New(chunk.Meta{
		Source: source,
		Page:   page,
		Ext:    strings.TrimPrefix(strings.ToLower(source[strings.LastIndex(source, "."):]), "."),
		Tags:   tags,
		DeptID: "eng",
		UserID: "u1",
		Shared: true,
		FileID: "file-1",
	}, text)
	return candidate.Candidate{
		Chunk:    c,
		Semantic: candidate.Scored(0.9),
		Fused:    candidate.Scored(0.8),
	}
}

func userTurn(content string) Message { return Message{Role: RoleUser, Content: content} }
