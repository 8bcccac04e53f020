package chat

import (
	"context"

	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/repository/session"
	"github.com/strugglingman/rag-chatbot/internal/usecase/retrieval"
)

// Retriever turns a query into a ranked, scrubbed context set.
type Retriever interface {
	Retrieve(ctx context.Context, scope tenant.Filter, query string, exts []string) (retrieval.Result, error)
}

// Generator streams completion deltas for an assembled message list. It
// returns after the stream ends; a non-nil error means the stream broke
// early, and deltas already delivered stand.
type Generator interface {
	Stream(ctx context.Context, messages []Message, onDelta func(delta string) error) error
}

// History is the bounded per-session conversation log.
type History interface {
	Append(sessionID, role, content string)
	Last(sessionID string, n int) []session.Turn
}
