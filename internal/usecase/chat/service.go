// Package chat runs one conversational exchange over the retrieval
// pipeline: prompt assembly from the retrieved context, bounded sanitized
// session history, generation streaming with guaranteed history
// finalization, and a machine-readable context trailer.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain"
	"github.com/strugglingman/rag-chatbot/internal/domain/candidate"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/metrics"
	"github.com/strugglingman/rag-chatbot/internal/safety"
)

// NoAnswerText is streamed when retrieval produced no usable context.
const NoAnswerText = "Based on the provided documents, I don't have enough information to answer your question."

// contextFramePrefix introduces the JSON trailer appended after the
// streamed answer text.
const contextFramePrefix = "\n__CONTEXT__:"

// historyMaxLen caps each stored history turn re-entering the prompt.
const historyMaxLen = 5000

// Message roles accepted in prompts and stored history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prompt entry.
type Message struct {
	Role    string
	Content string
}

// Config holds the chat-level knobs. Generation model parameters live on
// the Generator implementation.
type Config struct {
	MaxHistory int
}

// Request is one chat exchange: the caller's scope, the conversation so
// far (the last entry must be the new user message), and optional
// extension and tag filters narrowing retrieval.
type Request struct {
	SessionID string
	Scope     tenant.Filter
	Messages  []Message
	Exts      []string
	Tags      []string
}

// Service orchestrates retrieval, prompt assembly, and generation.
type Service struct {
	retriever Retriever
	generate  Generator
	history   History
	cfg       Config
	logger    *zap.Logger
}

// New creates the chat service.
func New(retriever Retriever, generate Generator, history History, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 3
	}
	return &Service{
		retriever: retriever,
		generate:  generate,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}
}

// Chat runs one exchange and streams the answer as plain text to out.
// Validation and retrieval failures are returned before any byte is
// written; once streaming starts, generation failures are surfaced inline
// with an [upstream_error] marker and Chat returns nil. Session history is
// finalized on every path that reaches retrieval: the user turn always
// lands, the assistant turn only when any answer text was produced.
func (s *Service) Chat(ctx context.Context, req Request, out io.Writer) error {
	if req.Scope.DeptID() == "" || req.Scope.UserID() == "" {
		return domain.ErrMissingIdentity
	}

	latest, err := latestUserMessage(req.Messages)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(latest.Content)

	res, err := s.retriever.Retrieve(ctx, req.Scope, query, req.Exts)
	if err != nil {
		return err
	}

	if res.NoAnswer != "" || len(res.Candidates) == 0 {
		s.history.Append(req.SessionID, RoleUser, latest.Content)
		s.history.Append(req.SessionID, RoleAssistant, NoAnswerText)
		_, werr := io.WriteString(out, NoAnswerText)
		return werr
	}

	cands := filterByTags(res.Candidates, req.Tags)

	system, user := buildPrompt(query, cands)
	msgs := s.assembleMessages(req.SessionID, system, user)

	var answer strings.Builder
	streamErr := s.generate.Stream(ctx, msgs, func(delta string) error {
		answer.WriteString(delta)
		_, werr := io.WriteString(out, delta)
		return werr
	})
	if streamErr != nil {
		metrics.GenerationRequestsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("generation stream failed", zap.Error(streamErr))
		fmt.Fprintf(out, "\n[upstream_error] %v", streamErr)
	} else {
		metrics.GenerationRequestsTotal.WithLabelValues("success").Inc()
	}

	s.history.Append(req.SessionID, RoleUser, latest.Content)
	raw := answer.String()
	if raw != "" {
		s.history.Append(req.SessionID, RoleAssistant, raw)
	}

	s.writeContextFrame(out, cands, raw)
	return nil
}

// latestUserMessage extracts the new user message: the conversation must
// end with a non-empty user turn.
func latestUserMessage(msgs []Message) (Message, error) {
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != RoleUser {
		return Message{}, domain.ErrNoUserMessage
	}
	m := msgs[len(msgs)-1]
	if strings.TrimSpace(m.Content) == "" {
		return Message{}, domain.ErrEmptyMessage
	}
	return m, nil
}

// filterByTags keeps candidates carrying at least one requested tag. An
// empty filter keeps everything.
func filterByTags(cands []candidate.Candidate, tags []string) []candidate.Candidate {
	if len(tags) == 0 {
		return cands
	}
	out := make([]candidate.Candidate, 0, len(cands))
	for i := range cands {
		have := strings.Split(strings.ToLower(cands[i].Chunk.Tags()), ",")
		if containsAny(have, tags) {
			out = append(out, cands[i])
		}
	}
	return out
}

func containsAny(have, want []string) bool {
	for _, w := range want {
		w = strings.ToLower(w)
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// assembleMessages builds the prompt: system, then the sanitized recent
// history, then the user prompt. Entries with empty content or an unknown
// role are dropped.
func (s *Service) assembleMessages(sessionID, system, user string) []Message {
	turns := s.history.Last(sessionID, s.cfg.MaxHistory)

	msgs := make([]Message, 0, len(turns)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role, Content: safety.SanitizeText(t.Content, historyMaxLen)})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: user})

	out := msgs[:0]
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
			out = append(out, m)
		}
	}
	return out
}

// contextItem mirrors one retrieved chunk in the trailing frame.
type contextItem struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Page    int     `json:"page"`
	Ext     string  `json:"ext"`
	Tags    string  `json:"tags"`
	Chunk   string  `json:"chunk"`
	SemSim  float64 `json:"sem_sim"`
	BM25    float64 `json:"bm25"`
	Hybrid  float64 `json:"hybrid"`
	Rerank  float64 `json:"rerank"`
}

// contextFrame is the trailer appended after the streamed answer.
// CitedAnswer is the accumulated answer with uncited sentences removed;
// text already streamed to the client is never rewritten after the fact.
type contextFrame struct {
	Contexts    []contextItem `json:"contexts"`
	CitedAnswer string        `json:"cited_answer"`
	AllCited    bool          `json:"all_cited"`
}

func (s *Service) writeContextFrame(out io.Writer, cands []candidate.Candidate, rawAnswer string) {
	valid := make(map[int]struct{}, len(cands))
	items := make([]contextItem, len(cands))
	for i := range cands {
		c := &cands[i]
		valid[i+1] = struct{}{}
		items[i] = contextItem{
			ChunkID: c.Chunk.ID(),
			Source:  c.Chunk.Source(),
			Page:    c.Chunk.Page(),
			Ext:     c.Chunk.Ext(),
			Tags:    c.Chunk.Tags(),
			Chunk:   c.Chunk.Text(),
			SemSim:  c.Semantic.Or(),
			BM25:    c.Lexical.Or(),
			Hybrid:  c.Fused.Or(),
			Rerank:  c.Rerank.Or(),
		}
	}

	cited, all := safety.EnforceCitations(rawAnswer, valid)
	frame := contextFrame{Contexts: items, CitedAnswer: cited, AllCited: all}

	buf, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("marshal context frame", zap.Error(err))
		return
	}
	if _, err := io.WriteString(out, contextFramePrefix+string(buf)); err != nil {
		s.logger.Debug("write context frame", zap.Error(err))
	}
}
