// Package retrieval implements the query-to-context pipeline: injection
// gate, semantic and lexical candidate fetch, per-source normalization,
// hybrid fusion, coverage gating, optional reranking, deduplication, and
// context scrubbing.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain"
	"github.com/strugglingman/rag-chatbot/internal/domain/candidate"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/metrics"
	"github.com/strugglingman/rag-chatbot/internal/safety"
)

// No-answer reasons, one per gate checkpoint. These are outcomes, not
// errors: retrieval found nothing trustworthy enough to answer from.
const (
	ReasonNoCandidates = "No relevant documents found"
	ReasonHybridGate   = "No relevant documents found after applying hybrid coverage check."
	ReasonSemanticGate = "No relevant documents found after applying semantic coverage check."
	ReasonRerankGate   = "No relevant documents found after applying rerank coverage check."
)

// Config holds the pipeline thresholds and switches.
type Config struct {
	Candidates  int     // semantic/lexical fetch width
	TopK        int     // final context size
	Alpha       float64 // lexical weight in hybrid fusion
	MinHybrid   float64
	AvgHybrid   float64
	MinSemantic float64
	AvgSemantic float64
	MinRerank   float64
	AvgRerank   float64
	MaxQueryLen int
	UseHybrid   bool
	UseReranker bool
}

// Result is the outcome of one retrieval call. Empty Candidates with a
// NoAnswer reason is the valid "not enough information" outcome.
type Result struct {
	Candidates []candidate.Candidate
	NoAnswer   string
}

// Service is the retrieval orchestrator. All collaborators are injected;
// the service holds no ambient global state.
type Service struct {
	semantic SemanticIndex
	lexical  LexicalIndex
	reranker Reranker
	embed    Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates the retrieval orchestrator.
func New(
	semantic SemanticIndex, lexical LexicalIndex, reranker Reranker,
	embed Embedder, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.MaxQueryLen <= 0 {
		cfg.MaxQueryLen = safety.DefaultMaxLen
	}
	return &Service{
		semantic: semantic,
		lexical:  lexical,
		reranker: reranker,
		embed:    embed,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve turns a query into a ranked, scrubbed context set for the given
// tenant scope. Adversarial queries are rejected before any retrieval work;
// gate failures return a no-answer Result; collaborator failures return
// sentinel-wrapped errors.
func (s *Service) Retrieve(
	ctx context.Context, scope tenant.Filter, query string, exts []string,
) (Result, error) {
	start := time.Now()

	if v := safety.CheckInjection(query, s.cfg.MaxQueryLen); v.Flagged {
		metrics.InjectionRejectionsTotal.WithLabelValues(v.Category.String()).Inc()
		metrics.RetrievalRequestsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return Result{}, domain.NewInputRejected(v.Reason)
	}

	res, err := s.retrieve(ctx, scope, query, exts)

	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.RetrievalRequestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
	case res.NoAnswer != "":
		metrics.RetrievalRequestsTotal.WithLabelValues(metrics.OutcomeNoAnswer).Inc()
	default:
		metrics.RetrievalRequestsTotal.WithLabelValues(metrics.OutcomeAnswered).Inc()
		metrics.RetrievalCandidates.Observe(float64(len(res.Candidates)))
	}

	return res, err
}

func (s *Service) retrieve(
	ctx context.Context, scope tenant.Filter, query string, exts []string,
) (Result, error) {
	fetchK := s.cfg.Candidates
	if s.cfg.TopK > fetchK {
		fetchK = s.cfg.TopK
	}

	vector, err := s.embed.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("vectorize query: %w", err)
	}

	hits, err := s.semantic.Query(ctx, vector, fetchK, scope, exts)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}
	if len(hits) == 0 {
		return Result{NoAnswer: ReasonNoCandidates}, nil
	}

	// Cosine distance to similarity, then normalize within the semantic
	// top-N before any fusion.
	simsRaw := make([]float64, len(hits))
	for i, h := range hits {
		simsRaw[i] = max(0, 1-h.Distance)
	}
	simsNorm := normalize(simsRaw)

	semCands := make([]candidate.Candidate, len(hits))
	for i, h := range hits {
		semCands[i] = candidate.Candidate{
			Chunk:    h.Chunk,
			Semantic: candidate.Scored(simsNorm[i]),
		}
	}
	semCands = candidate.Dedup(semCands)

	var cands []candidate.Candidate
	if s.cfg.UseHybrid {
		cands, err = s.hybrid(ctx, scope, query, fetchK, semCands)
		if err != nil {
			return Result{}, err
		}
		if cands == nil {
			return Result{NoAnswer: ReasonHybridGate}, nil
		}
	} else {
		// Semantic-only gate runs on raw similarities: normalized scores
		// always peak at 1.0, which would make the minimum threshold moot.
		if !coverageOK(simsRaw, min(len(semCands), s.cfg.TopK), s.cfg.MinSemantic, s.cfg.AvgSemantic) {
			return Result{NoAnswer: ReasonSemanticGate}, nil
		}
		cands = semCands
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].Semantic.Or() > cands[j].Semantic.Or()
		})
	}

	if s.cfg.UseReranker {
		cands, err = s.rerank(ctx, query, cands)
		if err != nil {
			return Result{}, err
		}
		if cands == nil {
			return Result{NoAnswer: ReasonRerankGate}, nil
		}
	}

	// Dedup is safe to re-apply; gating and reranking never introduce
	// duplicates but truncation must count unique chunks only.
	cands = candidate.Dedup(cands)
	if len(cands) > s.cfg.TopK {
		cands = cands[:s.cfg.TopK]
	}

	// Mandatory scrub: retrieved text is attacker-influenced.
	for i := range cands {
		cands[i].Chunk = cands[i].Chunk.WithText(safety.ScrubContext(cands[i].Chunk.Text()))
	}

	return Result{Candidates: cands}, nil
}

// hybrid fetches lexical candidates, fuses both sides, and applies the
// hybrid coverage gate. A nil, error-free return means the gate failed.
func (s *Service) hybrid(
	ctx context.Context, scope tenant.Filter, query string, fetchK int,
	semCands []candidate.Candidate,
) ([]candidate.Candidate, error) {
	lexHits, err := s.lexical.Score(ctx, scope, query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("lexical score: %w", err)
	}

	// Normalize BM25 scores within the lexical top-N before the union.
	raw := make([]float64, len(lexHits))
	for i, h := range lexHits {
		raw[i] = h.Score
	}
	norm := normalize(raw)

	lexCands := make([]candidate.Candidate, len(lexHits))
	for i, h := range lexHits {
		lexCands[i] = candidate.Candidate{
			Chunk:   h.Chunk,
			Lexical: candidate.Scored(norm[i]),
		}
	}
	lexCands = candidate.Dedup(lexCands)

	fused := fuse(semCands, lexCands, s.cfg.Alpha)

	scores := make([]float64, len(fused))
	for i := range fused {
		scores[i] = fused[i].Fused.Or()
	}
	if !coverageOK(scores, min(len(fused), s.cfg.TopK*2), s.cfg.MinHybrid, s.cfg.AvgHybrid) {
		return nil, nil
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Fused.Or() > fused[j].Fused.Or()
	})
	return fused, nil
}

// rerank scores a bounded shortlist with the cross-encoder and applies the
// rerank coverage gate. Rerank scores replace earlier ranking scores.
// A nil, error-free return means the gate failed.
func (s *Service) rerank(
	ctx context.Context, query string, cands []candidate.Candidate,
) ([]candidate.Candidate, error) {
	count := min(len(cands), max(3*s.cfg.TopK, 12))
	shortlist := cands[:count]

	texts := make([]string, len(shortlist))
	for i := range shortlist {
		texts[i] = shortlist[i].Chunk.Text()
	}

	scores, err := s.reranker.Rerank(ctx, query, texts)
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}
	if len(scores) != len(shortlist) {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: got %d scores for %d candidates",
			domain.ErrRerankUnavailable, len(scores), len(shortlist))
	}
	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()

	if !coverageOK(scores, min(len(scores), s.cfg.TopK), s.cfg.MinRerank, s.cfg.AvgRerank) {
		return nil, nil
	}

	out := make([]candidate.Candidate, len(shortlist))
	for i := range shortlist {
		out[i] = shortlist[i]
		out[i].Rerank = candidate.Scored(scores[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rerank.Or() > out[j].Rerank.Or()
	})
	return out, nil
}
