package candidate

import "github.com/strugglingman/rag-chatbot/internal/domain/chunk"

// Score is a ranking score with an explicit validity flag. A zero Value with
// Valid=false means the score was never computed for this candidate, which
// is distinct from a computed score of zero.
type Score struct {
	Value float64
	Valid bool
}

// Scored returns a valid score.
func Scored(v float64) Score { return Score{Value: v, Valid: true} }

// Or returns the score value, or zero when the score was never computed.
// Fusion deliberately treats a missing side as zero.
func (s Score) Or() float64 {
	if !s.Valid {
		return 0
	}
	return s.Value
}

// Candidate is a chunk with the ranking scores computed for one query.
type Candidate struct {
	Chunk    chunk.Chunk
	Semantic Score
	Lexical  Score
	Fused    Score
	Rerank   Score
}

// RankScore returns the last-computed ranking score: rerank when present,
// then fused, then semantic.
func (c *Candidate) RankScore() float64 {
	switch {
	case c.Rerank.Valid:
		return c.Rerank.Value
	case c.Fused.Valid:
		return c.Fused.Value
	default:
		return c.Semantic.Or()
	}
}

// Dedup drops near-duplicate candidates, keeping the first occurrence of
// each source+text-prefix key. Safe to re-apply.
func Dedup(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, c := range in {
		key := c.Chunk.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
