package retrieval

import "github.com/strugglingman/rag-chatbot/internal/domain/candidate"

// normRangeEps is the score range below which min-max scaling would only
// polarize noise; such distributions collapse to 0.5 instead.
const normRangeEps = 1e-9

// normalize min-max scales scores into [0,1], preserving length and order.
// A near-constant distribution maps every score to 0.5.
func normalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	mn, mx := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < mn {
			mn = s
		}
		if s > mx {
			mx = s
		}
	}

	out := make([]float64, len(scores))
	if mx-mn < normRangeEps {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - mn) / (mx - mn)
	}
	return out
}

// fuse merges lexical and semantic candidates by chunk identity and computes
// the weighted hybrid score. Both sides must already be normalized within
// their own top-N; a chunk seen on only one side keeps zero for the other.
// The result is unsorted; ordering is the orchestrator's job after gating.
func fuse(semantic, lexical []candidate.Candidate, alpha float64) []candidate.Candidate {
	merged := make(map[string]*candidate.Candidate, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	for i := range lexical {
		c := lexical[i]
		merged[c.Chunk.ID()] = &c
		order = append(order, c.Chunk.ID())
	}

	for i := range semantic {
		c := semantic[i]
		if existing, ok := merged[c.Chunk.ID()]; ok {
			existing.Semantic = c.Semantic
			continue
		}
		merged[c.Chunk.ID()] = &c
		order = append(order, c.Chunk.ID())
	}

	out := make([]candidate.Candidate, 0, len(merged))
	for _, id := range order {
		c := merged[id]
		c.Fused = candidate.Scored(alpha*c.Lexical.Or() + (1-alpha)*c.Semantic.Or())
		out = append(out, *c)
	}
	return out
}
