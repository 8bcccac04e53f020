// Package lexical implements the in-process BM25 ranker over the
// tenant-visible chunk corpus, with a single cached index per scope.
package lexical

import (
	"math"
	"sort"
	"strings"

	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
)

// BM25 Okapi parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// index is an immutable BM25 index over one tenant scope's corpus.
// Tokenization is whitespace-based and must stay identical between build
// and query.
type index struct {
	chunks    []chunk.Chunk
	docFreq   map[string]int
	termFreqs []map[string]int
	docLens   []int
	avgDocLen float64
}

// buildIndex tokenizes the corpus and precomputes term statistics.
func buildIndex(chunks []chunk.Chunk) *index {
	idx := &index{
		chunks:    chunks,
		docFreq:   make(map[string]int),
		termFreqs: make([]map[string]int, len(chunks)),
		docLens:   make([]int, len(chunks)),
	}

	totalLen := 0
	for i, c := range chunks {
		tokens := tokenize(c.Text())
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)
		for tok := range tf {
			idx.docFreq[tok]++
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}
	return idx
}

// scores computes BM25 scores for every document against the query tokens.
func (idx *index) scores(query string) []float64 {
	out := make([]float64, len(idx.chunks))
	if len(idx.chunks) == 0 {
		return out
	}

	n := float64(len(idx.chunks))
	for _, tok := range tokenize(query) {
		df, ok := idx.docFreq[tok]
		if !ok {
			continue
		}
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for i, tf := range idx.termFreqs {
			f := float64(tf[tok])
			if f == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*float64(idx.docLens[i])/idx.avgDocLen)
			out[i] += idf * f * (bm25K1 + 1) / (f + norm)
		}
	}
	return out
}

// top returns the topN chunks by score, descending. Zero-score documents
// are kept: normalization upstream decides what a zero means.
func (idx *index) top(query string, topN int) ([]chunk.Chunk, []float64) {
	scores := idx.scores(query)

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}

	chunks := make([]chunk.Chunk, len(order))
	vals := make([]float64, len(order))
	for i, j := range order {
		chunks[i] = idx.chunks[j]
		vals[i] = scores[j]
	}
	return chunks, vals
}

func tokenize(text string) []string {
	return strings.Fields(text)
}
