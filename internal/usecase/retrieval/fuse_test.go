package retrieval

import (
	"math"
	"testing"

	"github.com/strugglingman/rag-chatbot/internal/domain/candidate"
	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
)

func TestNormalize_Basic(t *testing.T) {
	got := normalize([]float64{2, 4, 6})
	want := []float64{0, 0.5, 1}
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalize_PreservesLengthAndRange(t *testing.T) {
	inputs := [][]float64{
		{1},
		{-5, 0, 5},
		{0.1, 0.2, 0.30000001, 100},
	}
	for _, in := range inputs {
		out := normalize(in)
		if len(out) != len(in) {
			t.Fatalf("length %d, want %d", len(out), len(in))
		}
		for i, v := range out {
			if v < 0 || v > 1 {
				t.Errorf("out[%d] = %v outside [0,1] for input %v", i, v, in)
			}
		}
	}
}

func TestNormalize_ConstantInput(t *testing.T) {
	for _, in := range [][]float64{{3, 3, 3}, {0, 0}, {7}} {
		out := normalize(in)
		for i, v := range out {
			if v != 0.5 {
				t.Errorf("constant input %v: out[%d] = %v, want 0.5", in, i, v)
			}
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	if out := normalize(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %v", out)
	}
}

func makeCand(dept, source, text string) candidate.Candidate {
	c := chunk.New(chunk.Meta{DeptID: dept, Source: source, Shared: true}, text)
	return candidate.Candidate{Chunk: c}
}

func withSemantic(c candidate.Candidate, s float64) candidate.Candidate {
	c.Semantic = candidate.Scored(s)
	return c
}

func withLexical(c candidate.Candidate, s float64) candidate.Candidate {
	c.Lexical = candidate.Scored(s)
	return c
}

func TestFuse_OverlapKeepsBothScores(t *testing.T) {
	shared := makeCand("d1", "a.pdf", "alpha text")
	sem := []candidate.Candidate{withSemantic(shared, 0.8)}
	lex := []candidate.Candidate{withLexical(shared, 0.6)}

	fused := fuse(sem, lex, 0.5)
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused candidate, got %d", len(fused))
	}
	c := fused[0]
	if !c.Semantic.Valid || !c.Lexical.Valid {
		t.Error("overlapping entry must keep both scores")
	}
	if got := c.Fused.Or(); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("fused = %v, want 0.7", got)
	}
}

func TestFuse_SingleSideKeepsZeroForOther(t *testing.T) {
	semOnly := withSemantic(makeCand("d1", "a.pdf", "semantic only"), 1.0)
	lexOnly := withLexical(makeCand("d1", "b.pdf", "lexical only"), 1.0)

	fused := fuse(
		[]candidate.Candidate{semOnly},
		[]candidate.Candidate{lexOnly},
		0.5,
	)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused candidates, got %d", len(fused))
	}

	for _, c := range fused {
		if got := c.Fused.Or(); math.Abs(got-0.5) > 1e-12 {
			t.Errorf("single-side candidate fused = %v, want 0.5", got)
		}
	}
}

func TestFuse_AlphaWeighting(t *testing.T) {
	shared := makeCand("d1", "a.pdf", "alpha text")
	sem := []candidate.Candidate{withSemantic(shared, 1.0)}
	lex := []candidate.Candidate{withLexical(shared, 0.0)}

	// alpha is the lexical weight: alpha=1 means lexical only.
	fused := fuse(sem, lex, 1.0)
	if got := fused[0].Fused.Or(); got != 0 {
		t.Errorf("alpha=1 fused = %v, want 0", got)
	}

	fused = fuse(sem, lex, 0.0)
	if got := fused[0].Fused.Or(); got != 1 {
		t.Errorf("alpha=0 fused = %v, want 1", got)
	}
}

func TestFuse_CommutativeCoverage(t *testing.T) {
	// A chunk present in both sides appears exactly once, regardless of
	// which side contributed it first.
	both := makeCand("d1", "a.pdf", "appears in both")
	sem := []candidate.Candidate{
		withSemantic(both, 0.9),
		withSemantic(makeCand("d1", "b.pdf", "sem only"), 0.4),
	}
	lex := []candidate.Candidate{
		withLexical(both, 0.7),
		withLexical(makeCand("d1", "c.pdf", "lex only"), 0.2),
	}

	fused := fuse(sem, lex, 0.5)
	count := 0
	for _, c := range fused {
		if c.Chunk.ID() == both.Chunk.ID() {
			count++
			if !c.Semantic.Valid || !c.Lexical.Valid {
				t.Error("overlap entry missing a side's score")
			}
		}
	}
	if count != 1 {
		t.Errorf("overlap chunk appears %d times, want 1", count)
	}
	if len(fused) != 3 {
		t.Errorf("fused set size = %d, want 3", len(fused))
	}
}
