package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexList(ids ...string) []*Candidate {
	out := make([]*Candidate, len(ids))
	for i, id := range ids {
		out[i] = &Candidate{DocumentID: id, LexicalRank: i + 1, LexicalScore: float64(len(ids) - i)}
	}
	return out
}

func semList(ids ...string) []*Candidate {
	out := make([]*Candidate, len(ids))
	for i, id := range ids {
		out[i] = &Candidate{DocumentID: id, SemanticRank: i + 1, SemanticScore: 1.0 - float64(i)*0.1}
	}
	return out
}

func fusedIDs(results []*FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocumentID
	}
	return ids
}

func TestFuseReferenceScenario(t *testing.T) {
	// k=1, equal weights, lexical [A,B,C] vs semantic [B,C,D]:
	// B = 0.5/3 + 0.5/2 = 0.4167, C = 0.5/4 + 0.5/3 = 0.2917,
	// A = 0.5/2 = 0.25, D = 0.5/4 = 0.125.
	f := NewFusion(1)
	results := f.Fuse(lexList("A", "B", "C"), semList("B", "C", "D"), DefaultWeights())

	require.Len(t, results, 4)
	assert.Equal(t, []string{"B", "C", "A", "D"}, fusedIDs(results))

	assert.InDelta(t, 0.41667, results[0].FusedScore, 1e-4)
	assert.InDelta(t, 0.29167, results[1].FusedScore, 1e-4)
	assert.InDelta(t, 0.25, results[2].FusedScore, 1e-4)
	assert.InDelta(t, 0.125, results[3].FusedScore, 1e-4)

	b := results[0]
	assert.True(t, b.InBothSources())
	assert.Equal(t, 2, b.LexicalRank)
	assert.Equal(t, 1, b.SemanticRank)
	assert.Equal(t, 1, b.FusedRank)
	assert.Equal(t, ModeHybrid, b.SearchType)

	a := results[2]
	assert.Equal(t, 1, a.LexicalRank)
	assert.Zero(t, a.SemanticRank)
}

func TestFuseDeterministic(t *testing.T) {
	f := NewFusion(60)
	lex := lexList("a3", "a1", "a7", "a2")
	sem := semList("a5", "a2", "a9", "a1")

	first := fusedIDs(f.Fuse(lex, sem, DefaultWeights()))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, fusedIDs(f.Fuse(lex, sem, DefaultWeights())),
			"run %d differed", i)
	}
}

func TestFuseCompleteness(t *testing.T) {
	f := NewFusion(60)
	lex := lexList("a1", "a2", "a3", "a4")
	sem := semList("a3", "a4", "a5", "a6")

	results := f.Fuse(lex, sem, DefaultWeights())

	seen := make(map[string]int)
	for _, r := range results {
		seen[r.DocumentID]++
	}
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		assert.Equal(t, 1, seen[id], "document %s", id)
	}
	assert.Len(t, results, 6)
}

func TestFuseSingleSourceDegradation(t *testing.T) {
	f := NewFusion(60)

	// Empty semantic input: order must match the lexical list exactly and
	// each score is the lone lexical term.
	results := f.Fuse(lexList("a1", "a2", "a3"), nil, DefaultWeights())
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a1", "a2", "a3"}, fusedIDs(results))
	for i, r := range results {
		assert.InDelta(t, 0.5/float64(60+i+1), r.FusedScore, 1e-12)
		assert.Zero(t, r.SemanticRank)
	}

	// And the mirror case.
	results = f.Fuse(nil, semList("b1", "b2"), DefaultWeights())
	require.Len(t, results, 2)
	assert.Equal(t, []string{"b1", "b2"}, fusedIDs(results))
}

func TestFuseBothEmpty(t *testing.T) {
	f := NewFusion(60)
	results := f.Fuse(nil, nil, DefaultWeights())
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuseTieBreaks(t *testing.T) {
	f := NewFusion(60)

	// Same fused score by construction: x only lexical rank 1, y only
	// semantic rank 1. Neither is in both sources and rank sums are equal,
	// so the document ID decides.
	results := f.Fuse(lexList("y"), semList("x"), DefaultWeights())
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].DocumentID)

	// A document in both sources outranks a single-source one on an equal
	// score: z in both at ranks (2,2) vs w lexical-only. Construct with
	// unequal weights so scores match exactly.
	// z = 0.5/(60+2) + 0.5/(60+2); w = 1 * lexical term. Use weights where
	// the comparison goes through InBothSources by giving identical sums.
	lex := []*Candidate{
		{DocumentID: "w", LexicalRank: 1},
		{DocumentID: "z", LexicalRank: 2},
	}
	sem := []*Candidate{
		{DocumentID: "q", SemanticRank: 1},
		{DocumentID: "z", SemanticRank: 2},
	}
	both := f.Fuse(lex, sem, DefaultWeights())
	// z gets two contributions and must outrank both single-source docs.
	assert.Equal(t, "z", both[0].DocumentID)
}

func TestFuseWeightsShiftRanking(t *testing.T) {
	f := NewFusion(60)
	lex := lexList("lexTop", "shared")
	sem := semList("semTop", "shared")

	lexHeavy := f.Fuse(lex, sem, Weights{Lexical: 0.9, Semantic: 0.1})
	semHeavy := f.Fuse(lex, sem, Weights{Lexical: 0.1, Semantic: 0.9})

	assert.Equal(t, "shared", lexHeavy[0].DocumentID)
	assert.Equal(t, "shared", semHeavy[0].DocumentID)
	// The single-source leaders swap with the weights.
	assert.Equal(t, "lexTop", lexHeavy[1].DocumentID)
	assert.Equal(t, "semTop", semHeavy[1].DocumentID)
}

func TestSingleSourceWrapping(t *testing.T) {
	f := NewFusion(60)
	results := f.SingleSource(lexList("a1", "a2"), ModeKeyword)

	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, i+1, r.FusedRank)
		assert.Equal(t, ModeKeyword, r.SearchType)
		assert.InDelta(t, 1.0/float64(60+i+1), r.FusedScore, 1e-12)
	}
}

func TestNewFusionDefaultK(t *testing.T) {
	assert.Equal(t, DefaultRRFConstant, NewFusion(0).K)
	assert.Equal(t, DefaultRRFConstant, NewFusion(-5).K)
	assert.Equal(t, 10, NewFusion(10).K)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		weights Weights
		wantErr bool
	}{
		{Weights{0.5, 0.5}, false},
		{Weights{0.7, 0.3}, false},
		{Weights{1.0, 0.0}, false},
		{Weights{0.6, 0.6}, true},
		{Weights{-0.2, 1.2}, true},
		{Weights{0.2, 0.2}, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1f/%.1f", tt.weights.Lexical, tt.weights.Semantic), func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
