package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (Azure AI Search, OpenSearch).
const DefaultRRFConstant = 60

// Fusion merges lexical and semantic rankings with weighted reciprocal
// rank fusion:
//
//	fused_score(d) = w_lex/(k + lex_rank) + w_sem/(k + sem_rank)
//
// where a rank absent from one source contributes 0 to the sum.
type Fusion struct {
	K int
}

// NewFusion creates a fusion engine with the given smoothing constant.
// Non-positive k falls back to the default.
func NewFusion(k int) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fusion{K: k}
}

// Fuse merges the two rankings into one list deduplicated by document ID,
// sorted by fused score.
//
// Tie-breaks, in order: candidates in both sources before single-source
// ones, then lower combined rank sum, then document ID ascending.
func (f *Fusion) Fuse(lexical, semantic []*Candidate, weights Weights) []*FusedResult {
	if len(lexical) == 0 && len(semantic) == 0 {
		return []*FusedResult{}
	}

	merged := make(map[string]*FusedResult, len(lexical)+len(semantic))

	for rank, c := range lexical {
		r := f.getOrCreate(merged, c.DocumentID)
		r.LexicalRank = rank + 1
		r.LexicalScore = c.LexicalScore
		r.FusedScore += weights.Lexical / float64(f.K+rank+1)
	}

	for rank, c := range semantic {
		r := f.getOrCreate(merged, c.DocumentID)
		r.SemanticRank = rank + 1
		r.SemanticScore = c.SemanticScore
		r.FusedScore += weights.Semantic / float64(f.K+rank+1)
	}

	results := make([]*FusedResult, 0, len(merged))
	for _, r := range merged {
		r.SearchType = ModeHybrid
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.less(results[i], results[j])
	})

	for i, r := range results {
		r.FusedRank = i + 1
	}

	return results
}

func (f *Fusion) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{Candidate: Candidate{DocumentID: id}}
	m[id] = r
	return r
}

// less reports whether a ranks before b.
func (f *Fusion) less(a, b *FusedResult) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	// Cross-source agreement wins on equal scores.
	if a.InBothSources() != b.InBothSources() {
		return a.InBothSources()
	}
	if a.rankSum() != b.rankSum() {
		return a.rankSum() < b.rankSum()
	}
	return a.DocumentID < b.DocumentID
}

// SingleSource wraps one adapter's ranking as fused results so keyword and
// semantic modes share the downstream rerank/enrich path. The fused score
// is the source's reciprocal-rank term with full weight.
func (f *Fusion) SingleSource(candidates []*Candidate, mode Mode) []*FusedResult {
	results := make([]*FusedResult, 0, len(candidates))
	for i, c := range candidates {
		results = append(results, &FusedResult{
			Candidate:  *c,
			FusedScore: 1.0 / float64(f.K+i+1),
			FusedRank:  i + 1,
			SearchType: mode,
		})
	}
	return results
}
