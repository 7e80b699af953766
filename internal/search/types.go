// Package search implements hybrid retrieval: lexical and semantic result
// sets fused with weighted reciprocal rank fusion, optionally refined by a
// tiered cross-encoder reranker.
package search

import (
	"fmt"

	"github.com/balkanpress/rassegna/internal/store"
)

// Mode selects which retrieval sources a search uses.
type Mode string

const (
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeKeyword, ModeSemantic, ModeHybrid:
		return true
	}
	return false
}

// Weights control the lexical/semantic balance in rank fusion. They must
// sum to 1.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights returns equal weighting.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.5, Semantic: 0.5}
}

// Validate checks that both weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Lexical < 0 || w.Semantic < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	sum := w.Lexical + w.Semantic
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Options configure a single search call. Zero values fall back to the
// engine's configured defaults.
type Options struct {
	Mode  Mode
	Limit int

	// ApplyReranking pipes results through the reranker before the final
	// truncation. Off by default: reranking dominates request latency.
	ApplyReranking bool

	// Weights and RRFConstant override fusion parameters per call.
	Weights     *Weights
	RRFConstant int

	// CandidatePool overrides how many candidates each adapter fetches in
	// hybrid mode before fusion.
	CandidatePool int

	// Filter narrows results by article metadata.
	Filter store.Filter
}

// Candidate is one document surfaced by a retrieval adapter. A candidate
// carries at least one of the two rank pairs; a document found by both
// sources carries both.
type Candidate struct {
	DocumentID string `json:"document_id"`

	// LexicalRank is the 1-based position in the lexical result list,
	// 0 when the lexical adapter did not surface this document.
	LexicalRank  int     `json:"lexical_rank,omitempty"`
	LexicalScore float64 `json:"lexical_score,omitempty"`

	// SemanticRank is the 1-based position in the semantic result list,
	// 0 when the semantic adapter did not surface this document.
	SemanticRank  int     `json:"semantic_rank,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
}

// InBothSources reports whether both adapters surfaced the candidate.
func (c *Candidate) InBothSources() bool {
	return c.LexicalRank > 0 && c.SemanticRank > 0
}

// rankSum is the combined rank used as a fusion tie-breaker. Absent ranks
// count as 0 but candidates in both sources already win the previous
// tie-break, so rankSum only compares within the same presence class.
func (c *Candidate) rankSum() int {
	return c.LexicalRank + c.SemanticRank
}

// FusedResult is one entry of the fused ranking.
type FusedResult struct {
	Candidate

	// FusedScore is the raw weighted reciprocal-rank score. It is not
	// normalized: a single-source candidate's score is exactly its one
	// contributing term.
	FusedScore float64 `json:"fused_score"`

	// FusedRank is the 1-based position in the fused ordering.
	FusedRank int `json:"fused_rank"`

	// SearchType records provenance for display: the mode that produced
	// this ranking.
	SearchType Mode `json:"search_type"`
}

// Result is the orchestrator's output entry: a fused result enriched with
// article text and, when reranking ran, a rerank score and final position.
type Result struct {
	FusedResult

	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Sector  string `json:"sector"`

	// RerankScore is model-native and only comparable within one call.
	// Unset (0) when reranking did not run.
	RerankScore float64 `json:"rerank_score,omitempty"`

	// FinalRank is the 1-based position in the returned list.
	FinalRank int `json:"final_rank"`
}

// Degraded reason codes attached to a Response when an adapter failed and
// the search fell back to the surviving source.
const (
	DegradedLexicalDown  = "lexical_unavailable"
	DegradedSemanticDown = "semantic_unavailable"
)

// Response is the orchestrator's answer to one search call.
type Response struct {
	Results []*Result `json:"results"`
	Mode    Mode      `json:"mode"`

	// Degraded is set when an adapter failed and the response was built
	// from the surviving source alone.
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Reranked reports whether the reranker actually reordered results.
	Reranked bool `json:"reranked"`
}

// snippetLength bounds the content excerpt attached to each result.
const snippetLength = 300

func makeSnippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return string(runes[:snippetLength]) + "…"
}
