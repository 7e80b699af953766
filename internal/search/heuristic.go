package search

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// Heuristic scoring components. An exact phrase match dominates, early
// matches earn a small position bonus, individual token hits add frequency
// and coverage terms, and the sum is squashed into [0, 1].
const (
	exactPhraseBonus  = 10.0
	positionBonusMax  = 5.0
	positionDecayUnit = 100.0
	tokenHitBonus     = 0.2
	coverageBonus     = 5.0
	scoreNormalizer   = 20.0
)

// HeuristicReranker is the deterministic last-resort tier: term-overlap
// scoring between query and document, no model involved.
type HeuristicReranker struct{}

var _ Reranker = (*HeuristicReranker)(nil)

// NewHeuristicReranker creates a heuristic reranker.
func NewHeuristicReranker() *HeuristicReranker {
	return &HeuristicReranker{}
}

// Rerank scores every document against the query and sorts by score
// descending. The sort is stable, so score ties keep the upstream order.
func (h *HeuristicReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	queryTokens := heuristicTokens(query)

	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = RerankResult{
			Index: i,
			Score: overlapScore(queryTokens, doc),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// overlapScore combines exact-phrase, position, frequency and coverage
// signals into a value in [0, 1].
func overlapScore(queryTokens []string, docText string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	docLower := strings.ToLower(docText)
	var score float64

	phrase := strings.Join(queryTokens, " ")
	if pos := strings.Index(docLower, phrase); pos >= 0 {
		score += exactPhraseBonus
		posBonus := positionBonusMax - float64(pos)/positionDecayUnit
		if posBonus > 0 {
			score += posBonus
		}
	}

	docTokens := heuristicTokens(docText)
	counts := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		counts[t]++
	}

	matched := 0
	for _, qt := range queryTokens {
		if n := counts[qt]; n > 0 {
			matched++
			score += float64(n) * tokenHitBonus
		}
	}
	score += coverageBonus * float64(matched) / float64(len(queryTokens))

	normalized := score / scoreNormalizer
	if normalized > 1.0 {
		normalized = 1.0
	}
	return normalized
}

// heuristicTokens lowercases and splits on anything that is not a letter
// or digit.
func heuristicTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Available always reports true: the heuristic has no dependencies.
func (h *HeuristicReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (h *HeuristicReranker) Close() error { return nil }
