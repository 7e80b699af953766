package search

import (
	"context"
	"fmt"

	"github.com/balkanpress/rassegna/internal/embed"
	"github.com/balkanpress/rassegna/internal/store"
)

// LexicalSource produces keyword-ranked candidates. Engine specifics
// (index technology, analyzer, field weighting) stay behind this boundary.
type LexicalSource interface {
	Search(ctx context.Context, query string, limit int) ([]*Candidate, error)
}

// SemanticSource produces similarity-ranked candidates; embedding the
// query is its responsibility.
type SemanticSource interface {
	Search(ctx context.Context, query string, limit int) ([]*Candidate, error)
}

// LexicalAdapter bridges the BM25 index to the orchestrator.
type LexicalAdapter struct {
	index store.LexicalIndex
}

var _ LexicalSource = (*LexicalAdapter)(nil)

// NewLexicalAdapter wraps a lexical index.
func NewLexicalAdapter(index store.LexicalIndex) *LexicalAdapter {
	return &LexicalAdapter{index: index}
}

// Search returns candidates ordered by BM25 relevance with 1-based ranks.
func (a *LexicalAdapter) Search(ctx context.Context, query string, limit int) ([]*Candidate, error) {
	hits, err := a.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	candidates := make([]*Candidate, len(hits))
	for i, hit := range hits {
		candidates[i] = &Candidate{
			DocumentID:   hit.ID,
			LexicalRank:  i + 1,
			LexicalScore: hit.Score,
		}
	}
	return candidates, nil
}

// SemanticAdapter embeds the query and searches the vector store.
type SemanticAdapter struct {
	vectors  store.VectorStore
	embedder embed.Embedder
}

var _ SemanticSource = (*SemanticAdapter)(nil)

// NewSemanticAdapter wraps a vector store and its embedder.
func NewSemanticAdapter(vectors store.VectorStore, embedder embed.Embedder) *SemanticAdapter {
	return &SemanticAdapter{vectors: vectors, embedder: embedder}
}

// Search returns candidates ordered by cosine similarity with 1-based
// ranks.
func (a *SemanticAdapter) Search(ctx context.Context, query string, limit int) ([]*Candidate, error) {
	embedding, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := a.vectors.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]*Candidate, len(hits))
	for i, hit := range hits {
		candidates[i] = &Candidate{
			DocumentID:    hit.ID,
			SemanticRank:  i + 1,
			SemanticScore: float64(hit.Score),
		}
	}
	return candidates, nil
}
