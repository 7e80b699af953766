package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Article status values follow the editorial workflow: articles arrive as
// pending and are later approved, discarded, or sent in a review round.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusDiscarded = "discarded"
	StatusSent      = "sent"
)

// Article is the canonical news article record. Titles and content carry the
// original Serbian text plus English and Italian translations; any of the
// translated fields may be empty.
type Article struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Sector      string    `json:"sector"`
	Link        string    `json:"link,omitempty"`
	TitleRS     string    `json:"title_rs"`
	TitleEN     string    `json:"title_en,omitempty"`
	TitleIT     string    `json:"title_it,omitempty"`
	ContentRS   string    `json:"content_rs"`
	ContentEN   string    `json:"content_en,omitempty"`
	ContentIT   string    `json:"content_it,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Title returns the best available title, preferring Italian, then English,
// then the Serbian original.
func (a *Article) Title() string {
	if a.TitleIT != "" {
		return a.TitleIT
	}
	if a.TitleEN != "" {
		return a.TitleEN
	}
	return a.TitleRS
}

// Content returns the best available body text with the same language
// preference as Title.
func (a *Article) Content() string {
	if a.ContentIT != "" {
		return a.ContentIT
	}
	if a.ContentEN != "" {
		return a.ContentEN
	}
	return a.ContentRS
}

// SearchText returns the text indexed for lexical and semantic retrieval:
// title and content joined with a newline.
func (a *Article) SearchText() string {
	return a.Title() + "\n" + a.Content()
}

// ValidStatus reports whether s is a known workflow status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusDiscarded, StatusSent:
		return true
	}
	return false
}

// Filter narrows search and listing operations to articles matching all of
// the set fields. Empty fields match everything.
type Filter struct {
	Sector string
	Source string
	Status string
}

// Empty reports whether the filter matches all articles.
func (f Filter) Empty() bool {
	return f.Sector == "" && f.Source == "" && f.Status == ""
}

// Matches reports whether the article passes the filter.
func (f Filter) Matches(a *Article) bool {
	if f.Sector != "" && !strings.EqualFold(f.Sector, a.Sector) {
		return false
	}
	if f.Source != "" && !strings.EqualFold(f.Source, a.Source) {
		return false
	}
	if f.Status != "" && f.Status != a.Status {
		return false
	}
	return true
}

// LexicalResult is a single hit from the lexical index, ordered by BM25
// relevance.
type LexicalResult struct {
	ID    string
	Score float64
}

// VectorResult is a single hit from the vector store, ordered by similarity.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// LexicalIndex is the full-text side of hybrid retrieval.
type LexicalIndex interface {
	// Index adds or replaces articles. Existing IDs are updated.
	Index(ctx context.Context, articles []*Article) error

	// Search returns up to limit results ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)

	// Delete removes articles by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed articles.
	Count() (int, error)

	Close() error
}

// VectorStore is the semantic side of hybrid retrieval.
type VectorStore interface {
	// Add inserts embedding vectors keyed by article ID. Existing IDs are
	// replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search returns the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored vectors.
	Count() int

	// Save persists the store to path.
	Save(path string) error

	// Load restores the store from path.
	Load(path string) error

	Close() error
}

// ArticleStore persists article metadata in SQLite.
type ArticleStore interface {
	// SaveArticles inserts or updates articles in one transaction.
	SaveArticles(ctx context.Context, articles []*Article) error

	// GetArticle fetches a single article. Returns ErrNotFound when absent.
	GetArticle(ctx context.Context, id string) (*Article, error)

	// GetArticles batch-fetches articles by ID, preserving input order.
	// Missing IDs are skipped.
	GetArticles(ctx context.Context, ids []string) ([]*Article, error)

	// ListArticles returns articles matching the filter, newest first.
	ListArticles(ctx context.Context, filter Filter, limit int) ([]*Article, error)

	// SetStatus updates the workflow status of an article.
	SetStatus(ctx context.Context, id, status string) error

	// DeleteArticles removes articles by ID.
	DeleteArticles(ctx context.Context, ids []string) error

	// Count returns the number of stored articles.
	Count(ctx context.Context) (int, error)

	Close() error
}

// ErrNotFound is returned when a requested article does not exist.
var ErrNotFound = fmt.Errorf("article not found")

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int    // embedding dimensions, required
	Metric     string // "cos" (default) or "l2"
	M          int    // HNSW connectivity, 0 = default
	EfSearch   int    // HNSW search expansion, 0 = default
}

// ErrDimensionMismatch indicates a vector with the wrong dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
