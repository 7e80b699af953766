package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	// titleBoost weights title matches over content matches during scoring.
	titleBoost = 2.0

	// indexBatchSize bounds memory during bulk indexing.
	indexBatchSize = 500
)

// bleveDoc is the shape of an article as stored in the lexical index. Only
// the fields needed for lexical matching are kept; the article store holds
// everything else.
type bleveDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Sector  string `json:"sector"`
	Source  string `json:"source"`
	Status  string `json:"status"`
}

// BleveLexicalIndex implements LexicalIndex using bleve's BM25 scoring.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// NewBleveLexicalIndex opens or creates a lexical index at path.
// An empty path creates an in-memory index for testing.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	var index bleve.Index
	var err error

	if path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &BleveLexicalIndex{index: index}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	index, err = bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		// A corrupt index cannot be repaired in place. Clear it and start
		// fresh; callers must reindex.
		slog.Warn("lexical_index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, err)
		}
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("recreate index: %w", err)
		}
		slog.Info("lexical_index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, please reindex"))
	}

	return &BleveLexicalIndex{index: index, path: path}, nil
}

// buildIndexMapping defines the article document mapping. Title and content
// use an Italian-aware analyzer since search queries arrive in Italian;
// sector, source and status are stored as exact keywords for filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomAnalyzer("news_text", map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			it.StopName,
		},
	}); err != nil {
		// Registration only fails on a misconfigured map literal;
		// fall back to the standard analyzer.
		slog.Warn("analyzer_registration_failed", slog.String("error", err.Error()))
	}

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "news_text"
	textField.Store = false

	keywordField := bleve.NewKeywordFieldMapping()
	keywordField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("content", textField)
	docMapping.AddFieldMappingsAt("sector", keywordField)
	docMapping.AddFieldMappingsAt("source", keywordField)
	docMapping.AddFieldMappingsAt("status", keywordField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = "news_text"

	return indexMapping
}

// Index adds or updates articles in batches.
func (b *BleveLexicalIndex) Index(ctx context.Context, articles []*Article) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	count := 0

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc := bleveDoc{
			Title:   a.Title(),
			Content: a.Content(),
			Sector:  a.Sector,
			Source:  a.Source,
			Status:  a.Status,
		}
		if err := batch.Index(a.ID, doc); err != nil {
			return fmt.Errorf("batch article %s: %w", a.ID, err)
		}

		count++
		if count >= indexBatchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("execute batch: %w", err)
			}
			batch = b.index.NewBatch()
			count = 0
		}
	}

	if count > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("execute batch: %w", err)
		}
	}

	return nil
}

// Search runs a BM25 match over title and content, with title matches
// boosted.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if queryStr == "" || limit <= 0 {
		return []*LexicalResult{}, nil
	}

	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField("title")
	titleQuery.SetBoost(titleBoost)

	contentQuery := bleve.NewMatchQuery(queryStr)
	contentQuery.SetField("content")

	query := bleve.NewDisjunctionQuery(titleQuery, contentQuery)

	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.From = 0

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &LexicalResult{
			ID:    hit.ID,
			Score: hit.Score,
		})
	}

	return results, nil
}

// Delete removes articles from the index.
func (b *BleveLexicalIndex) Delete(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute delete batch: %w", err)
	}

	return nil
}

// Count returns the number of indexed articles.
func (b *BleveLexicalIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("doc count: %w", err)
	}
	return int(count), nil
}

// Close releases the underlying index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
