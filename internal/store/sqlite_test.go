package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArticleStore(t *testing.T) *SQLiteArticleStore {
	t.Helper()
	s, err := NewSQLiteArticleStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storedArticle(id, sector, source, status string, published time.Time) *Article {
	return &Article{
		ID:          id,
		Source:      source,
		Sector:      sector,
		TitleRS:     "Naslov " + id,
		TitleIT:     "Titolo " + id,
		ContentRS:   "Sadržaj " + id,
		ContentIT:   "Contenuto " + id,
		PublishedAt: published,
		Status:      status,
	}
}

func TestSQLiteSaveAndGet(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()

	published := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	a := storedArticle("a1", "economia", "danas", StatusPending, published)
	a.Link = "https://example.rs/a1"
	require.NoError(t, s.SaveArticles(ctx, []*Article{a}))

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "economia", got.Sector)
	assert.Equal(t, "danas", got.Source)
	assert.Equal(t, "https://example.rs/a1", got.Link)
	assert.Equal(t, "Titolo a1", got.TitleIT)
	assert.Equal(t, "Naslov a1", got.TitleRS)
	assert.True(t, published.Equal(got.PublishedAt))
	assert.Equal(t, StatusPending, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteGetMissing(t *testing.T) {
	s := newTestArticleStore(t)

	_, err := s.GetArticle(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteUpsert(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()
	published := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveArticles(ctx, []*Article{
		storedArticle("a1", "economia", "danas", StatusPending, published),
	}))

	updated := storedArticle("a1", "politica", "danas", StatusApproved, published)
	require.NoError(t, s.SaveArticles(ctx, []*Article{updated}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "politica", got.Sector)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestSQLiteGetArticlesPreservesOrder(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()
	published := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveArticles(ctx, []*Article{
		storedArticle("a1", "economia", "danas", StatusPending, published),
		storedArticle("a2", "politica", "rts", StatusPending, published),
		storedArticle("a3", "cultura", "b92", StatusPending, published),
	}))

	got, err := s.GetArticles(ctx, []string{"a3", "missing", "a1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a3", got[0].ID)
	assert.Equal(t, "a1", got[1].ID)
}

func TestSQLiteListArticlesFiltered(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()

	day := func(d int) time.Time {
		return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC)
	}
	require.NoError(t, s.SaveArticles(ctx, []*Article{
		storedArticle("a1", "economia", "danas", StatusApproved, day(1)),
		storedArticle("a2", "economia", "rts", StatusPending, day(2)),
		storedArticle("a3", "politica", "danas", StatusApproved, day(3)),
	}))

	tests := []struct {
		name    string
		filter  Filter
		limit   int
		wantIDs []string
	}{
		{"no filter newest first", Filter{}, 0, []string{"a3", "a2", "a1"}},
		{"by sector", Filter{Sector: "economia"}, 0, []string{"a2", "a1"}},
		{"sector case insensitive", Filter{Sector: "Economia"}, 0, []string{"a2", "a1"}},
		{"by source", Filter{Source: "danas"}, 0, []string{"a3", "a1"}},
		{"by status", Filter{Status: StatusApproved}, 0, []string{"a3", "a1"}},
		{"combined", Filter{Sector: "economia", Status: StatusApproved}, 0, []string{"a1"}},
		{"limited", Filter{}, 2, []string{"a3", "a2"}},
		{"no match", Filter{Sector: "sport"}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListArticles(ctx, tt.filter, tt.limit)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			if tt.wantIDs == nil {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.wantIDs, ids)
			}
		})
	}
}

func TestSQLiteSetStatus(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()
	published := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveArticles(ctx, []*Article{
		storedArticle("a1", "economia", "danas", StatusPending, published),
	}))

	require.NoError(t, s.SetStatus(ctx, "a1", StatusDiscarded))
	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, got.Status)

	assert.ErrorIs(t, s.SetStatus(ctx, "missing", StatusApproved), ErrNotFound)
	assert.Error(t, s.SetStatus(ctx, "a1", "bogus"))
}

func TestSQLiteInvalidStatusRejected(t *testing.T) {
	s := newTestArticleStore(t)
	a := storedArticle("a1", "economia", "danas", "published", time.Now())
	assert.Error(t, s.SaveArticles(context.Background(), []*Article{a}))
}

func TestSQLiteDefaultStatusPending(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()

	a := storedArticle("a1", "economia", "danas", "", time.Now())
	require.NoError(t, s.SaveArticles(ctx, []*Article{a}))

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestSQLiteDelete(t *testing.T) {
	s := newTestArticleStore(t)
	ctx := context.Background()
	published := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveArticles(ctx, []*Article{
		storedArticle("a1", "economia", "danas", StatusPending, published),
		storedArticle("a2", "politica", "rts", StatusPending, published),
	}))

	require.NoError(t, s.DeleteArticles(ctx, []string{"a1", "missing"}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLitePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.db")
	ctx := context.Background()

	s, err := NewSQLiteArticleStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveArticles(ctx, []*Article{
		storedArticle("a1", "economia", "danas", StatusPending, time.Now()),
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteArticleStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
