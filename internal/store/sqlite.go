package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// SQLiteArticleStore implements ArticleStore on SQLite with WAL mode for
// concurrent reader access.
type SQLiteArticleStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ ArticleStore = (*SQLiteArticleStore)(nil)

// NewSQLiteArticleStore opens or creates the article database at path.
// An empty path creates an in-memory store for testing.
func NewSQLiteArticleStore(path string) (*SQLiteArticleStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; a one-connection pool avoids lock
	// contention entirely.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores some DSN parameters, so pragmas are set
	// explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteArticleStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteArticleStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS articles (
		id           TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		sector       TEXT NOT NULL,
		link         TEXT NOT NULL DEFAULT '',
		title_rs     TEXT NOT NULL DEFAULT '',
		title_en     TEXT NOT NULL DEFAULT '',
		title_it     TEXT NOT NULL DEFAULT '',
		content_rs   TEXT NOT NULL DEFAULT '',
		content_en   TEXT NOT NULL DEFAULT '',
		content_it   TEXT NOT NULL DEFAULT '',
		published_at INTEGER NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		created_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_sector ON articles(sector);
	CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
	CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

const articleColumns = `id, source, sector, link,
	title_rs, title_en, title_it,
	content_rs, content_en, content_it,
	published_at, status, created_at`

// SaveArticles upserts articles in a single transaction.
func (s *SQLiteArticleStore) SaveArticles(ctx context.Context, articles []*Article) error {
	if len(articles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (`+articleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			sector = excluded.sector,
			link = excluded.link,
			title_rs = excluded.title_rs,
			title_en = excluded.title_en,
			title_it = excluded.title_it,
			content_rs = excluded.content_rs,
			content_en = excluded.content_en,
			content_it = excluded.content_it,
			published_at = excluded.published_at,
			status = excluded.status`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, a := range articles {
		if a.Status == "" {
			a.Status = StatusPending
		}
		if !ValidStatus(a.Status) {
			return fmt.Errorf("article %s: invalid status %q", a.ID, a.Status)
		}
		createdAt := a.CreatedAt.Unix()
		if a.CreatedAt.IsZero() {
			createdAt = now
		}
		_, err := stmt.ExecContext(ctx,
			a.ID, a.Source, a.Sector, a.Link,
			a.TitleRS, a.TitleEN, a.TitleIT,
			a.ContentRS, a.ContentEN, a.ContentIT,
			a.PublishedAt.Unix(), a.Status, createdAt)
		if err != nil {
			return fmt.Errorf("upsert article %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// GetArticle fetches one article by ID.
func (s *SQLiteArticleStore) GetArticle(ctx context.Context, id string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return a, nil
}

// GetArticles batch-fetches by ID, preserving input order and skipping
// missing IDs.
func (s *SQLiteArticleStore) GetArticles(ctx context.Context, ids []string) ([]*Article, error) {
	if len(ids) == 0 {
		return []*Article{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Article, len(ids))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	out := make([]*Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListArticles returns matching articles ordered by publication date,
// newest first.
func (s *SQLiteArticleStore) ListArticles(ctx context.Context, filter Filter, limit int) ([]*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	query := `SELECT ` + articleColumns + ` FROM articles`
	var conds []string
	var args []interface{}
	if filter.Sector != "" {
		conds = append(conds, "sector = ? COLLATE NOCASE")
		args = append(args, filter.Sector)
	}
	if filter.Source != "" {
		conds = append(conds, "source = ? COLLATE NOCASE")
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY published_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []*Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetStatus moves an article to a new workflow status.
func (s *SQLiteArticleStore) SetStatus(ctx context.Context, id, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteArticles removes articles by ID. Unknown IDs are ignored.
func (s *SQLiteArticleStore) DeleteArticles(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete articles: %w", err)
	}
	return nil
}

// Count returns the number of stored articles.
func (s *SQLiteArticleStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// DB exposes the underlying handle so sibling stores (telemetry) can share
// the database file.
func (s *SQLiteArticleStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteArticleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var publishedAt, createdAt int64
	err := row.Scan(
		&a.ID, &a.Source, &a.Sector, &a.Link,
		&a.TitleRS, &a.TitleEN, &a.TitleIT,
		&a.ContentRS, &a.ContentEN, &a.ContentIT,
		&publishedAt, &a.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	a.PublishedAt = time.Unix(publishedAt, 0).UTC()
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &a, nil
}
