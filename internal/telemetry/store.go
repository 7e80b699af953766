package telemetry

import (
	"database/sql"
	"fmt"
)

// MetricsStore persists daily search metric aggregates.
type MetricsStore interface {
	// SaveModeCounts upserts per-mode query counts for a date.
	SaveModeCounts(date string, counts map[string]int64) error

	// SaveLatencyCounts upserts latency bucket counts for a date.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetModeCounts sums per-mode counts over an inclusive date range.
	GetModeCounts(from, to string) (map[string]int64, error)
}

// SQLiteMetricsStore implements MetricsStore on an existing SQLite handle,
// sharing the article database.
type SQLiteMetricsStore struct {
	db *sql.DB
}

var _ MetricsStore = (*SQLiteMetricsStore)(nil)

// NewSQLiteMetricsStore creates the store and its tables.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	schema := `
	CREATE TABLE IF NOT EXISTS search_mode_stats (
		date TEXT NOT NULL,
		mode TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, mode)
	);

	CREATE TABLE IF NOT EXISTS search_latency_stats (
		date TEXT NOT NULL,
		bucket TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (date, bucket)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// SaveModeCounts upserts per-mode query counts for a date.
func (s *SQLiteMetricsStore) SaveModeCounts(date string, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO search_mode_stats (date, mode, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, mode) DO UPDATE SET count = count + excluded.count`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for mode, count := range counts {
		if _, err := stmt.Exec(date, mode, count); err != nil {
			return fmt.Errorf("upsert mode count: %w", err)
		}
	}
	return tx.Commit()
}

// SaveLatencyCounts upserts latency bucket counts for a date.
func (s *SQLiteMetricsStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO search_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for bucket, count := range counts {
		if _, err := stmt.Exec(date, string(bucket), count); err != nil {
			return fmt.Errorf("upsert latency count: %w", err)
		}
	}
	return tx.Commit()
}

// GetModeCounts sums per-mode counts over an inclusive date range.
func (s *SQLiteMetricsStore) GetModeCounts(from, to string) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT mode, SUM(count)
		FROM search_mode_stats
		WHERE date >= ? AND date <= ?
		GROUP BY mode`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query mode counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var mode string
		var count int64
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[mode] = count
	}
	return counts, rows.Err()
}
