package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/handlepulse/pkg/pulse/analytics"
	"github.com/cognicore/handlepulse/pkg/pulse/internalerr"
	"github.com/cognicore/handlepulse/pkg/pulse/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// WAL lets readers run while a batch is writing
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS summaries (
	id TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	date TEXT NOT NULL,
	run_id TEXT,
	total INTEGER NOT NULL,
	categories TEXT NOT NULL,
	buckets TEXT NOT NULL,
	keywords TEXT NOT NULL,
	top_posts TEXT NOT NULL,
	top_hashtags TEXT NOT NULL,
	top_mentions TEXT NOT NULL,
	top_words TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	UNIQUE(handle, date)
);

CREATE INDEX IF NOT EXISTS idx_summaries_date ON summaries(date, handle);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveSummary inserts or replaces the summary for (handle, date). The row
// keeps its original id on replace.
func (s *sqliteStore) SaveSummary(ctx context.Context, sum *analytics.AccountSummary) error {
	if sum.Handle == "" || sum.Date == "" {
		return fmt.Errorf("%w: summary needs handle and date", internalerr.ErrInvalidInput)
	}

	cols, err := encodeColumns(sum)
	if err != nil {
		return err
	}

	id := sum.ID
	if id == "" {
		id = store.NewID()
	}

	const stmt = `
INSERT INTO summaries (id, handle, date, run_id, total, categories, buckets, keywords,
	top_posts, top_hashtags, top_mentions, top_words, generated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(handle, date) DO UPDATE SET
	run_id=excluded.run_id,
	total=excluded.total,
	categories=excluded.categories,
	buckets=excluded.buckets,
	keywords=excluded.keywords,
	top_posts=excluded.top_posts,
	top_hashtags=excluded.top_hashtags,
	top_mentions=excluded.top_mentions,
	top_words=excluded.top_words,
	generated_at=excluded.generated_at
RETURNING id;
`

	var stored string
	err = s.db.QueryRowContext(
		ctx,
		stmt,
		id,
		sum.Handle,
		sum.Date,
		sum.RunID,
		sum.Total,
		cols.categories,
		cols.buckets,
		cols.keywords,
		cols.topPosts,
		cols.topHashtags,
		cols.topMentions,
		cols.topWords,
		sum.GeneratedAt.UTC().Format(time.RFC3339Nano),
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("save summary %s/%s: %w", sum.Handle, sum.Date, err)
	}
	sum.ID = stored
	return nil
}

const selectSummary = `
SELECT id, handle, date, run_id, total, categories, buckets, keywords,
	top_posts, top_hashtags, top_mentions, top_words, generated_at
FROM summaries
`

// GetSummary returns the summary for one account and date.
func (s *sqliteStore) GetSummary(ctx context.Context, handle, date string) (analytics.AccountSummary, bool, error) {
	row := s.db.QueryRowContext(ctx, selectSummary+"WHERE handle = ? AND date = ?", handle, date)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return analytics.AccountSummary{}, false, nil
	}
	if err != nil {
		return analytics.AccountSummary{}, false, err
	}
	return sum, true, nil
}

// ListSummaries returns all summaries for date ordered by handle.
func (s *sqliteStore) ListSummaries(ctx context.Context, date string) ([]analytics.AccountSummary, error) {
	rows, err := s.db.QueryContext(ctx, selectSummary+"WHERE date = ? ORDER BY handle", date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analytics.AccountSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(sc scanner) (analytics.AccountSummary, error) {
	var (
		sum         analytics.AccountSummary
		runID       sql.NullString
		cols        columns
		generatedAt string
	)
	err := sc.Scan(
		&sum.ID,
		&sum.Handle,
		&sum.Date,
		&runID,
		&sum.Total,
		&cols.categories,
		&cols.buckets,
		&cols.keywords,
		&cols.topPosts,
		&cols.topHashtags,
		&cols.topMentions,
		&cols.topWords,
		&generatedAt,
	)
	if err != nil {
		return analytics.AccountSummary{}, err
	}
	sum.RunID = runID.String
	if err := cols.decodeInto(&sum); err != nil {
		return analytics.AccountSummary{}, fmt.Errorf("decode summary %s/%s: %w", sum.Handle, sum.Date, err)
	}
	if sum.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return analytics.AccountSummary{}, fmt.Errorf("decode summary %s/%s: %w", sum.Handle, sum.Date, err)
	}
	return sum, nil
}

// columns holds the JSON-encoded slice columns of a summary row.
type columns struct {
	categories  string
	buckets     string
	keywords    string
	topPosts    string
	topHashtags string
	topMentions string
	topWords    string
}

func encodeColumns(sum *analytics.AccountSummary) (columns, error) {
	var c columns
	fields := []struct {
		dst *string
		src any
	}{
		{&c.categories, sum.Categories},
		{&c.buckets, sum.Buckets},
		{&c.keywords, sum.Keywords},
		{&c.topPosts, sum.TopPosts},
		{&c.topHashtags, sum.TopHashtags},
		{&c.topMentions, sum.TopMentions},
		{&c.topWords, sum.TopWords},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.src)
		if err != nil {
			return columns{}, err
		}
		*f.dst = string(data)
	}
	return c, nil
}

func (c columns) decodeInto(sum *analytics.AccountSummary) error {
	fields := []struct {
		src string
		dst any
	}{
		{c.categories, &sum.Categories},
		{c.buckets, &sum.Buckets},
		{c.keywords, &sum.Keywords},
		{c.topPosts, &sum.TopPosts},
		{c.topHashtags, &sum.TopHashtags},
		{c.topMentions, &sum.TopMentions},
		{c.topWords, &sum.TopWords},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return err
		}
	}
	return nil
}
