// Package sqlite implements the line frequency store on a local SQLite
// database using database/sql. Batched upserts run inside a transaction;
// SQLite has no dedicated bulk-load API, but prepared statements inside a
// single transaction keep throughput acceptable even for very large inputs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	// SQLite driver; replace with your preferred driver if desired.
	_ "modernc.org/sqlite" // alternative: github.com/mattn/go-sqlite3
)

// Repository is a SQLite-backed frequency store.
type Repository struct {
	db        *sql.DB
	cfg       Config
	upsertSQL string

	mu      sync.Mutex
	nextSeq int64
}

// NewRepository opens (or creates) the database file, applies the tuning
// PRAGMAs, and recreates the line table. It returns the Repository plus a
// close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, nil, fmt.Errorf("sqlite: database path must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("sqlite: table must not be empty")
	}

	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Apply a basic ping with context to fail fast on unwritable paths.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	r := &Repository{
		db:  db,
		cfg: cfg,
		upsertSQL: "INSERT INTO " + ident(cfg.Table) +
			" (content, seq, hits) VALUES (?, ?, 1)" +
			" ON CONFLICT(content) DO UPDATE SET hits = hits + 1",
		nextSeq: 1,
	}
	if err := r.resetSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	closeFn := func() { db.Close() }
	return r, closeFn, nil
}

// dsn builds the connection string. The tuning PRAGMAs ride along as query
// parameters so the driver applies them to every pooled connection, not just
// the first one opened.
func dsn(cfg Config) string {
	params := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(OFF)",
		"_pragma=temp_store(MEMORY)",
		"_pragma=busy_timeout(10000)",
	}
	// Negative cache_size is a budget in KiB rather than a page count.
	if kib := cfg.CacheBytes / 1024; kib > 0 {
		params = append(params, fmt.Sprintf("_pragma=cache_size(-%d)", kib))
	}
	return "file:" + url.PathEscape(cfg.Path) + "?" + strings.Join(params, "&")
}

// resetSchema drops any table left behind by a previous run and creates a
// fresh one. Runs never resume earlier state.
func (r *Repository) resetSchema(ctx context.Context) error {
	table := ident(r.cfg.Table)
	stmts := []string{
		"DROP TABLE IF EXISTS " + table,
		"CREATE TABLE " + table + " (content BLOB PRIMARY KEY, seq INTEGER NOT NULL, hits INTEGER NOT NULL)",
		fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (seq)", ident(r.cfg.Table+"_seq"), table),
		fmt.Sprintf("CREATE INDEX %s ON %s (hits DESC, seq ASC) WHERE hits > 1", ident(r.cfg.Table+"_hits"), table),
	}
	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite: schema: %w", err)
		}
	}
	return nil
}

// UpsertBatch applies the batch inside one transaction. New lines take the
// next sequence numbers; lines already stored get their hit count bumped.
// The in-memory sequence counter only advances after a successful commit, so
// a failed batch does not burn numbers.
func (r *Repository) UpsertBatch(ctx context.Context, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, r.upsertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	seq := r.nextSeq
	for _, line := range lines {
		if line == nil {
			line = []byte{} // nil would bind as NULL and violate the key
		}
		if _, err := stmt.ExecContext(ctx, line, seq); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite: upsert: %w", err)
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	r.nextSeq = seq
	return nil
}

// EachDuplicate streams entries with hits > 1 ordered by hits descending and
// first-seen ascending on ties.
func (r *Repository) EachDuplicate(ctx context.Context, fn func(line []byte, hits int64) error) error {
	q := "SELECT content, hits FROM " + ident(r.cfg.Table) +
		" WHERE hits > 1 ORDER BY hits DESC, seq ASC"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("sqlite: query duplicates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line []byte
			hits int64
		)
		if err := rows.Scan(&line, &hits); err != nil {
			return fmt.Errorf("sqlite: scan duplicate: %w", err)
		}
		if err := fn(line, hits); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterate duplicates: %w", err)
	}
	return nil
}

// EachLine streams distinct lines in first-seen order. A negative limit
// disables the cap.
func (r *Repository) EachLine(ctx context.Context, offset, limit int64, fn func(line []byte) error) error {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}
	q := "SELECT content FROM " + ident(r.cfg.Table) + " ORDER BY seq ASC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return fmt.Errorf("sqlite: query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line []byte
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("sqlite: scan line: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterate lines: %w", err)
	}
	return nil
}

// Count returns the number of distinct lines stored.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + ident(r.cfg.Table)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// Destroy closes the database and removes its file along with the WAL and
// shared-memory siblings.
func (r *Repository) Destroy(ctx context.Context) error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close before destroy: %w", err)
	}
	if err := os.Remove(r.cfg.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("sqlite: remove %s: %w", r.cfg.Path, err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		p := r.cfg.Path + suffix
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("sqlite: remove %s: %w", p, err)
		}
	}
	return nil
}

// ident safely quotes a single identifier for SQLite.
func ident(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
