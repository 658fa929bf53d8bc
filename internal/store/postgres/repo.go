// Package postgres implements the line frequency store on Postgres using
// pgx v5. Each batch is COPYed into a per-transaction staging table and
// merged into the target with a single grouped upsert, which keeps
// round-trips per batch constant no matter the batch size.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// stagingTable is the session-local staging table used by UpsertBatch. Temp
// tables are per-connection, so the fixed name never collides across pooled
// connections, and ON COMMIT DROP removes it at the end of each batch.
const stagingTable = "dedupe_stage"

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // target table name, optionally schema-qualified, e.g. "public.lines"
}

// Repository is a Postgres-backed frequency store.
type Repository struct {
	pool     *pgxpool.Pool
	cfg      Config
	stageSQL string
	mergeSQL string

	mu      sync.Mutex
	nextSeq int64
}

// NewRepository connects the pool, verifies the server is reachable, and
// recreates the line table. It returns the Repository plus a close function
// for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("postgres: table must not be empty")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}

	r := &Repository{
		pool:     pool,
		cfg:      cfg,
		stageSQL: buildStageSQL(cfg.Table),
		mergeSQL: buildMergeSQL(cfg.Table),
		nextSeq:  1,
	}
	if err := r.resetSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	closeFn := func() { pool.Close() }
	return r, closeFn, nil
}

// buildStageSQL clones the target table's structure into the staging table.
// The hits column stays behind; staging rows carry content and seq only.
func buildStageSQL(table string) string {
	return fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT content, seq FROM %s WHERE false",
		pgIdent(stagingTable), pgFQN(table),
	)
}

// buildMergeSQL folds the staging rows into the target. Repeats inside the
// batch collapse in the GROUP BY: the earliest seq wins and the group size
// becomes the hit contribution. Existing rows keep their seq and accumulate
// hits on conflict.
func buildMergeSQL(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s AS t (content, seq, hits)"+
			" SELECT content, MIN(seq), COUNT(*) FROM %s GROUP BY content"+
			" ON CONFLICT (content) DO UPDATE SET hits = t.hits + EXCLUDED.hits",
		pgFQN(table), pgIdent(stagingTable),
	)
}

// resetSchema drops any table left behind by a previous run and creates a
// fresh one. Runs never resume earlier state.
func (r *Repository) resetSchema(ctx context.Context) error {
	fqn := pgFQN(r.cfg.Table)
	leaf := tableLeaf(r.cfg.Table)
	stmts := []string{
		"DROP TABLE IF EXISTS " + fqn,
		"CREATE TABLE " + fqn + " (content BYTEA PRIMARY KEY, seq BIGINT NOT NULL, hits BIGINT NOT NULL)",
		fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (seq)", pgIdent(leaf+"_seq"), fqn),
		fmt.Sprintf("CREATE INDEX %s ON %s (hits DESC, seq ASC) WHERE hits > 1", pgIdent(leaf+"_hits"), fqn),
	}
	for _, q := range stmts {
		if _, err := r.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: schema: %w", err)
		}
	}
	return nil
}

// UpsertBatch applies the batch inside one transaction on a single pooled
// connection: COPY into the staging table, then one grouped merge. The
// in-memory sequence counter only advances after a successful commit, so a
// failed batch does not burn numbers.
func (r *Repository) UpsertBatch(ctx context.Context, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, r.stageSQL); err != nil {
		return fmt.Errorf("postgres: create staging: %w", err)
	}

	rows := make([][]any, len(lines))
	for i, line := range lines {
		if line == nil {
			line = []byte{} // nil would insert NULL and violate the key
		}
		rows[i] = []any{line, r.nextSeq + int64(i)}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTable}, []string{"content", "seq"}, pgx.CopyFromRows(rows)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return fmt.Errorf("postgres: copy into staging: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return fmt.Errorf("postgres: copy into staging: %w", err)
	}

	if _, err := tx.Exec(ctx, r.mergeSQL); err != nil {
		return fmt.Errorf("postgres: merge batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	r.nextSeq += int64(len(lines))
	return nil
}

// EachDuplicate streams entries with hits > 1 ordered by hits descending and
// first-seen ascending on ties.
func (r *Repository) EachDuplicate(ctx context.Context, fn func(line []byte, hits int64) error) error {
	q := "SELECT content, hits FROM " + pgFQN(r.cfg.Table) +
		" WHERE hits > 1 ORDER BY hits DESC, seq ASC"
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return fmt.Errorf("postgres: query duplicates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line []byte
			hits int64
		)
		if err := rows.Scan(&line, &hits); err != nil {
			return fmt.Errorf("postgres: scan duplicate: %w", err)
		}
		if err := fn(line, hits); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: iterate duplicates: %w", err)
	}
	return nil
}

// EachLine streams distinct lines in first-seen order. A negative limit
// disables the cap; Postgres has no negative LIMIT, so the query drops the
// clause instead.
func (r *Repository) EachLine(ctx context.Context, offset, limit int64, fn func(line []byte) error) error {
	if offset < 0 {
		offset = 0
	}
	var (
		q    string
		args []any
	)
	if limit < 0 {
		q = "SELECT content FROM " + pgFQN(r.cfg.Table) + " ORDER BY seq ASC OFFSET $1"
		args = []any{offset}
	} else {
		q = "SELECT content FROM " + pgFQN(r.cfg.Table) + " ORDER BY seq ASC LIMIT $1 OFFSET $2"
		args = []any{limit, offset}
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres: query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line []byte
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("postgres: scan line: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: iterate lines: %w", err)
	}
	return nil
}

// Count returns the number of distinct lines stored.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + pgFQN(r.cfg.Table)
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Destroy drops the line table. The pool itself stays open; Close owns it.
func (r *Repository) Destroy(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgFQN(r.cfg.Table)); err != nil {
		return fmt.Errorf("postgres: drop table: %w", err)
	}
	return nil
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.lines" to
// "public"."lines". Empty segments are ignored.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, pgIdent(p))
	}
	return strings.Join(out, ".")
}

// tableLeaf returns the unqualified table name used to derive index names.
func tableLeaf(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
