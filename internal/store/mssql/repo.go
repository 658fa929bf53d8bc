// Package mssql implements the line frequency store on SQL Server using the
// go-mssqldb bulk copy API. Each batch is bulk-copied into a session temp
// table and folded into the target with a single MERGE, which keeps
// round-trips per batch constant no matter the batch size.
//
// SQL Server caps index keys at 900 bytes and rejects VARBINARY(MAX) keys
// outright, so a SHA-256 digest keys each row and the exact content rides
// along unindexed.
package mssql

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// stagingTable is the session temp table used by UpsertBatch. Temp tables
// are per-session, so the fixed name never collides across pooled
// connections; they survive commit, so the stage statement drops any
// leftover before recreating it.
const stagingTable = "#dedupe_stage"

// Config holds SQL Server repository configuration.
type Config struct {
	DSN   string // connection string for go-mssqldb
	Table string // target table name, optionally schema-qualified, e.g. "dbo.lines"
}

// Repository is a SQL Server-backed frequency store.
type Repository struct {
	db       *sql.DB
	cfg      Config
	stageSQL string
	mergeSQL string

	mu      sync.Mutex
	nextSeq int64
}

// NewRepository validates the DSN, connects, verifies the server is
// reachable, and recreates the line table. It returns the Repository plus a
// close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mssql: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("mssql: table must not be empty")
	}

	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql: ping: %w", err)
	}

	r := &Repository{
		db:       db,
		cfg:      cfg,
		stageSQL: buildStageSQL(cfg.Table),
		mergeSQL: buildMergeSQL(cfg.Table),
		nextSeq:  1,
	}
	if err := r.resetSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	closeFn := func() { _ = db.Close() }
	return r, closeFn, nil
}

// buildStageSQL clones the target table's structure into the staging table.
// The hits column stays behind; staging rows carry key, content, and seq.
func buildStageSQL(table string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID('tempdb..%s') IS NOT NULL DROP TABLE %s;"+
			" SELECT TOP 0 content_key, content, seq INTO %s FROM %s",
		stagingTable, msIdent(stagingTable), msIdent(stagingTable), msFQN(table),
	)
}

// buildMergeSQL folds the staging rows into the target. Repeats inside the
// batch collapse per key: the earliest seq wins and the partition size
// becomes the hit contribution. Existing rows keep their seq and accumulate
// hits on match. T-SQL cannot aggregate VARBINARY(MAX), so a window rank
// picks the surviving row instead of GROUP BY.
func buildMergeSQL(table string) string {
	return fmt.Sprintf(
		"MERGE INTO %s AS t"+
			" USING (SELECT content_key, content, seq, cnt FROM"+
			" (SELECT content_key, content, seq,"+
			" ROW_NUMBER() OVER (PARTITION BY content_key ORDER BY seq ASC) AS rn,"+
			" COUNT_BIG(*) OVER (PARTITION BY content_key) AS cnt"+
			" FROM %s) AS d WHERE rn = 1) AS s"+
			" ON t.content_key = s.content_key"+
			" WHEN MATCHED THEN UPDATE SET hits = t.hits + s.cnt"+
			" WHEN NOT MATCHED THEN INSERT (content_key, content, seq, hits)"+
			" VALUES (s.content_key, s.content, s.seq, s.cnt);",
		msFQN(table), msIdent(stagingTable),
	)
}

// resetSchema drops any table left behind by a previous run and creates a
// fresh one. Runs never resume earlier state.
func (r *Repository) resetSchema(ctx context.Context) error {
	fqn := msFQN(r.cfg.Table)
	leaf := tableLeaf(r.cfg.Table)
	stmts := []string{
		"DROP TABLE IF EXISTS " + fqn,
		"CREATE TABLE " + fqn + " (content_key BINARY(32) NOT NULL PRIMARY KEY," +
			" content VARBINARY(MAX) NOT NULL, seq BIGINT NOT NULL, hits BIGINT NOT NULL)",
		fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (seq)", msIdent(leaf+"_seq"), fqn),
		fmt.Sprintf("CREATE INDEX %s ON %s (hits DESC, seq ASC) WHERE hits > 1", msIdent(leaf+"_hits"), fqn),
	}
	for _, q := range stmts {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("mssql: schema: %w", err)
		}
	}
	return nil
}

// UpsertBatch applies the batch inside one transaction: bulk copy into the
// staging table, then one merge. The in-memory sequence counter only
// advances after a successful commit, so a failed batch does not burn
// numbers.
func (r *Repository) UpsertBatch(ctx context.Context, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.stageSQL); err != nil {
		return fmt.Errorf("mssql: create staging: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(stagingTable, mssql.BulkOptions{}, "content_key", "content", "seq"))
	if err != nil {
		return fmt.Errorf("mssql: prepare bulk: %w", err)
	}
	for i, line := range lines {
		if line == nil {
			line = []byte{} // nil would insert NULL and violate the key
		}
		key := sha256.Sum256(line)
		if _, err := stmt.ExecContext(ctx, key[:], line, r.nextSeq+int64(i)); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("mssql: rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.mergeSQL); err != nil {
		return fmt.Errorf("mssql: merge batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mssql: commit: %w", err)
	}
	r.nextSeq += int64(len(lines))
	return nil
}

// EachDuplicate streams entries with hits > 1 ordered by hits descending and
// first-seen ascending on ties.
func (r *Repository) EachDuplicate(ctx context.Context, fn func(line []byte, hits int64) error) error {
	q := "SELECT content, hits FROM " + msFQN(r.cfg.Table) +
		" WHERE hits > 1 ORDER BY hits DESC, seq ASC"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("mssql: query duplicates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line []byte
			hits int64
		)
		if err := rows.Scan(&line, &hits); err != nil {
			return fmt.Errorf("mssql: scan duplicate: %w", err)
		}
		if err := fn(line, hits); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("mssql: iterate duplicates: %w", err)
	}
	return nil
}

// EachLine streams distinct lines in first-seen order. A negative limit
// disables the cap by omitting the FETCH clause; T-SQL rejects a zero-row
// FETCH, so a zero limit returns without querying.
func (r *Repository) EachLine(ctx context.Context, offset, limit int64, fn func(line []byte) error) error {
	if limit == 0 {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	var (
		q    string
		args []any
	)
	if limit < 0 {
		q = "SELECT content FROM " + msFQN(r.cfg.Table) + " ORDER BY seq ASC OFFSET @p1 ROWS"
		args = []any{offset}
	} else {
		q = "SELECT content FROM " + msFQN(r.cfg.Table) +
			" ORDER BY seq ASC OFFSET @p1 ROWS FETCH NEXT @p2 ROWS ONLY"
		args = []any{offset, limit}
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("mssql: query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line []byte
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("mssql: scan line: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("mssql: iterate lines: %w", err)
	}
	return nil
}

// Count returns the number of distinct lines stored.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	q := "SELECT COUNT_BIG(*) FROM " + msFQN(r.cfg.Table)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("mssql: count: %w", err)
	}
	return n, nil
}

// Destroy drops the line table. The pool itself stays open; Close owns it.
func (r *Repository) Destroy(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+msFQN(r.cfg.Table)); err != nil {
		return fmt.Errorf("mssql: drop table: %w", err)
	}
	return nil
}

// msIdent safely quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.lines" to
// "[dbo].[lines]". Empty segments are ignored.
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, msIdent(p))
	}
	return strings.Join(out, ".")
}

// tableLeaf returns the unqualified table name used to derive index names.
func tableLeaf(name string) string {
	parts := strings.Split(name, ".")
	return parts[len(parts)-1]
}
