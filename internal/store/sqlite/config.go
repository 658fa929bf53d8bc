// Package sqlite implements a SQLite-backed line frequency store.
package sqlite

// Config holds SQLite store configuration derived from store.Config.
type Config struct {
	// Path is the database file on local disk, e.g. "dedupe_cache.db".
	// The file is created on first open; the line table inside it is
	// dropped and recreated per run.
	Path string

	// Table is the table holding line entries.
	Table string

	// CacheBytes budgets the page cache. Applied as a negative cache_size
	// PRAGMA (KiB units); zero keeps the SQLite default.
	CacheBytes int64
}
