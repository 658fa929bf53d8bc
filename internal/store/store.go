// Package store defines the disk-backed line frequency store used by the
// deduplication pipeline, plus a small factory so backends can be selected
// by name at runtime. Backends register themselves in init; importing
// store/all enables every built-in kind.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Entry is one stored line with its bookkeeping.
type Entry struct {
	Line []byte // exact content, terminator stripped
	Seq  int64  // first-seen sequence number, strictly increasing
	Hits int64  // occurrence count
}

// Config selects and tunes a store backend.
type Config struct {
	// Kind names a registered backend ("sqlite", "postgres", "mssql").
	Kind string

	// DSN is the backend connection string. For sqlite this is the database
	// file path; for the server backends a driver connection string.
	DSN string

	// Table holds the line entries. The table is dropped and recreated when
	// the store opens: a run never resumes a previous run's state.
	Table string

	// CacheBytes budgets the backend's page cache where the backend manages
	// one (sqlite). Zero leaves the backend default in place.
	CacheBytes int64
}

// Store is a disk-backed map from exact line content to first-seen order and
// occurrence count. The batch is the unit of durability: a crash during
// UpsertBatch may lose that batch but must never corrupt committed ones.
type Store interface {
	// UpsertBatch applies one batch of lines in a single transaction, in
	// order. A line absent from the store is inserted with the next
	// first-seen sequence number and a count of one; a present line has its
	// count incremented.
	UpsertBatch(ctx context.Context, lines [][]byte) error

	// EachDuplicate streams entries whose count exceeds one, ordered by
	// count descending then first-seen ascending, calling fn per entry. The
	// line slice is only valid during the call. An error from fn stops the
	// scan and is returned.
	EachDuplicate(ctx context.Context, fn func(line []byte, hits int64) error) error

	// EachLine streams distinct lines in first-seen order, skipping offset
	// lines and yielding at most limit (limit < 0 means no cap).
	EachLine(ctx context.Context, offset, limit int64, fn func(line []byte) error) error

	// Count returns the number of distinct lines stored.
	Count(ctx context.Context) (int64, error)

	// Destroy removes the store's on-disk state. Callers invoke it only
	// after a fully successful run; failed runs leave the state behind for
	// inspection.
	Destroy(ctx context.Context) error

	// Close releases the backend without touching on-disk state.
	Close() error
}

// Factory constructs a backend from its configuration.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under the given kind. Called from
// backend init functions; a later registration replaces an earlier one.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens the backend registered under cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend names, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
