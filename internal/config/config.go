// Package config defines the configuration model for a deduplication run.
// It is intentionally small and explicit: the CLI merges flags, environment
// fallbacks, and defaults into a Config, then validates it before any file
// or database is touched.
package config

import (
	"runtime"

	"github.com/c2h5oh/datasize"
)

// Artifact and store defaults for the classic single-machine run.
const (
	DefaultReportPath  = "duplicates_report.txt"
	DefaultCleanedPath = "cleaned_noduplicates.txt"
	DefaultLogPath     = "duplicate_log.txt"
	DefaultStorePath   = "dedupe_cache.db"
	DefaultTable       = "lines"
	DefaultBatchSize   = 100_000
)

// DefaultCacheBudget caps the store page cache when no -cache flag is given.
// The cache fills lazily, so this is a ceiling, not a reservation.
const DefaultCacheBudget = 16 * datasize.GB

// Config is the resolved configuration for one run.
type Config struct {
	// InputPath is the required positional argument: the file to deduplicate.
	InputPath string

	// ReportPath, CleanedPath, and LogPath locate the three run artifacts.
	ReportPath  string
	CleanedPath string
	LogPath     string

	// StoreKind selects the registered store backend ("sqlite", "postgres",
	// "mssql").
	StoreKind string

	// StorePath is the sqlite database file. Ignored by server backends.
	StorePath string

	// DSN is the server store connection string. Required for the postgres
	// and mssql kinds.
	DSN string

	// Table is the store table name, recreated at the start of every run.
	Table string

	// CacheBytes is the store cache budget in bytes (sqlite page cache).
	CacheBytes int64

	// BatchSize is the number of lines per upsert batch.
	BatchSize int

	// Workers is the output writer parallelism. Zero means one per CPU core.
	Workers int

	// StripCR treats a \r immediately before \n as part of the terminator.
	StripCR bool

	// KeepStore leaves the store in place after a successful run.
	KeepStore bool

	// MetricsBackend is "none", "pushgateway", or "datadog". PushgatewayURL
	// and DogstatsdAddr configure the matching backend and are ignored
	// otherwise.
	MetricsBackend string
	PushgatewayURL string
	DogstatsdAddr  string
}

// Default returns the configuration used when only the input path is given.
func Default() Config {
	return Config{
		ReportPath:     DefaultReportPath,
		CleanedPath:    DefaultCleanedPath,
		LogPath:        DefaultLogPath,
		StoreKind:      "sqlite",
		StorePath:      DefaultStorePath,
		Table:          DefaultTable,
		CacheBytes:     int64(DefaultCacheBudget.Bytes()),
		BatchSize:      DefaultBatchSize,
		Workers:        runtime.NumCPU(),
		StripCR:        true,
		MetricsBackend: "none",
	}
}
