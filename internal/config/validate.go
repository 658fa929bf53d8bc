// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a resolved Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.

package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Config.
//
// Path is a dotted path into the config (e.g. "store.kind", "paths.cleaned").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a resolved Config.
//
// It does not mutate the config. Callers decide whether to treat warnings as
// fatal or not; errors always block the run.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.InputPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input",
			Message:  "input path must not be empty",
		})
	}

	issues = append(issues, validatePaths(c)...)
	issues = append(issues, validateStore(c)...)
	issues = append(issues, validateRuntime(c)...)
	issues = append(issues, validateMetrics(c)...)

	return issues
}

// validatePaths checks that the three artifacts and the input do not collide.
// Writing two artifacts to one file destroys both; writing the cleaned file
// over the input destroys the data mid-read.
func validatePaths(c Config) []Issue {
	var issues []Issue

	named := []struct {
		path, name string
	}{
		{c.ReportPath, "paths.report"},
		{c.CleanedPath, "paths.cleaned"},
		{c.LogPath, "paths.log"},
	}

	for _, n := range named {
		if strings.TrimSpace(n.path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     n.name,
				Message:  "artifact path must not be empty",
			})
		}
	}

	seen := map[string]string{}
	if c.InputPath != "" {
		seen[filepath.Clean(c.InputPath)] = "input"
	}
	for _, n := range named {
		if n.path == "" {
			continue
		}
		key := filepath.Clean(n.path)
		if prev, dup := seen[key]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     n.name,
				Message:  fmt.Sprintf("path %q is already used by %s", n.path, prev),
			})
			continue
		}
		seen[key] = n.name
	}

	return issues
}

// validateStore validates the store backend selection and its settings.
func validateStore(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.StoreKind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "store.kind",
			Message:  "store.kind must not be empty",
		})
		return issues
	}

	// Known store kinds. Unknown kinds are warnings (for forward compatibility);
	// the factory rejects them at open time if nothing registered the name.
	known := map[string]struct{}{
		"sqlite":   {},
		"postgres": {},
		"mssql":    {},
	}
	if _, ok := known[c.StoreKind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "store.kind",
			Message:  fmt.Sprintf("unknown store kind %q; ensure a matching backend is registered", c.StoreKind),
		})
	}

	switch c.StoreKind {
	case "sqlite":
		if strings.TrimSpace(c.StorePath) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "store.path",
				Message:  "sqlite store requires a non-empty database path",
			})
		}
	case "postgres", "mssql":
		if strings.TrimSpace(c.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "store.dsn",
				Message:  fmt.Sprintf("%s store requires a non-empty DSN", c.StoreKind),
			})
		}
	}

	if strings.TrimSpace(c.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "store.table",
			Message:  "store.table must not be empty",
		})
	}
	if c.CacheBytes < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "store.cache",
			Message:  "cache budget must not be negative",
		})
	}

	return issues
}

// validateRuntime validates batching and concurrency settings for obvious
// misconfigurations (negative values, zero-sized batches).
func validateRuntime(c Config) []Issue {
	var issues []Issue

	if c.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "batch",
			Message:  fmt.Sprintf("batch=%d; non-positive batch sizes fall back to the default and may hurt throughput", c.BatchSize),
		})
	}
	if c.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "workers",
			Message:  "workers must not be negative",
		})
	}

	return issues
}

// validateMetrics validates the metrics backend selection.
func validateMetrics(c Config) []Issue {
	var issues []Issue

	switch c.MetricsBackend {
	case "", "none", "pushgateway":
	case "datadog":
		if strings.TrimSpace(c.DogstatsdAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.dogstatsd",
				Message:  "datadog backend requires a non-empty DogStatsD address",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", c.MetricsBackend),
		})
	}

	return issues
}
