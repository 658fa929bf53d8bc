package config

import (
	"runtime"
	"testing"
)

// -----------------------------------------------------------------------------
// Default configuration tests
// -----------------------------------------------------------------------------
//
// These tests pin the out-of-the-box behavior: artifact names, store tuning,
// and batching match the documented defaults so that a bare
// `dedupe words.txt` run behaves the same across releases.

func TestDefault_PinsArtifactPaths(t *testing.T) {
	t.Parallel()

	c := Default()

	if c.ReportPath != "duplicates_report.txt" {
		t.Fatalf("ReportPath=%q", c.ReportPath)
	}
	if c.CleanedPath != "cleaned_noduplicates.txt" {
		t.Fatalf("CleanedPath=%q", c.CleanedPath)
	}
	if c.LogPath != "duplicate_log.txt" {
		t.Fatalf("LogPath=%q", c.LogPath)
	}
	if c.StorePath != "dedupe_cache.db" {
		t.Fatalf("StorePath=%q", c.StorePath)
	}
}

func TestDefault_StoreAndRuntime(t *testing.T) {
	t.Parallel()

	c := Default()

	if c.StoreKind != "sqlite" {
		t.Fatalf("StoreKind=%q", c.StoreKind)
	}
	if c.Table != "lines" {
		t.Fatalf("Table=%q", c.Table)
	}
	if c.BatchSize != 100_000 {
		t.Fatalf("BatchSize=%d", c.BatchSize)
	}
	if want := int64(16) << 30; c.CacheBytes != want {
		t.Fatalf("CacheBytes=%d want %d", c.CacheBytes, want)
	}
	if c.Workers != runtime.NumCPU() {
		t.Fatalf("Workers=%d want NumCPU=%d", c.Workers, runtime.NumCPU())
	}
	if !c.StripCR {
		t.Fatal("StripCR should default to true")
	}
	if c.KeepStore {
		t.Fatal("KeepStore should default to false")
	}
	if c.MetricsBackend != "none" {
		t.Fatalf("MetricsBackend=%q", c.MetricsBackend)
	}
}
