// Package main wires the deduplication pipeline end-to-end. This file holds
// the orchestration: it opens the input and the store, runs the three phases
// in order, and writes the run summary. It depends only on the store
// interface and never imports database drivers directly.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/torqspark/dedupe-massive-wordlists/internal/config"
	"github.com/torqspark/dedupe-massive-wordlists/internal/ingest"
	"github.com/torqspark/dedupe-massive-wordlists/internal/input"
	"github.com/torqspark/dedupe-massive-wordlists/internal/metrics"
	"github.com/torqspark/dedupe-massive-wordlists/internal/output"
	"github.com/torqspark/dedupe-massive-wordlists/internal/report"
	"github.com/torqspark/dedupe-massive-wordlists/internal/runlog"
	"github.com/torqspark/dedupe-massive-wordlists/internal/stopwatch"
	"github.com/torqspark/dedupe-massive-wordlists/internal/store"
)

// Phase names as they appear in the run log and in metrics labels.
const (
	phaseTotal     = "total"
	phaseIngestion = "ingestion"
	phaseReport    = "report"
	phaseOutput    = "output_write"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newStoreFn = store.New

	openInputFn = openInput
)

// run executes one deduplication run under the resolved config. Every error
// is fatal: the first failing phase aborts the run, the diagnostic lands in
// the run log, and any store state is left behind for inspection. Only a
// fully successful run removes the store (unless KeepStore is set).
func run(ctx context.Context, cfg config.Config, warnings []string) error {
	rl, err := runlog.New(cfg.LogPath, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rl.Close(); cerr != nil {
			log.Printf("%v", cerr)
		}
	}()

	job := jobName(cfg.InputPath)

	for _, w := range warnings {
		rl.Logf("config warning: %s", w)
	}

	sw := stopwatch.New()
	sw.Start(phaseTotal)

	rl.Logf("dedupe run: input=%s store=%s table=%s batch=%d workers=%d",
		cfg.InputPath, cfg.StoreKind, cfg.Table, cfg.BatchSize, cfg.Workers)

	// The sqlite backend addresses its database by file path; the server
	// backends by DSN.
	dsn := cfg.DSN
	if cfg.StoreKind == "sqlite" {
		dsn = cfg.StorePath
	}
	st, err := newStoreFn(ctx, store.Config{
		Kind:       cfg.StoreKind,
		DSN:        dsn,
		Table:      cfg.Table,
		CacheBytes: cfg.CacheBytes,
	})
	if err != nil {
		err = fmt.Errorf("open store: %w", err)
		rl.Logf("run aborted: %v", err)
		return err
	}
	defer st.Close()

	in, err := openInputFn(ctx, cfg.InputPath)
	if err != nil {
		rl.Logf("run aborted: %v", err)
		return err
	}
	defer in.Close()

	// Phase 1: stream the input into the store.
	sw.Start(phaseIngestion)
	stats, err := ingest.Run(ctx, in, st, ingest.Options{
		BatchSize: cfg.BatchSize,
		StripCR:   cfg.StripCR,
		Progress: func(lines int64) {
			rl.Logf("processed %d lines", lines)
		},
	})
	d := sw.Stop(phaseIngestion)
	metrics.RecordPhase(job, phaseIngestion, err, d)
	if err != nil {
		rl.Logf("run aborted after %d lines: %v", stats.Lines, err)
		return err
	}
	rl.Logf("ingestion done: %d lines in %d batches (%s)",
		stats.Lines, stats.Batches, d.Truncate(time.Millisecond))
	metrics.RecordLines(job, "scanned", stats.Lines)
	metrics.RecordBatches(job, stats.Batches)

	// Phase 2: rank and write the duplicates report.
	sw.Start(phaseReport)
	sum, err := writeReport(ctx, st, cfg.ReportPath)
	d = sw.Stop(phaseReport)
	metrics.RecordPhase(job, phaseReport, err, d)
	if err != nil {
		rl.Logf("run aborted: %v", err)
		return err
	}
	rl.Logf("duplicates report: %d entries covering %d surplus lines (%s)",
		sum.Entries, sum.Occurrences, d.Truncate(time.Millisecond))
	metrics.RecordLines(job, "duplicate_entries", sum.Entries)
	metrics.RecordLines(job, "duplicate_occurrences", sum.Occurrences)

	// Phase 3: write the deduplicated output in parallel partitions.
	sw.Start(phaseOutput)
	res, err := output.Write(ctx, st, cfg.CleanedPath, output.Options{Workers: cfg.Workers})
	d = sw.Stop(phaseOutput)
	metrics.RecordPhase(job, phaseOutput, err, d)
	if err != nil {
		rl.Logf("run aborted: %v", err)
		return err
	}
	rl.Logf("cleaned output: %d lines, %d bytes via %d writers, digest %016x (%s)",
		res.Lines, res.Bytes, res.Workers, res.Digest, d.Truncate(time.Millisecond))
	metrics.RecordLines(job, "distinct", res.Lines)

	total := sw.Stop(phaseTotal)
	metrics.RecordPhase(job, phaseTotal, nil, total)

	rl.Logf("summary: scanned=%d distinct=%d duplicate_entries=%d surplus=%d",
		stats.Lines, res.Lines, sum.Entries, sum.Occurrences)
	for _, p := range sw.Report() {
		rl.Logf("phase %s: %s", p.Name, p.D.Truncate(time.Microsecond))
	}

	if cfg.KeepStore {
		rl.Logf("store kept for inspection")
		return nil
	}
	if err := st.Destroy(ctx); err != nil {
		err = fmt.Errorf("destroy store: %w", err)
		rl.Logf("run aborted: %v", err)
		return err
	}
	rl.Logf("store removed")
	return nil
}

// writeReport creates the report artifact and streams ranked duplicates into it.
func writeReport(ctx context.Context, src report.DuplicateSource, path string) (report.Summary, error) {
	f, err := os.Create(path)
	if err != nil {
		return report.Summary{}, fmt.Errorf("create report %s: %w", path, err)
	}
	sum, err := report.Write(ctx, f, src)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close report %s: %w", path, cerr)
	}
	return sum, err
}

// openInput maps the input path to a concrete source implementation.
func openInput(ctx context.Context, path string) (io.ReadCloser, error) {
	return input.NewLocal(path).Open(ctx)
}

// jobName derives the metrics job label from the input file name.
func jobName(inputPath string) string {
	base := filepath.Base(inputPath)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "dedupe"
	}
	return base
}
