// Package ingest drives the ingestion phase: scan lines from a reader,
// group them into batches, and push each batch into the frequency store.
//
// Logging: on every successful flush, a concise progress line is emitted
// with running totals and instantaneous lines/sec since the previous flush.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/torqspark/dedupe-massive-wordlists/internal/scan"
)

// DefaultBatchSize is the number of lines per store transaction when the
// caller does not choose one.
const DefaultBatchSize = 100_000

// Sink is the slice of the store the ingestor needs.
type Sink interface {
	UpsertBatch(ctx context.Context, lines [][]byte) error
}

// Options configure a run.
type Options struct {
	// BatchSize is the number of lines per UpsertBatch call. Values <= 0
	// fall back to DefaultBatchSize.
	BatchSize int

	// StripCR forwards to the scanner: treat a '\r' before the newline as
	// part of the terminator.
	StripCR bool

	// Progress, when non-nil, receives the running total of scanned lines
	// after every committed batch and once at completion. A total already
	// delivered is not re-delivered.
	Progress func(lines int64)
}

// Stats reports how far a run got. After an error it still reflects every
// line scanned before the failure, so callers can log progress up to the
// point things broke.
type Stats struct {
	Lines   int64
	Batches int64
}

// Run scans in to exhaustion, batching lines into sink. Lines are copied
// out of the scanner's buffers as they are batched. Every error is fatal
// to the phase: a reader failure, a decode failure, or a failed batch.
func Run(ctx context.Context, in io.Reader, sink Sink, opts Options) (Stats, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		stats        Stats
		sc           = scan.NewScanner(in, scan.Options{StripCR: opts.StripCR})
		batch        = make([][]byte, 0, batchSize)
		start        = time.Now()
		lastFlushTS  = start
		lastLines    int64
		lastReported = int64(-1)
	)

	progress := func(n int64) {
		if opts.Progress != nil && n != lastReported {
			opts.Progress(n)
			lastReported = n
		}
	}

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink.UpsertBatch(ctx, batch); err != nil {
			log.Printf("ingest: flush failed batch=%d total_lines=%d err=%v", stats.Batches+1, stats.Lines, err)
			return err
		}

		// Reuse allocated slice; keep capacity to avoid churn.
		batch = batch[:0]
		stats.Batches++

		// Progress log per successful batch.
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		scannedSinceLast := stats.Lines - lastLines
		lps := float64(0)
		if sinceLast > 0 {
			lps = float64(scannedSinceLast) / sinceLast.Seconds()
		}
		log.Printf(
			"batch #%d: lps=%.0f lines=%d total_lines=%d elapsed=%s since_last=%s",
			stats.Batches,
			lps,
			scannedSinceLast,
			stats.Lines,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastLines = stats.Lines

		progress(stats.Lines)
		return nil
	}

	for {
		line, err := sc.Next()
		if err == io.EOF {
			// Input exhausted: flush the short final batch.
			if err := flush(); err != nil {
				return stats, err
			}
			log.Printf("ingest: input exhausted total_lines=%d batches=%d", stats.Lines, stats.Batches)
			progress(stats.Lines)
			return stats, nil
		}
		if err != nil {
			var decErr *scan.DecodeError
			if errors.As(err, &decErr) {
				return stats, err
			}
			return stats, fmt.Errorf("read input: %w", err)
		}

		cp := make([]byte, len(line))
		copy(cp, line)
		batch = append(batch, cp)
		stats.Lines++

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
}
