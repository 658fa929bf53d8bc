// Package output writes the deduplicated artifact: every distinct line
// exactly once, in first-seen order, one per '\n'-terminated row. The work
// splits across workers on contiguous first-seen ranges; each worker emits
// a partition file, and the partitions are stitched back in index order so
// the result is byte-identical for any worker count.
package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Buffered writer for partition and final files to amortize syscalls.
const writeBufSize = 4 << 20 // 4 MiB

// LineSource is the slice of the store the writer needs.
type LineSource interface {
	Count(ctx context.Context) (int64, error)
	EachLine(ctx context.Context, offset, limit int64, fn func(line []byte) error) error
}

// Options configure a write.
type Options struct {
	// Workers caps parallelism. Values <= 0 fall back to runtime.NumCPU().
	// Never more workers than distinct lines.
	Workers int
}

// Result summarizes the artifact.
type Result struct {
	Lines   int64
	Bytes   int64
	Workers int
	Digest  uint64 // xxh3 of the final file, for rerun comparison
}

// span is a half-open window [start, start+count) over first-seen order.
type span struct {
	start int64
	count int64
}

// partResult is what a worker reports for its partition.
type partResult struct {
	lines  int64
	bytes  int64
	digest uint64
}

// Write produces the deduplicated file at path. Workers stream disjoint
// ranges into "<path>.part<i>" files; after the whole group succeeds the
// partitions are concatenated in index order, re-hashed against each
// worker's digest, and removed. Any failure is fatal and leaves partition
// files behind for inspection.
func Write(ctx context.Context, src LineSource, path string, opts Options) (Result, error) {
	n, err := src.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("output: count lines: %w", err)
	}

	spans := splitSpans(n, pickWorkers(opts.Workers, n))
	results := make([]partResult, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	for i, sp := range spans {
		g.Go(func() error {
			if err := writePart(gctx, src, partName(path, i), sp, &results[i]); err != nil {
				return fmt.Errorf("output worker %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	digest, err := stitch(path, results)
	if err != nil {
		return Result{}, err
	}

	res := Result{Workers: len(spans), Digest: digest}
	for _, pr := range results {
		res.Lines += pr.lines
		res.Bytes += pr.bytes
	}
	return res, nil
}

// pickWorkers resolves the worker count against the line count.
func pickWorkers(workers int, n int64) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if int64(workers) > n {
		workers = int(n)
	}
	return workers
}

// splitSpans divides [0, n) into contiguous ranges differing in size by at
// most one, earlier ranges taking the remainder.
func splitSpans(n int64, workers int) []span {
	if n <= 0 || workers <= 0 {
		return nil
	}
	base := n / int64(workers)
	rem := n % int64(workers)

	spans := make([]span, workers)
	var off int64
	for i := range spans {
		size := base
		if int64(i) < rem {
			size++
		}
		spans[i] = span{start: off, count: size}
		off += size
	}
	return spans
}

// partName returns the deterministic partition path for worker i.
func partName(path string, i int) string {
	return fmt.Sprintf("%s.part%d", path, i)
}

// writePart streams one span into its partition file, hashing exactly the
// bytes written so the stitch can verify the partition survived intact.
func writePart(ctx context.Context, src LineSource, path string, sp span, res *partResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, writeBufSize)
	h := xxh3.New()

	err = src.EachLine(ctx, sp.start, sp.count, func(line []byte) error {
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		_, _ = h.Write(line)
		_, _ = h.WriteString("\n")
		res.lines++
		res.bytes += int64(len(line)) + 1
		return nil
	})
	if err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	res.digest = h.Sum64()
	return nil
}

// stitch concatenates the partitions into the final file in index order,
// verifying each against its worker's digest and removing it once
// appended. Returns the digest of the whole file.
func stitch(path string, parts []partResult) (uint64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("output: create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(out, writeBufSize)
	whole := xxh3.New()

	for i := range parts {
		pp := partName(path, i)
		pf, err := os.Open(pp)
		if err != nil {
			out.Close()
			return 0, fmt.Errorf("output: open %s: %w", pp, err)
		}
		ph := xxh3.New()
		_, err = io.Copy(io.MultiWriter(bw, ph, whole), pf)
		pf.Close()
		if err != nil {
			out.Close()
			return 0, fmt.Errorf("output: stitch %s: %w", pp, err)
		}
		if got, want := ph.Sum64(), parts[i].digest; got != want {
			out.Close()
			return 0, fmt.Errorf("output: partition %s corrupted: digest %016x, want %016x", pp, got, want)
		}
		if err := os.Remove(pp); err != nil {
			out.Close()
			return 0, fmt.Errorf("output: remove %s: %w", pp, err)
		}
	}

	if err := bw.Flush(); err != nil {
		out.Close()
		return 0, fmt.Errorf("output: flush %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("output: close %s: %w", path, err)
	}
	return whole.Sum64(), nil
}
