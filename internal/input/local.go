package input

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Local is a filesystem source bound to a single path. Paths ending in .gz
// or .zst are decompressed on the fly; line numbers reported downstream
// refer to the decompressed stream.
type Local struct{ path string }

// NewLocal returns a Local source bound to the provided filesystem path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the configured path for reading and returns an io.ReadCloser.
//
// Behavior:
//   - If the context is already canceled or its deadline exceeded at the time
//     of the call, Open returns the context error immediately without touching
//     the filesystem.
//   - Plain files come back as the bare *os.File after a best-effort kernel
//     readahead hint.
//   - .gz and .zst files come back wrapped in a decompressor whose Close also
//     closes the underlying file.
//   - Any filesystem error is wrapped with the path for context, while still
//     permitting errors.Is/As checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", l.path, err)
	}
	advise(f)

	switch {
	case strings.HasSuffix(l.path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open input %s: gzip: %w", l.path, err)
		}
		return &layeredCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil

	case strings.HasSuffix(l.path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open input %s: zstd: %w", l.path, err)
		}
		rc := zr.IOReadCloser()
		return &layeredCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
	}
	return f, nil
}

// layeredCloser reads from a decompressor while closing both it and the
// underlying file.
type layeredCloser struct {
	io.Reader
	closers []io.Closer
}

// Close closes every layer and returns the first error encountered.
func (l *layeredCloser) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
