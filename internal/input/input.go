// Package input opens line-stream inputs for a deduplication run. The Local
// source covers plain files plus transparently decompressed .gz and .zst
// archives, applying sequential readahead hints where the platform supports
// them.
package input

import (
	"context"
	"io"
)

// Source is anything that can produce the byte stream for one run.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
