// Package report writes the duplicates report artifact: one line per
// duplicated value, most frequent first.
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
)

// Writer buffer for the report artifact.
const writeBufSize = 4 << 20 // 4 MiB

// DuplicateSource is the slice of the store the report needs.
type DuplicateSource interface {
	EachDuplicate(ctx context.Context, fn func(line []byte, hits int64) error) error
}

// Summary totals what the report contains.
type Summary struct {
	// Entries is the number of report lines (distinct duplicated values).
	Entries int64

	// Occurrences is the number of excess input lines the duplicates
	// account for: the sum of hits-1 over all entries.
	Occurrences int64
}

// Write streams every duplicated line into w as "<count>\t<content>\n",
// ordered by count descending and earliest sighting first on ties. A run
// with no duplicates writes nothing and returns a zero Summary.
func Write(ctx context.Context, w io.Writer, src DuplicateSource) (Summary, error) {
	var (
		sum Summary
		bw  = bufio.NewWriterSize(w, writeBufSize)
		num []byte // scratch for the decimal count
	)

	err := src.EachDuplicate(ctx, func(line []byte, hits int64) error {
		num = strconv.AppendInt(num[:0], hits, 10)
		num = append(num, '\t')
		if _, err := bw.Write(num); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		sum.Entries++
		sum.Occurrences += hits - 1
		return nil
	})
	if err != nil {
		return sum, err
	}
	if err := bw.Flush(); err != nil {
		return sum, fmt.Errorf("write report: %w", err)
	}
	return sum, nil
}
