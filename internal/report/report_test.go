package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// entry is a canned duplicate row for the fake source.
type entry struct {
	line string
	hits int64
}

// fakeSource replays canned entries in order.
type fakeSource struct {
	entries []entry
	err     error
}

func (f *fakeSource) EachDuplicate(ctx context.Context, fn func(line []byte, hits int64) error) error {
	for _, e := range f.entries {
		if err := fn([]byte(e.line), e.hits); err != nil {
			return err
		}
	}
	return f.err
}

// TestWrite_FormatAndTotals pins the artifact format byte for byte and the
// summary arithmetic.
func TestWrite_FormatAndTotals(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: []entry{
		{"password", 41},
		{"123456", 7},
		{"qwerty", 2},
	}}

	var buf bytes.Buffer
	sum, err := Write(context.Background(), &buf, src)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}

	want := "41\tpassword\n7\t123456\n2\tqwerty\n"
	if got := buf.String(); got != want {
		t.Fatalf("report = %q, want %q", got, want)
	}
	if sum.Entries != 3 {
		t.Fatalf("Entries = %d, want 3", sum.Entries)
	}
	if sum.Occurrences != 40+6+1 {
		t.Fatalf("Occurrences = %d, want 47", sum.Occurrences)
	}
}

// TestWrite_RawContentPreserved verifies tabs, spaces, and multibyte
// content inside a line pass through untouched.
func TestWrite_RawContentPreserved(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: []entry{
		{"with\tinner\ttabs", 2},
		{"  padded  ", 2},
		{"héllo 世界", 3},
		{"", 5},
	}}

	var buf bytes.Buffer
	if _, err := Write(context.Background(), &buf, src); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	want := "2\twith\tinner\ttabs\n2\t  padded  \n3\théllo 世界\n5\t\n"
	if got := buf.String(); got != want {
		t.Fatalf("report = %q, want %q", got, want)
	}
}

// TestWrite_NoDuplicates checks a clean run produces an empty artifact and
// a zero summary.
func TestWrite_NoDuplicates(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sum, err := Write(context.Background(), &buf, &fakeSource{})
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("report = %q, want empty", buf.String())
	}
	if sum != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", sum)
	}
}

// TestWrite_SourceErrorPropagates ensures a store scan failure surfaces.
func TestWrite_SourceErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("scan blew up")
	src := &fakeSource{entries: []entry{{"x", 2}}, err: wantErr}

	var buf bytes.Buffer
	_, err := Write(context.Background(), &buf, src)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

// failWriter errors once its byte budget is spent.
type failWriter struct {
	budget int
	err    error
}

func (w *failWriter) Write(p []byte) (int, error) {
	if len(p) > w.budget {
		n := w.budget
		w.budget = 0
		return n, w.err
	}
	w.budget -= len(p)
	return len(p), nil
}

// TestWrite_WriterErrorPropagates ensures sink failures carry context.
func TestWrite_WriterErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("no space left on device")
	entries := make([]entry, 0, 4096)
	for i := 0; i < 4096; i++ {
		entries = append(entries, entry{line: strings.Repeat("z", 2048), hits: 2})
	}

	_, err := Write(context.Background(), &failWriter{budget: 8 << 10, err: wantErr}, &fakeSource{entries: entries})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if !strings.Contains(err.Error(), "write report") {
		t.Fatalf("err = %v, want write report context", err)
	}
}
