package runlog

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// newLogger creates a Logger in a temp dir and returns it with its path.
func newLogger(tb testing.TB) (*Logger, string) {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "run.log")
	l, err := New(path, false)
	if err != nil {
		tb.Fatalf("New: %v", err)
	}
	tb.Cleanup(func() { _ = l.Close() })
	return l, path
}

func readLog(tb testing.TB, path string) string {
	tb.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read log: %v", err)
	}
	return string(b)
}

func TestLogfStampsLines(t *testing.T) {
	t.Parallel()

	l, path := newLogger(t)
	fixed := time.Date(2025, 3, 9, 14, 30, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Logf("starting deduplication of %s", "words.txt")
	l.Logf("done")

	got := readLog(t, path)
	want := "[2025-03-09 14:30:05] starting deduplication of words.txt\n" +
		"[2025-03-09 14:30:05] done\n"
	if got != want {
		t.Fatalf("log content:\n%q\nwant:\n%q", got, want)
	}
}

func TestLogfGroupsIntegers(t *testing.T) {
	t.Parallel()

	l, path := newLogger(t)
	l.Logf("ingested %d lines (%d distinct)", int64(12345678), int64(987654))

	got := readLog(t, path)
	if !strings.Contains(got, "12,345,678 lines (987,654 distinct)") {
		t.Fatalf("missing grouped counts in %q", got)
	}
}

func TestLogfConcurrent(t *testing.T) {
	t.Parallel()

	l, path := newLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Logf("worker %d", n)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(readLog(t, path), "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("got %d lines, want 10", len(lines))
	}
	stamp := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] worker \d$`)
	for _, ln := range lines {
		if !stamp.MatchString(ln) {
			t.Fatalf("malformed line %q", ln)
		}
	}
}

func TestNewTruncatesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.log")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l, err := New(path, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()
	l.Logf("fresh")

	if got := readLog(t, path); strings.Contains(got, "stale") {
		t.Fatalf("previous content survived: %q", got)
	}
}
