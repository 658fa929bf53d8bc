// Package runlog writes the timestamped log artifact for a deduplication run.
package runlog

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// timeLayout is the bracketed stamp prefixed to every log line.
const timeLayout = "2006-01-02 15:04:05"

// Logger appends stamped lines to the run log file and optionally mirrors
// each line to the process log. The zero value is not usable; call New.
type Logger struct {
	mu   sync.Mutex
	f    *os.File
	p    *message.Printer
	echo bool
	now  func() time.Time // test seam
}

// New creates or truncates the run log at path. With echo set, every line is
// also mirrored to the process log on stderr.
func New(path string, echo bool) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create run log %s: %w", path, err)
	}
	return &Logger{
		f:    f,
		p:    message.NewPrinter(language.English),
		echo: echo,
		now:  time.Now,
	}, nil
}

// Logf formats one line, stamps it, and appends it to the log file. Integer
// verbs render with grouping separators (12,345,678). A failed file write is
// reported on the process log; the log never fails the run it describes.
func (l *Logger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := l.p.Sprintf(format, args...)
	if _, err := fmt.Fprintf(l.f, "[%s] %s\n", l.now().Format(timeLayout), msg); err != nil {
		log.Printf("runlog: write: %v", err)
	}
	if l.echo {
		log.Print(msg)
	}
}

// Close closes the underlying file. The Logger must not be used afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	return nil
}
