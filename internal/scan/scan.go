// Package scan reads newline-delimited input one line at a time. It is
// built for very large files: a fixed read buffer plus an explicit carry
// buffer for lines longer than the buffer, so no line-length limit applies
// and full lines are yielded without a copy.
package scan

import (
	"bufio"
	"fmt"
	"io"
	"unicode/utf8"
)

// Reader buffer for sequential line scanning.
const defaultBufSize = 4 << 20 // 4 MiB

// DecodeError reports input that is not valid UTF-8. The offending bytes
// stay out of the message; they may be arbitrary binary.
type DecodeError struct {
	Line int64 // 1-based line number
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("line %d is not valid UTF-8", e.Line)
}

// Options configure a Scanner.
type Options struct {
	// BufferSize is the read buffer size. Lines longer than the buffer
	// accumulate in a carry buffer, so this tunes syscall batching only.
	// Defaults to 4 MiB.
	BufferSize int

	// StripCR removes a trailing '\r' from each line so CRLF input counts
	// the same as LF input.
	StripCR bool
}

// Scanner yields lines in input order. It uses ReadSlice with a carry
// buffer instead of bufio.Scanner, which would cap line length and copy
// every token.
type Scanner struct {
	r     *bufio.Reader
	carry []byte
	opts  Options
	line  int64
	done  bool
}

// NewScanner wraps r for line scanning.
func NewScanner(r io.Reader, opts Options) *Scanner {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufSize
	}
	return &Scanner{r: bufio.NewReaderSize(r, opts.BufferSize), opts: opts}
}

// Line returns the 1-based number of the most recently read line, or 0
// before the first read. After a DecodeError it reports the offending line.
func (s *Scanner) Line() int64 { return s.line }

// Next returns the next line without its terminator. A final line with no
// trailing newline still counts; empty lines are lines. The returned slice
// aliases internal buffers and is only valid until the following call, so
// callers that retain a line must copy it. At end of input Next returns
// io.EOF.
func (s *Scanner) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	s.carry = s.carry[:0]
	for {
		chunk, err := s.r.ReadSlice('\n')
		if err == io.EOF {
			s.done = true
			if len(chunk) == 0 && len(s.carry) == 0 {
				return nil, io.EOF
			}
			line := chunk
			if len(s.carry) > 0 {
				s.carry = append(s.carry, chunk...)
				line = s.carry
			}
			return s.emit(line)
		}
		if err == bufio.ErrBufferFull {
			// The buffer filled before a newline; accumulate and keep reading.
			s.carry = append(s.carry, chunk...)
			continue
		}
		if err != nil {
			return nil, err
		}
		line := chunk[:len(chunk)-1]
		if len(s.carry) > 0 {
			s.carry = append(s.carry, line...)
			line = s.carry
		}
		return s.emit(line)
	}
}

// emit strips the optional CR, counts the line, and validates encoding.
func (s *Scanner) emit(line []byte) ([]byte, error) {
	if s.opts.StripCR {
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	s.line++
	if !utf8.Valid(line) {
		return nil, &DecodeError{Line: s.line}
	}
	return line, nil
}
