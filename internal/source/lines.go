// Package source turns the quotes file and the order stream into parsed,
// filtered records for the driver.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const maxLine = 1 << 20

// lineReader yields lines without their terminator. ok is false at the end.
type lineReader interface {
	next() (line []byte, ok bool, err error)
}

// bufferLines walks an in-memory buffer. Lines alias the buffer.
type bufferLines struct {
	b   []byte
	off int
}

func (l *bufferLines) next() ([]byte, bool, error) {
	if l.off >= len(l.b) {
		return nil, false, nil
	}
	rest := l.b[l.off:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		l.off = len(l.b)
		return rest, true, nil
	}
	l.off += i + 1
	return rest[:i], true, nil
}

// scanLines reads from a stream. A line is only valid until the next call.
type scanLines struct {
	s *bufio.Scanner
}

func newScanLines(r io.Reader) *scanLines {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &scanLines{s: s}
}

func (l *scanLines) next() ([]byte, bool, error) {
	if l.s.Scan() {
		return l.s.Bytes(), true, nil
	}
	if err := l.s.Err(); err != nil {
		return nil, false, fmt.Errorf("read line: %w", err)
	}
	return nil, false, nil
}

// Counters reports what a source read and dropped.
type Counters struct {
	Lines     uint64 `json:"lines"`
	Malformed uint64 `json:"malformed"`
	Filtered  uint64 `json:"filtered"`
}
