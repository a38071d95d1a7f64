package source

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/edsrzf/mmap-go"

	"execsim/internal/event"
	"execsim/internal/record"
)

// Quotes yields parsed quotes that pass the instrument filter.
type Quotes struct {
	lines  lineReader
	filter record.Filter
	log    *slog.Logger
	counts Counters
}

// NewQuotes reads quote lines from r.
func NewQuotes(r io.Reader, f record.Filter, log *slog.Logger) *Quotes {
	return &Quotes{lines: newScanLines(r), filter: f, log: log}
}

func (s *Quotes) Next() (event.Quote, bool, error) {
	for {
		line, ok, err := s.lines.next()
		if err != nil || !ok {
			return event.Quote{}, false, err
		}
		s.counts.Lines++
		q, ok := record.ParseQuote(line)
		if !ok {
			s.counts.Malformed++
			s.log.Debug("Malformed quote skipped", slog.Uint64("line", s.counts.Lines))
			continue
		}
		if !s.filter.Match(q.Instrument) {
			s.counts.Filtered++
			continue
		}
		return q, true, nil
	}
}

func (s *Quotes) Counters() Counters { return s.counts }

// QuoteFile is a Quotes reading a memory-mapped file. Quotes it returns point
// into the mapping and stay valid until Close.
type QuoteFile struct {
	*Quotes
	file *os.File
	m    mmap.MMap
}

// OpenQuoteFile maps path read-only.
func OpenQuoteFile(path string, f record.Filter, log *slog.Logger) (*QuoteFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open QUOTES file %q: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	qf := &QuoteFile{file: file}
	// an empty file cannot be mapped
	if info.Size() > 0 {
		m, err := mmap.Map(file, mmap.RDONLY, 0)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to mmap %q: %w", path, err)
		}
		qf.m = m
	}
	qf.Quotes = &Quotes{lines: &bufferLines{b: qf.m}, filter: f, log: log}
	log.Debug("Quotes file mapped", slog.String("path", path), slog.Int64("bytes", info.Size()))
	return qf, nil
}

func (q *QuoteFile) Close() error {
	if q.m != nil {
		if err := q.m.Unmap(); err != nil {
			_ = q.file.Close()
			return fmt.Errorf("failed to unmap: %w", err)
		}
		q.m = nil
	}
	return q.file.Close()
}
