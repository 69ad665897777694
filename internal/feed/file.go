package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"
)

// FileSource replays newline delimited JSON records from a file or stdin
// ("-"). It returns io.EOF after the last record.
type FileSource struct {
	r       io.ReadCloser
	lines   *lineReader
	limiter *rate.Limiter
}

// OpenFile opens path for replay. perSecond paces the replay; zero replays as
// fast as the consumer reads.
func OpenFile(path string, perSecond float64) (*FileSource, error) {
	var r io.ReadCloser = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open feed file: %w", err)
		}
		r = f
	}
	return NewReaderSource(r, perSecond), nil
}

// NewReaderSource replays records from r.
func NewReaderSource(r io.ReadCloser, perSecond float64) *FileSource {
	src := &FileSource{r: r, lines: newLineReader(r, maxLineBytes)}
	if perSecond > 0 {
		src.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return src
}

// Next returns the next non-empty line.
func (s *FileSource) Next(ctx context.Context) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	line, err := s.lines.next()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	return line, nil
}

// Close releases the underlying reader.
func (s *FileSource) Close() error {
	return s.r.Close()
}
