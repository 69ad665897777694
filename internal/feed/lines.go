package feed

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const maxLineBytes = 1 << 20

// lineReader yields trimmed, non-empty lines. A line longer than the buffer
// is cut at the buffer size and the rest of it is discarded, so the caller
// sees one undecodable record instead of a read error.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader, size int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, size)}
}

func (l *lineReader) next() ([]byte, error) {
	for {
		line, err := l.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			out := bytes.Clone(line)
			if err := l.discardLine(); err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return out, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			return bytes.Clone(trimmed), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (l *lineReader) discardLine() error {
	for {
		_, err := l.r.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
