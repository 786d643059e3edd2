package logsource

import (
	"bufio"
	"errors"
	"io"
	"log"
	"os"
	"sync"
)

const (
	// DefaultMaxLineSize is the default maximum size (in bytes) of a single line.
	// Longer lines are truncated, never rejected.
	DefaultMaxLineSize = 1024 * 1024 // 1MB

	readBufferSize = 64 * 1024
)

// ReaderConfig holds tunable parameters for reader-backed sources.
type ReaderConfig struct {
	MaxLineSize int
}

// ReaderSource reads newline-delimited lines from any io.Reader.
// CRLF line endings are accepted.
type ReaderSource struct {
	name        string
	r           *bufio.Reader
	closer      io.Closer
	interrupt   func() error
	maxLineSize int

	pending   string
	hasLine   bool
	done      bool
	err       error
	truncated int

	closeOnce sync.Once
	closeErr  error
}

// NewReaderSource wraps r. If r is also an io.Closer, Close closes it.
func NewReaderSource(name string, r io.Reader, conf ...ReaderConfig) *ReaderSource {
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 && conf[0].MaxLineSize > 0 {
		maxLineSize = conf[0].MaxLineSize
	}
	s := &ReaderSource{
		name:        name,
		r:           bufio.NewReaderSize(r, readBufferSize),
		maxLineSize: maxLineSize,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	if f, ok := r.(*os.File); ok {
		s.interrupt = f.Close
	}
	return s
}

func (s *ReaderSource) Name() string { return s.name }

func (s *ReaderSource) HasNext() bool {
	if s.hasLine {
		return true
	}
	if s.done {
		return false
	}

	line, err := s.readLine()
	switch {
	case err == nil:
		s.pending, s.hasLine = line, true
	case errors.Is(err, io.EOF):
		s.done = true
		if line != "" {
			s.pending, s.hasLine = line, true
		}
	default:
		s.done = true
		s.err = err
	}
	return s.hasLine
}

func (s *ReaderSource) Next() string {
	line := s.pending
	s.pending, s.hasLine = "", false
	return line
}

func (s *ReaderSource) Err() error { return s.err }

// Interrupt unblocks a pending read by closing the underlying file, if the
// source reads one. Decoders layered on top are left to Close.
func (s *ReaderSource) Interrupt() error {
	if s.interrupt == nil {
		return nil
	}
	return s.interrupt()
}

// Truncated returns how many lines were cut at the maximum line size.
func (s *ReaderSource) Truncated() int { return s.truncated }

func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// readLine reads one line without its terminator. Bytes beyond maxLineSize
// are discarded up to the next newline.
func (s *ReaderSource) readLine() (string, error) {
	var buf []byte
	cut := false
	for {
		chunk, err := s.r.ReadSlice('\n')
		if room := s.maxLineSize - len(buf); len(chunk) > room {
			if !cut {
				cut = true
				s.truncated++
				if s.truncated == 1 {
					log.Printf("logsource: %s: line exceeded max size (%d bytes), truncating", s.name, s.maxLineSize)
				}
			}
			chunk = chunk[:max(room, 0)]
		}
		buf = append(buf, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return string(trimEOL(buf)), err
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
