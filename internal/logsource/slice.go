package logsource

import "sync/atomic"

// SliceSource serves lines from memory. FailAfter, when positive, makes the
// source fail with FailErr once that many lines have been served.
type SliceSource struct {
	lines []string
	pos   int

	FailAfter int
	FailErr   error

	err    error
	closed atomic.Int32
}

// NewSliceSource creates a source over lines.
func NewSliceSource(lines ...string) *SliceSource {
	return &SliceSource{lines: lines}
}

func (s *SliceSource) Name() string { return "memory" }

func (s *SliceSource) HasNext() bool {
	if s.err != nil || s.closed.Load() > 0 {
		return false
	}
	if s.FailAfter > 0 && s.pos >= s.FailAfter && s.FailErr != nil {
		s.err = s.FailErr
		return false
	}
	return s.pos < len(s.lines)
}

func (s *SliceSource) Next() string {
	line := s.lines[s.pos]
	s.pos++
	return line
}

func (s *SliceSource) Err() error { return s.err }

func (s *SliceSource) Close() error {
	s.closed.Add(1)
	return nil
}

// Closed reports how many times Close was called.
func (s *SliceSource) Closed() int { return int(s.closed.Load()) }
