package ingest

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable reports that a line source could not be opened or
// failed mid-stream. Counts recorded before the failure stay valid.
var ErrSourceUnavailable = errors.New("ingest: source unavailable")

// SourceError carries the progress made before a source failed.
// It matches ErrSourceUnavailable with errors.Is and unwraps to the cause.
type SourceError struct {
	Source         string
	LinesProcessed uint64
	// LastGoodLine is the 1-based number of the last line read successfully,
	// 0 when the source failed before yielding any line.
	LastGoodLine uint64
	Err          error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("ingest: source %q unavailable after %d lines: %v", e.Source, e.LinesProcessed, e.Err)
}

func (e *SourceError) Is(target error) bool { return target == ErrSourceUnavailable }

func (e *SourceError) Unwrap() error { return e.Err }

// Unavailable wraps an open failure of source.
func Unavailable(source string, err error) *SourceError {
	return &SourceError{Source: source, Err: err}
}
