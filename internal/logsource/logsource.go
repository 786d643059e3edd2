package logsource

import (
	"errors"

	"github.com/tinytelemetry/errtop/internal/model"
)

// ErrOpen is wrapped by every error returned when a source cannot be opened.
var ErrOpen = errors.New("logsource: cannot open source")

// LineSource yields lines in order. It is the pull contract consumed by the
// ingestor.
//
// Next may only be called after HasNext returned true. Once HasNext returns
// false, Err reports why: nil for a clean end of input, otherwise the read
// failure. Close releases the underlying resource and is idempotent.
type LineSource interface {
	HasNext() bool
	Next() string
	Err() error
	Close() error
	Name() string
}

// Interrupter is implemented by line sources whose HasNext can block on a
// read that only another goroutine can cut short. Interrupt must be safe to
// call concurrently with HasNext; a source that was interrupted reports a
// non-nil Err. Close is still called afterwards on the reading goroutine.
type Interrupter interface {
	Interrupt() error
}

// FormatTagger is implemented by line sources whose lines may carry their
// own wire format. LineFormat reports the format of the line last returned
// by Next; empty means the configured one.
type FormatTagger interface {
	LineFormat() string
}

// LogSource is the push contract of long-running receivers (TCP, OTLP, stdin).
// Implementations close Lines once stopped or drained.
// ChannelSource adapts it to LineSource.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of log lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "otlp", "stdin"
}
