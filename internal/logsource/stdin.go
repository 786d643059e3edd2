package logsource

import (
	"context"
	"io"
	"log"
	"os"
	"sync"

	"github.com/tinytelemetry/errtop/internal/model"
)

// DefaultStdinBuffer is the default channel buffer size for stdin lines.
const DefaultStdinBuffer = 50_000

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
}

// StdinSource pushes lines read from stdin.
type StdinSource struct {
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultStdinBuffer
	var rc ReaderConfig
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		rc.MaxLineSize = conf[0].MaxLineSize
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, NewReaderSource("stdin", io.NopCloser(r), rc))
	return s
}

func (s *StdinSource) read(ctx context.Context, src *ReaderSource) {
	defer close(s.ch)

	// A single goroutine does the blocking reads so cancellation is noticed
	// without waiting for the next line.
	results := make(chan string)
	go func() {
		defer close(results)
		for src.HasNext() {
			select {
			case results <- src.Next():
			case <-ctx.Done():
				return
			}
		}
		if err := src.Err(); err != nil {
			log.Printf("logsource: stdin read error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-results:
			if !ok {
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: line}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.stopOnce.Do(s.cancel) }
func (s *StdinSource) Name() string                       { return "stdin" }
