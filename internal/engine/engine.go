// Package engine wires a classifier, a ranker table and an ingestor into the
// query facade used by the report command, the service and the TUI.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tinytelemetry/errtop/internal/ingest"
	"github.com/tinytelemetry/errtop/internal/logparse"
	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/model"
	"github.com/tinytelemetry/errtop/internal/ranker"
)

var (
	// ErrBusy is returned when ingestion is requested while a background
	// ingestion is still running. The table has a single writer.
	ErrBusy = errors.New("engine: ingestion already running")

	// ErrInvalidK is returned by TopK for a negative k.
	ErrInvalidK = errors.New("engine: k must not be negative")
)

// Config selects the strategies of an engine. The zero value ranks
// bracket-format lines by exact message with no key ceiling.
type Config struct {
	Format    string
	Normalize string
	Policy    ranker.Policy
	Ingest    ingest.Options
}

// Engine is the read side of a running analysis. TopK and Stats are safe to
// call at any time, including while ingestion runs on another goroutine.
type Engine struct {
	classifier logparse.Classifier
	table      *ranker.Table
	ingestor   *ingest.Ingestor

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc
	done   chan struct{}
	result ingest.Result
	err    error
}

var _ model.TopKReader = (*Engine)(nil)

// New builds an engine. Unknown formats, normalize modes and invalid
// policies are rejected here, never at ingestion time.
func New(cfg Config) (*Engine, error) {
	classifier, err := logparse.New(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	normalize, err := logparse.NewNormalizer(cfg.Normalize)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	table, err := ranker.New(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		classifier: classifier,
		table:      table,
		ingestor:   ingest.New(classifier, normalize, table, cfg.Ingest),
	}, nil
}

// Format returns the name of the classifier in use.
func (e *Engine) Format() string { return e.classifier.Name() }

// Policy returns the effective capacity policy.
func (e *Engine) Policy() ranker.Policy { return e.table.Policy() }

func (e *Engine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.busy = true
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// Ingest runs ingestion of src on the calling goroutine.
func (e *Engine) Ingest(ctx context.Context, src logsource.LineSource) (ingest.Result, error) {
	if err := e.acquire(); err != nil {
		_ = src.Close()
		return ingest.Result{}, err
	}
	defer e.release()
	return e.ingestor.Run(ctx, src)
}

// IngestFile opens path and ingests it. An open failure is reported as
// ingest.ErrSourceUnavailable and leaves the table untouched.
func (e *Engine) IngestFile(ctx context.Context, path string) (ingest.Result, error) {
	src, err := logsource.OpenFile(path)
	if err != nil {
		return ingest.Result{}, ingest.Unavailable(path, err)
	}
	return e.Ingest(ctx, src)
}

// IngestShards ingests sources in parallel through a single merge point.
func (e *Engine) IngestShards(ctx context.Context, sources []logsource.LineSource) (ingest.Result, error) {
	if err := e.acquire(); err != nil {
		for _, src := range sources {
			_ = src.Close()
		}
		return ingest.Result{}, err
	}
	defer e.release()
	return e.ingestor.RunSharded(ctx, sources)
}

// Start ingests src on a worker goroutine and returns immediately.
// Use Wait for the outcome and Stop to cancel.
func (e *Engine) Start(ctx context.Context, src logsource.LineSource) error {
	if err := e.acquire(); err != nil {
		_ = src.Close()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel, e.done = cancel, done
	e.result, e.err = ingest.Result{}, nil
	e.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		res, err := e.ingestor.Run(ctx, src)
		e.mu.Lock()
		e.result, e.err = res, err
		e.busy = false
		e.mu.Unlock()
	}()
	return nil
}

// Wait blocks until the ingestion started by Start finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context) (ingest.Result, error) {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return ingest.Result{}, nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ingest.Result{}, ctx.Err()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.err
}

// Stop cancels the ingestion started by Start and waits for it.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// TopK returns up to k messages, most frequent first. k == 0 yields an
// empty snapshot.
func (e *Engine) TopK(k int) (model.Snapshot, error) {
	if k < 0 {
		return nil, ErrInvalidK
	}
	return e.table.TopK(k), nil
}

// Stats returns ranker and ingestion statistics.
func (e *Engine) Stats() (model.Stats, error) {
	return model.Stats{
		Ranker: e.table.Stats(),
		Ingest: e.ingestor.Stats(),
	}, nil
}
