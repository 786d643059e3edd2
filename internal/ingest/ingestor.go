package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/errtop/internal/logparse"
	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/model"
	"github.com/tinytelemetry/errtop/internal/ranker"
)

// Options tunes a run.
type Options struct {
	// BatchSize is the number of lines between two yields to OnBatch.
	// Zero means model.DefaultBatchSize.
	BatchSize int

	// OnBatch is called every BatchSize lines. It may query the table.
	// A non-nil error stops the run and is returned wrapped. In sharded
	// runs it is called from the shard goroutines.
	OnBatch func(ctx context.Context, p Progress) error

	// Parallelism bounds the number of shards ingesting at once.
	// Zero means one goroutine per source.
	Parallelism int
}

// Result summarizes a run. Lines = Recorded + Skipped + Blank + non-error lines.
type Result struct {
	Lines    uint64 `json:"lines" yaml:"lines"`
	Recorded uint64 `json:"recorded" yaml:"recorded"`
	Skipped  uint64 `json:"skipped" yaml:"skipped"`
	Blank    uint64 `json:"blank" yaml:"blank"`
	Batches  uint64 `json:"batches" yaml:"batches"`
}

func (r *Result) add(o Result) {
	r.Lines += o.Lines
	r.Recorded += o.Recorded
	r.Skipped += o.Skipped
	r.Blank += o.Blank
	r.Batches += o.Batches
}

// Progress is handed to OnBatch.
type Progress struct {
	Source string
	Result
}

// Ingestor routes classified lines into a ranker table. It is the only
// writer of the table it was built with.
type Ingestor struct {
	classifier logparse.Classifier
	byFormat   map[string]logparse.Classifier
	normalize  logparse.Normalizer
	table      *ranker.Table
	opts       Options

	lines    atomic.Uint64
	recorded atomic.Uint64
	skipped  atomic.Uint64
	blank    atomic.Uint64
	batches  atomic.Uint64
	running  atomic.Int32

	errMu   sync.Mutex
	lastErr error
}

// New creates an Ingestor. A nil normalizer keeps messages as classified.
func New(classifier logparse.Classifier, normalize logparse.Normalizer, table *ranker.Table, opts Options) *Ingestor {
	if normalize == nil {
		normalize = logparse.Exact
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = model.DefaultBatchSize
	}
	byFormat := make(map[string]logparse.Classifier, len(logparse.Formats()))
	for _, f := range logparse.Formats() {
		if c, err := logparse.New(f); err == nil {
			byFormat[f] = c
		}
	}
	byFormat[classifier.Name()] = classifier
	return &Ingestor{
		classifier: classifier,
		byFormat:   byFormat,
		normalize:  normalize,
		table:      table,
		opts:       opts,
	}
}

// Run ingests src until it is exhausted, fails, or ctx is done. src is
// closed on every exit path. Counts recorded before an error stay in the
// table.
func (in *Ingestor) Run(ctx context.Context, src logsource.LineSource) (Result, error) {
	res, err := in.consume(ctx, src, in.table.Record, nil)
	in.finish(err)
	return res, err
}

type recordFunc func(message string)

// consume is the per-line loop shared by Run and the shards of RunSharded.
// flush, when set, runs at every batch boundary before OnBatch and once
// more on exit.
func (in *Ingestor) consume(ctx context.Context, src logsource.LineSource, record recordFunc, flush func()) (res Result, err error) {
	in.running.Add(1)
	defer in.running.Add(-1)

	// Close stays on this goroutine; a blocked read is cut short through
	// Interrupt, which the source keeps safe to call concurrently.
	if it, ok := src.(logsource.Interrupter); ok {
		stop := context.AfterFunc(ctx, func() { _ = it.Interrupt() })
		defer stop()
	}
	defer func() {
		_ = src.Close()
		if flush != nil {
			flush()
		}
	}()

	tagged, _ := src.(logsource.FormatTagger)
	batch := uint64(in.opts.BatchSize)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !src.HasNext() {
			break
		}
		line := src.Next()
		res.Lines++
		in.lines.Add(1)
		classifier := in.classifier
		if tagged != nil {
			classifier = in.classifierFor(tagged.LineFormat())
		}
		in.route(classifier, line, &res, record)

		if res.Lines%batch == 0 {
			res.Batches++
			in.batches.Add(1)
			if flush != nil {
				flush()
			}
			if in.opts.OnBatch != nil {
				if err := in.opts.OnBatch(ctx, Progress{Source: src.Name(), Result: res}); err != nil {
					return res, fmt.Errorf("ingest: batch hook: %w", err)
				}
			}
		}
	}

	// A source that ran dry cleanly wins over a cancellation that came
	// after the last line; an interrupted source fails with ctx's error.
	srcErr := src.Err()
	if srcErr == nil {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, &SourceError{
		Source:         src.Name(),
		LinesProcessed: res.Lines,
		LastGoodLine:   res.Lines,
		Err:            srcErr,
	}
}

// classifierFor picks the classifier for a line tagged with format. Untagged
// and unknown formats use the configured classifier.
func (in *Ingestor) classifierFor(format string) logparse.Classifier {
	if format == "" {
		return in.classifier
	}
	if c, ok := in.byFormat[format]; ok {
		return c
	}
	return in.classifier
}

// route classifies one line and updates the tallies.
func (in *Ingestor) route(classifier logparse.Classifier, line string, res *Result, record recordFunc) {
	if strings.TrimSpace(line) == "" {
		res.Blank++
		in.blank.Add(1)
		return
	}
	entry := classifier.Classify(line)
	switch entry.Severity {
	case model.SeverityError:
		msg := in.normalize(entry.Message)
		if msg == "" {
			res.Skipped++
			in.skipped.Add(1)
			return
		}
		record(msg)
		res.Recorded++
		in.recorded.Add(1)
	case model.SeverityUnknown:
		res.Skipped++
		in.skipped.Add(1)
	}
}

func (in *Ingestor) finish(err error) {
	in.errMu.Lock()
	in.lastErr = err
	in.errMu.Unlock()
}

// Stats returns live totals across every run of this Ingestor.
func (in *Ingestor) Stats() model.IngestStats {
	st := model.IngestStats{
		Lines:    in.lines.Load(),
		Recorded: in.recorded.Load(),
		Skipped:  in.skipped.Load(),
		Blank:    in.blank.Load(),
		Batches:  in.batches.Load(),
		Running:  in.running.Load() > 0,
	}
	in.errMu.Lock()
	if in.lastErr != nil {
		st.LastErr = in.lastErr.Error()
	}
	in.errMu.Unlock()
	return st
}
