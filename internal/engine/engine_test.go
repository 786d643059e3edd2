package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tinytelemetry/errtop/internal/ingest"
	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/model"
	"github.com/tinytelemetry/errtop/internal/ranker"
)

const exampleLog = `[INFO] Server started
[ERROR] DB connection failed
[WARN] High memory usage
[ERROR] DB connection failed
[ERROR] Timeout while reading data
[INFO] User login successful
[ERROR] DB connection failed
`

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNew_RejectsUnknownStrategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"format", Config{Format: "xml"}},
		{"normalize", Config{Normalize: "fuzzy"}},
		{"policy", Config{Policy: ranker.Policy{Strategy: ranker.StrategyLowestCount}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); err == nil {
				t.Fatalf("New(%+v) succeeded, want error", tt.cfg)
			}
		})
	}
}

func TestEngine_IngestFileExample(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte(exampleLog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	e := newEngine(t, Config{})
	if e.Format() != "bracket" {
		t.Fatalf("Format() = %q", e.Format())
	}
	res, err := e.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if res.Lines != 7 {
		t.Fatalf("Lines = %d, want 7", res.Lines)
	}

	got, err := e.TopK(3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	want := model.Snapshot{
		{Message: "DB connection failed", Count: 3},
		{Message: "Timeout while reading data", Count: 1},
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("TopK(3) = %+v, want %+v", got, want)
	}

	st, _ := e.Stats()
	if st.Ranker.Distinct != 2 || st.Ranker.Recorded != 4 || st.Ingest.Lines != 7 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestEngine_IngestFileMissing(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Config{})
	_, err := e.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.log"))
	if !errors.Is(err, ingest.ErrSourceUnavailable) || !errors.Is(err, logsource.ErrOpen) {
		t.Fatalf("IngestFile err = %v, want ErrSourceUnavailable and ErrOpen", err)
	}
	snap, err := e.TopK(3)
	if err != nil || snap == nil || len(snap) != 0 {
		t.Fatalf("TopK after failed open = %+v, %v; want empty snapshot", snap, err)
	}
}

func TestEngine_TopKArguments(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Config{})
	if _, err := e.Ingest(context.Background(), logsource.NewReaderSource("s", strings.NewReader(exampleLog))); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := e.TopK(-1); !errors.Is(err, ErrInvalidK) {
		t.Fatalf("TopK(-1) err = %v", err)
	}
	if snap, _ := e.TopK(0); len(snap) != 0 {
		t.Fatalf("TopK(0) = %+v", snap)
	}
	if snap, _ := e.TopK(1); len(snap) != 1 || snap[0].Count != 3 {
		t.Fatalf("TopK(1) = %+v", snap)
	}
}

// gatedSource yields lines only when the test allows it.
type gatedSource struct {
	lines       chan string
	next        string
	once        sync.Once
	interrupted atomic.Bool
}

func (g *gatedSource) Name() string { return "gated" }
func (g *gatedSource) HasNext() bool {
	l, ok := <-g.lines
	g.next = l
	return ok
}
func (g *gatedSource) Next() string { return g.next }
func (g *gatedSource) Err() error {
	if g.interrupted.Load() {
		return io.ErrClosedPipe
	}
	return nil
}
func (g *gatedSource) Interrupt() error {
	g.interrupted.Store(true)
	return g.Close()
}
func (g *gatedSource) Close() error {
	g.once.Do(func() { close(g.lines) })
	return nil
}

func TestEngine_ConcurrentQueriesDuringIngestion(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Config{})
	src := &gatedSource{lines: make(chan string)}
	if err := e.Start(context.Background(), src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start(context.Background(), logsource.NewSliceSource()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start err = %v, want ErrBusy", err)
	}

	stopReaders := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopReaders:
					return
				default:
				}
				snap, err := e.TopK(3)
				if err != nil {
					t.Errorf("TopK: %v", err)
					return
				}
				for i := 1; i < len(snap); i++ {
					if snap[i-1].Count < snap[i].Count {
						t.Errorf("snapshot not sorted: %+v", snap)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 300; i++ {
		src.lines <- fmt.Sprintf("[ERROR] failure %d", i%5)
	}
	_ = src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.Wait(ctx)
	close(stopReaders)
	wg.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Recorded != 300 {
		t.Fatalf("Recorded = %d, want 300", res.Recorded)
	}
	if snap, _ := e.TopK(5); len(snap) != 5 || snap[0].Count != 60 {
		t.Fatalf("TopK(5) = %+v", snap)
	}
}

func TestEngine_StopCancelsWorker(t *testing.T) {
	t.Parallel()

	e := newEngine(t, Config{})
	src := &gatedSource{lines: make(chan string)}
	if err := e.Start(context.Background(), src); err != nil {
		t.Fatalf("Start: %v", err)
	}
	src.lines <- "[ERROR] one"

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	_, err := e.Wait(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait err = %v, want context.Canceled", err)
	}
	if e.table.Count("one") != 1 {
		t.Fatalf("count = %d, want 1", e.table.Count("one"))
	}
	if _, err := e.Ingest(context.Background(), logsource.NewSliceSource("[ERROR] two")); err != nil {
		t.Fatalf("Ingest after Stop: %v", err)
	}
}

func writeZstdLog(t *testing.T, path string, lines int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	w := bufio.NewWriter(enc)
	for i := 0; i < lines; i++ {
		fmt.Fprintf(w, "[ERROR] worker %d stalled\n", i%50)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close zstd writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestEngine_CancelWhileReadingCompressedFile(t *testing.T) {
	t.Parallel()

	const lines = 400_000
	path := filepath.Join(t.TempDir(), "big.log.zst")
	writeZstdLog(t, path, lines)

	tests := []struct {
		name  string
		delay time.Duration
	}{
		{"immediate", 0},
		{"1ms", time.Millisecond},
		{"5ms", 5 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEngine(t, Config{Ingest: ingest.Options{BatchSize: 64}})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			timer := time.AfterFunc(tt.delay, cancel)
			defer timer.Stop()

			res, err := e.IngestFile(ctx, path)
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Fatalf("IngestFile err = %v, want nil or context.Canceled", err)
			}
			if err == nil && res.Recorded != lines {
				t.Fatalf("Recorded = %d, want %d on a clean run", res.Recorded, lines)
			}
			if res.Recorded > lines {
				t.Fatalf("Recorded = %d, more than %d lines written", res.Recorded, lines)
			}
			if _, err := e.Ingest(context.Background(), logsource.NewSliceSource("[ERROR] after")); err != nil {
				t.Fatalf("Ingest after cancel: %v", err)
			}
		})
	}
}

func TestEngine_IngestShardsMatchesSequential(t *testing.T) {
	t.Parallel()

	parts := []string{exampleLog, exampleLog, "[ERROR] Timeout while reading data\n"}

	seq := newEngine(t, Config{})
	par := newEngine(t, Config{Ingest: ingest.Options{BatchSize: 2}})
	var sources []logsource.LineSource
	for i, p := range parts {
		if _, err := seq.Ingest(context.Background(), logsource.NewReaderSource(fmt.Sprint(i), strings.NewReader(p))); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		sources = append(sources, logsource.NewReaderSource(fmt.Sprint(i), strings.NewReader(p)))
	}
	if _, err := par.IngestShards(context.Background(), sources); err != nil {
		t.Fatalf("IngestShards: %v", err)
	}

	a, _ := seq.TopK(3)
	b, _ := par.TopK(3)
	if len(a) != len(b) {
		t.Fatalf("sequential %+v vs sharded %+v", a, b)
	}
	for i := range a {
		if a[i].Message != b[i].Message || a[i].Count != b[i].Count {
			t.Fatalf("sequential %+v vs sharded %+v", a, b)
		}
	}
}
