package logsource

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tinytelemetry/errtop/internal/model"
)

type pushSource struct {
	lines chan model.IngestEnvelope
	once  sync.Once
	stops int
}

func newPushSource(lines ...string) *pushSource {
	p := &pushSource{lines: make(chan model.IngestEnvelope, len(lines))}
	for _, l := range lines {
		p.lines <- model.IngestEnvelope{Source: "push", Line: l}
	}
	return p
}

func (p *pushSource) Lines() <-chan model.IngestEnvelope { return p.lines }
func (p *pushSource) Name() string                       { return "push" }
func (p *pushSource) Stop() {
	p.stops++
	p.once.Do(func() { close(p.lines) })
}

func TestChannelSource_DrainsUntilClosed(t *testing.T) {
	t.Parallel()

	push := newPushSource("x", "y")
	push.Stop()

	src := NewChannelSource(context.Background(), push)
	got := drain(t, src)
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Fatalf("lines = %q", got)
	}
	if src.Err() != nil {
		t.Fatalf("Err() = %v, want nil", src.Err())
	}
	if src.Name() != "push" {
		t.Fatalf("Name() = %q", src.Name())
	}
}

func TestChannelSource_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	src := NewChannelSource(ctx, newPushSource())
	cancel()

	if src.HasNext() {
		t.Fatal("HasNext() = true after cancel")
	}
	if !errors.Is(src.Err(), context.Canceled) {
		t.Fatalf("Err() = %v, want context.Canceled", src.Err())
	}
}

func TestChannelSource_CloseStopsOnce(t *testing.T) {
	t.Parallel()

	push := newPushSource()
	src := NewChannelSource(context.Background(), push)
	_ = src.Close()
	_ = src.Close()
	if push.stops != 1 {
		t.Fatalf("Stop called %d times, want 1", push.stops)
	}
}

func TestChannelSource_LineFormatFollowsEnvelope(t *testing.T) {
	t.Parallel()

	push := &pushSource{lines: make(chan model.IngestEnvelope, 2)}
	push.lines <- model.IngestEnvelope{Source: "otlp", Line: "[ERROR] x", Format: "bracket"}
	push.lines <- model.IngestEnvelope{Source: "tcp", Line: `{"level":"error","msg":"y"}`}
	push.Stop()

	src := NewChannelSource(context.Background(), push)
	var formats []string
	for src.HasNext() {
		src.Next()
		formats = append(formats, src.LineFormat())
	}
	if len(formats) != 2 || formats[0] != "bracket" || formats[1] != "" {
		t.Fatalf("formats = %q, want [bracket \"\"]", formats)
	}
}
