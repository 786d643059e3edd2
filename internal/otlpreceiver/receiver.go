// Package otlpreceiver accepts OTLP/gRPC log exports and renders each record
// as a bracket-format line, so the bracket classifier can rank them.
package otlpreceiver

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/tinytelemetry/errtop/internal/logparse"
	"github.com/tinytelemetry/errtop/internal/model"
)

const (
	// DefaultAddr is the standard OTLP/gRPC port on loopback.
	DefaultAddr = "127.0.0.1:4317"

	// DefaultLineChannelSize is the default buffer size for rendered lines.
	DefaultLineChannelSize = 100_000
)

// Config holds tunable parameters for the receiver.
type Config struct {
	LineChannelSize int
}

// Receiver is an OTLP logs service that pushes rendered lines to a channel.
type Receiver struct {
	collogspb.UnimplementedLogsServiceServer

	addr     string
	listener net.Listener
	server   *grpc.Server
	lineChan chan model.IngestEnvelope
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	serveWG  sync.WaitGroup
}

// New creates a receiver for addr. An empty addr means DefaultAddr.
func New(addr string, conf ...Config) *Receiver {
	if addr == "" {
		addr = DefaultAddr
	}
	size := DefaultLineChannelSize
	if len(conf) > 0 && conf[0].LineChannelSize > 0 {
		size = conf[0].LineChannelSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		addr:     addr,
		lineChan: make(chan model.IngestEnvelope, size),
		ctx:      ctx,
		cancel:   cancel,
		server:   grpc.NewServer(),
	}
	collogspb.RegisterLogsServiceServer(r.server, r)
	return r
}

// Start listens and serves in the background.
func (r *Receiver) Start() error {
	listener, err := net.Listen("tcp", r.addr)
	if err != nil {
		return err
	}
	r.listener = listener

	r.serveWG.Add(1)
	go func() {
		defer r.serveWG.Done()
		if err := r.server.Serve(listener); err != nil && r.ctx.Err() == nil {
			log.Printf("otlpreceiver: serve error: %v", err)
		}
	}()
	return nil
}

// Export implements the OTLP logs service.
func (r *Receiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				line := RenderRecord(rec)
				select {
				case r.lineChan <- model.IngestEnvelope{Source: "otlp", Line: line, Format: logparse.FormatBracket}:
				case <-r.ctx.Done():
					return nil, status.Error(codes.Unavailable, "receiver shutting down")
				case <-ctx.Done():
					return nil, status.FromContextError(ctx.Err()).Err()
				}
			}
		}
	}
	return &collogspb.ExportLogsServiceResponse{}, nil
}

// RenderRecord formats a log record as "[SEVERITY] body" on a single line.
// SeverityText wins over SeverityNumber. Non-string bodies are rendered as
// protojson.
func RenderRecord(rec *logspb.LogRecord) string {
	sev := logparse.NormalizeSeverity(rec.GetSeverityText())
	if sev == model.SeverityUnknown {
		sev = logparse.SeverityFromNumber(int(rec.GetSeverityNumber()), false)
	}
	body := renderBody(rec.GetBody())
	return fmt.Sprintf("[%s] %s", sev, body)
}

func renderBody(v *commonpb.AnyValue) string {
	if v == nil {
		return ""
	}
	var s string
	if sv, ok := v.GetValue().(*commonpb.AnyValue_StringValue); ok {
		s = sv.StringValue
	} else {
		b, err := protojson.Marshal(v)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	return strings.Join(strings.Fields(s), " ")
}

// Stop stops accepting exports, waits for in-flight ones and closes Lines.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		r.server.GracefulStop()
		r.serveWG.Wait()
		close(r.lineChan)
	})
}

// Lines returns the channel of rendered lines.
func (r *Receiver) Lines() <-chan model.IngestEnvelope { return r.lineChan }

func (r *Receiver) Name() string { return "otlp" }

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (r *Receiver) Addr() string {
	if r.listener != nil {
		return r.listener.Addr().String()
	}
	return r.addr
}
