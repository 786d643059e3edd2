package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/model"
	"github.com/tinytelemetry/errtop/internal/otlpreceiver"
	"github.com/tinytelemetry/errtop/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled  bool
	TCPAddr     string
	OTLPEnabled bool
	OTLPAddr    string
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	return []InputSourcePlugin{
		tcpInputPlugin{addr: cfg.TCPAddr, enabled: cfg.TCPEnabled},
		otlpInputPlugin{addr: cfg.OTLPAddr, enabled: cfg.OTLPEnabled},
		stdinInputPlugin{},
	}
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return tcpSource{server: server}, nil
}

// tcpSource exposes a running tcpserver.Server as a push source.
type tcpSource struct {
	server *tcpserver.Server
}

func (s tcpSource) Lines() <-chan model.IngestEnvelope { return s.server.Lines() }
func (s tcpSource) Stop()                              { _ = s.server.Stop() }
func (s tcpSource) Name() string                       { return "tcp" }

type otlpInputPlugin struct {
	addr    string
	enabled bool
}

func (p otlpInputPlugin) Name() string { return "otlp" }

func (p otlpInputPlugin) Enabled() bool { return p.enabled }

func (p otlpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	receiver := otlpreceiver.New(p.addr)
	if err := receiver.Start(); err != nil {
		return nil, fmt.Errorf("start otlp receiver: %w", err)
	}
	return receiver, nil
}

type stdinInputPlugin struct{}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx), nil
}
