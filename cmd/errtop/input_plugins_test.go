package main

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestBuildInputPlugins_RegistersPrimitives(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:  true,
		TCPAddr:     "127.0.0.1:4170",
		OTLPEnabled: false,
		OTLPAddr:    "127.0.0.1:4317",
	})

	want := []string{"tcp", "otlp", "stdin"}
	if len(plugins) != len(want) {
		t.Fatalf("expected %d plugins, got %d", len(want), len(plugins))
	}
	for i, name := range want {
		if plugins[i].Name() != name {
			t.Fatalf("plugins[%d] name = %q, want %q", i, plugins[i].Name(), name)
		}
	}
	if !plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be enabled when TCPEnabled=true")
	}
	if plugins[1].Enabled() {
		t.Fatal("expected otlp plugin to be disabled when OTLPEnabled=false")
	}
}

func TestBuildInputPlugins_TCPDisabled(t *testing.T) {
	t.Parallel()

	plugins := buildInputPlugins(InputPluginConfig{TCPEnabled: false, OTLPEnabled: true})
	if plugins[0].Enabled() {
		t.Fatal("expected tcp plugin to be disabled when TCPEnabled=false")
	}
	if !plugins[1].Enabled() {
		t.Fatal("expected otlp plugin to be enabled when OTLPEnabled=true")
	}
}

func TestTCPInputPlugin_DeliversLinesAndStops(t *testing.T) {
	t.Parallel()

	src, err := tcpInputPlugin{addr: "127.0.0.1:0", enabled: true}.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer src.Stop()
	if src.Name() != "tcp" {
		t.Fatalf("Name = %q, want tcp", src.Name())
	}

	addr := src.(tcpSource).server.Addr()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("[ERROR] boom\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.Close()

	select {
	case env := <-src.Lines():
		if env.Line != "[ERROR] boom" {
			t.Fatalf("line = %q", env.Line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tcp line")
	}

	src.Stop()
	for range src.Lines() {
	}
}

func TestTCPInputPlugin_BuildFailsOnBadAddress(t *testing.T) {
	t.Parallel()

	if _, err := (tcpInputPlugin{addr: "256.0.0.1:bad", enabled: true}).Build(context.Background()); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
