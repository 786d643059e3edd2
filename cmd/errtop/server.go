package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/errtop/internal/engine"
	"github.com/tinytelemetry/errtop/internal/httpserver"
	"github.com/tinytelemetry/errtop/internal/ingest"
	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/socketrpc"
	"golang.org/x/sync/errgroup"
)

// progressLogEvery throttles batch progress lines in the runtime log.
const progressLogEvery = 10

// runServer ingests the configured push sources and serves queries over the
// HTTP API and the unix socket until interrupted.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	ec, err := cfg.engineConfig()
	if err != nil {
		return err
	}
	ec.Ingest.OnBatch = func(_ context.Context, p ingest.Progress) error {
		if p.Batches%progressLogEvery == 0 {
			log.Printf("ingest: %s: %d lines, %d recorded, %d skipped", p.Source, p.Lines, p.Recorded, p.Skipped)
		}
		return nil
	}
	eng, err := engine.New(ec)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, eng)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for TUI IPC
	sockServer := socketrpc.NewServer(cfg.SocketPath, eng)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:  cfg.TCPEnabled,
		TCPAddr:     cfg.TCPAddr,
		OTLPEnabled: cfg.OTLPEnabled,
		OTLPAddr:    cfg.OTLPAddr,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, eng, mux)

	g, gctx := errgroup.WithContext(ctx)

	if mux.HasSources() {
		if err := eng.Start(gctx, logsource.NewChannelSource(gctx, mux)); err != nil {
			return fmt.Errorf("failed to start ingestion: %w", err)
		}
		g.Go(func() error {
			res, err := eng.Wait(context.Background())
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("ingest: stopped: %v", err)
				return nil
			}
			log.Printf("ingest: finished: %d lines, %d recorded, %d skipped, %d blank",
				res.Lines, res.Recorded, res.Skipped, res.Blank)
			return nil
		})
	}

	// Queries keep being served after the sources drain, until a signal.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	eng.Stop()
	mux.Stop()
	for name, n := range mux.Forwarded() {
		log.Printf("server: %s forwarded %d lines", name, n)
	}

	signal.Stop(sigCh)

	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "errtop")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "errtop.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, eng *engine.Engine, mux *SourceMultiplexer) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := red.Bold(true).Render(`
    ╔═╗╦═╗╦═╗╔╦╗╔═╗╔═╗
    ║╣ ╠╦╝╠╦╝ ║ ║ ║╠═╝
    ╚═╝╩╚═╩╚═ ╩ ╚═╝╩  `)

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	endpoint := func(label string, enabled bool, addr string) string {
		if enabled {
			return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(addr))
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render("disabled"))
	}

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, endpoint("HTTP API", cfg.APIEnabled, cfg.APIAddr))
	lines = append(lines, endpoint("TCP Ingest", cfg.TCPEnabled, cfg.TCPAddr))
	lines = append(lines, endpoint("OTLP/gRPC", cfg.OTLPEnabled, cfg.OTLPAddr))
	lines = append(lines, endpoint("Unix Socket", true, shortenPath(cfg.SocketPath)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Analysis"), "")
	if mux.HasSources() {
		lines = append(lines, fmt.Sprintf("    %s  Sources        %s", check, dim.Render(strings.Join(mux.SourceNames(), ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Sources        %s", dot, yellow.Render("none")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Format         %s", check, dim.Render(eng.Format())))
	lines = append(lines, fmt.Sprintf("    %s  Normalize      %s", check, dim.Render(cfg.Normalize)))
	policy := eng.Policy()
	capacity := policy.Strategy.String()
	if policy.MaxKeys > 0 {
		capacity = fmt.Sprintf("%s (max %d keys)", capacity, policy.MaxKeys)
	}
	lines = append(lines, fmt.Sprintf("    %s  Capacity       %s", check, dim.Render(capacity)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
