package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

const usage = `Usage:
  errtop report [flags] <path>...   rank the most frequent error messages in log files
  errtop serve [flags]              ingest stdin/TCP/OTLP and serve the query API
  errtop version                    print version information

Run "errtop <command> -h" for command flags.
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "report":
		return reportCommand(args[1:], stdout, stderr)
	case "serve":
		return serveCommand(args[1:], stderr)
	case "version", "-version", "--version":
		printVersion(stdout)
		return nil
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "errtop - Error Frequency Analyzer\n")
	fmt.Fprintf(w, "  Version:    %s\n", version)
	fmt.Fprintf(w, "  Commit:     %s\n", commit)
	fmt.Fprintf(w, "  Built:      %s\n", buildTime)
	fmt.Fprintf(w, "  Go version: %s\n", goVersion)
}

func reportCommand(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, logFormat, normalize string
	opts := reportOptions{}
	fs.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/errtop/config.yml)")
	fs.IntVar(&opts.K, "k", -1, "number of messages to report (default from top-k)")
	fs.StringVar(&opts.Output, "output", outputText, "report output: text, json or yaml")
	fs.StringVar(&logFormat, "input-format", "", "log line format: bracket, keyvalue or json")
	fs.StringVar(&normalize, "normalize", "", "message normalization: exact or masked")

	paths, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
	if normalize != "" {
		cfg.Normalize = normalize
	}
	if opts.K < 0 {
		opts.K = cfg.TopK
	}
	opts.Paths = paths

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runReport(ctx, cfg, opts, stdout)
}

func serveCommand(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath string
	fs.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/errtop/config.yml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return runServer(cfg)
}

// parseInterleaved parses flags that may appear before, between or after
// positional arguments and returns the positionals in order.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}
