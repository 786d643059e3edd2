package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tinytelemetry/errtop/internal/engine"
	"github.com/tinytelemetry/errtop/internal/ingest"
	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/model"
	"gopkg.in/yaml.v3"
)

// Report output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

type reportOptions struct {
	Paths  []string
	K      int
	Output string
}

// reportDoc is the structured form of a report.
type reportDoc struct {
	K           int            `json:"k" yaml:"k"`
	Approximate bool           `json:"approximate" yaml:"approximate"`
	Entries     model.Snapshot `json:"entries" yaml:"entries"`
	Ingest      ingest.Result  `json:"ingest" yaml:"ingest"`
}

// runReport ingests every path to completion and writes the top-K ranking
// to w. A single path is read sequentially; several paths are ingested as
// parallel shards. "-" reads stdin.
func runReport(ctx context.Context, cfg appConfig, opts reportOptions, w io.Writer) error {
	if len(opts.Paths) == 0 {
		return fmt.Errorf("report: no input path given")
	}
	if opts.K < 0 {
		return fmt.Errorf("report: invalid k: %d", opts.K)
	}
	switch opts.Output {
	case outputText, outputJSON, outputYAML:
	default:
		return fmt.Errorf("report: unknown output format %q (want text, json or yaml)", opts.Output)
	}

	ec, err := cfg.engineConfig()
	if err != nil {
		return err
	}
	eng, err := engine.New(ec)
	if err != nil {
		return err
	}

	var res ingest.Result
	if len(opts.Paths) == 1 {
		src, err := openInput(opts.Paths[0])
		if err != nil {
			return err
		}
		res, err = eng.Ingest(ctx, src)
		if err != nil {
			return err
		}
	} else {
		sources := make([]logsource.LineSource, 0, len(opts.Paths))
		for _, path := range opts.Paths {
			src, err := openInput(path)
			if err != nil {
				for _, s := range sources {
					_ = s.Close()
				}
				return err
			}
			sources = append(sources, src)
		}
		res, err = eng.IngestShards(ctx, sources)
		if err != nil {
			return err
		}
	}

	snapshot, err := eng.TopK(opts.K)
	if err != nil {
		return err
	}
	return writeReport(w, opts.Output, reportDoc{
		K:           opts.K,
		Approximate: eng.Policy().Approximate(),
		Entries:     snapshot,
		Ingest:      res,
	})
}

func openInput(path string) (logsource.LineSource, error) {
	if path == "-" {
		return logsource.NewReaderSource("stdin", io.NopCloser(os.Stdin)), nil
	}
	src, err := logsource.OpenFile(path)
	if err != nil {
		return nil, ingest.Unavailable(path, err)
	}
	return src, nil
}

func writeReport(w io.Writer, output string, doc reportDoc) error {
	if doc.Entries == nil {
		doc.Entries = model.Snapshot{}
	}
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		var b strings.Builder
		for _, e := range doc.Entries {
			fmt.Fprintf(&b, "- %s (%d times)\n", e.Message, e.Count)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
}
