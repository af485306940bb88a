// Command extract parses a directory of brat standoff (.ann) annotation
// files and writes the flat drug-ADE mention table consumed by the
// pipeline.
//
// Usage:
//
//	go run ./cmd/extract -ann-dir data/n2c2/raw/test -out data/mentions.csv
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/clinsight/ade-signal-pipeline/internal/extract"
	"github.com/clinsight/ade-signal-pipeline/internal/pipeline"
	"github.com/clinsight/ade-signal-pipeline/pkg/logger"
)

func main() {
	annDir := flag.String("ann-dir", "", "directory containing .ann annotation files")
	out := flag.String("out", "mentions.csv", "output mention CSV path")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger.Setup(*logLevel, "text")

	if *annDir == "" {
		fmt.Fprintln(os.Stderr, "missing required -ann-dir")
		flag.Usage()
		os.Exit(2)
	}

	mentions, err := extract.ExtractDir(*annDir)
	if err != nil {
		slog.Error("extraction failed", "error", err)
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		slog.Error("creating output file", "path", *out, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := pipeline.WriteMentions(f, mentions); err != nil {
		slog.Error("writing mention table", "path", *out, "error", err)
		os.Exit(1)
	}
	slog.Info("mention table written", "path", *out, "mentions", len(mentions))
}
