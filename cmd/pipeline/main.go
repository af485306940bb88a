// Command pipeline runs the full ADE evidence pipeline as a batch job: it
// loads the pharmacovigilance reference tables and a mention CSV, runs
// normalisation, fuzzy matching, consistency checking, aggregation, and
// confidence filtering, and writes the output tables.
//
// Usage:
//
//	go run ./cmd/pipeline -mentions data/mentions.csv \
//	    -drug-table data/sider/drug_names.tsv \
//	    -effect-table data/sider/meddra_all_se.tsv \
//	    -out-dir out/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/clinsight/ade-signal-pipeline/internal/filter"
	"github.com/clinsight/ade-signal-pipeline/internal/fuzzy"
	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/pipeline"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/internal/store"
	"github.com/clinsight/ade-signal-pipeline/pkg/config"
	"github.com/clinsight/ade-signal-pipeline/pkg/logger"
	"github.com/clinsight/ade-signal-pipeline/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "optional path to config file")
	mentionsPath := flag.String("mentions", "", "input mention CSV")
	drugTable := flag.String("drug-table", "", "drug reference table (TSV)")
	effectTable := flag.String("effect-table", "", "side-effect reference table (TSV)")
	atcMap := flag.String("atc-map", "", "optional ATC-to-compound mapping table (TSV)")
	outDir := flag.String("out-dir", ".", "directory for output tables")
	fuzzyThreshold := flag.Int("fuzzy-threshold", -1, "fuzzy match threshold (0-100)")
	minFreq := flag.Int("min-freq", -1, "minimum reference frequency for high-confidence acceptance")
	consistency := flag.Float64("consistency-threshold", -1, "consistency ratio threshold (0-1)")
	useFallback := flag.Bool("fallback-scorer", false, "use the degraded exact/substring scorer")
	persist := flag.Bool("persist", false, "persist results to Postgres")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Flag overrides; validated below before any processing.
	if *fuzzyThreshold >= 0 {
		cfg.Pipeline.FuzzyThreshold = *fuzzyThreshold
	}
	if *minFreq >= 0 {
		cfg.Pipeline.MinFreq = *minFreq
	}
	if *consistency >= 0 {
		cfg.Pipeline.ConsistencyThreshold = *consistency
	}
	if *drugTable != "" {
		cfg.Reference.DrugTablePath = *drugTable
	}
	if *effectTable != "" {
		cfg.Reference.EffectTablePath = *effectTable
	}
	if *atcMap != "" {
		cfg.Reference.ATCMapPath = *atcMap
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *mentionsPath == "" {
		fmt.Fprintln(os.Stderr, "missing required -mentions")
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	vocab, err := loadReference(cfg.Reference)
	if err != nil {
		slog.Error("loading reference", "error", err)
		os.Exit(1)
	}

	mentions, err := readMentions(*mentionsPath)
	if err != nil {
		slog.Error("loading mentions", "path", *mentionsPath, "error", err)
		os.Exit(1)
	}
	slog.Info("mentions loaded", "count", len(mentions))

	matcher, err := newMatcher(cfg.Pipeline.FuzzyThreshold, *useFallback)
	if err != nil {
		slog.Error("creating matcher", "error", err)
		os.Exit(1)
	}

	filterCfg := filter.Config{
		MinFreq:              cfg.Pipeline.MinFreq,
		ConsistencyThreshold: cfg.Pipeline.ConsistencyThreshold,
	}
	pipe, err := pipeline.New(vocab, matcher, filterCfg, cfg.Pipeline.MatchWorkers, nil)
	if err != nil {
		slog.Error("creating pipeline", "error", err)
		os.Exit(1)
	}

	result, err := pipe.Run(ctx, mentions)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	if err := writeOutputs(*outDir, result); err != nil {
		slog.Error("writing outputs", "error", err)
		os.Exit(1)
	}

	if *persist {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := store.New(db).SaveRun(ctx, result); err != nil {
			slog.Error("persisting run", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("batch complete",
		"run_id", result.RunID,
		"total", result.Summary.Total,
		"kept", result.Summary.Kept,
		"drugs_matched", result.Summary.MatchRates.DrugsMatched,
		"ades_matched", result.Summary.MatchRates.ADEsMatched,
		"both_matched", result.Summary.MatchRates.BothMatched,
	)
}

func loadReference(cfg config.ReferenceConfig) (*reference.Vocabulary, error) {
	drugs, err := reference.LoadDrugTable(cfg.DrugTablePath)
	if err != nil {
		return nil, err
	}
	effects, err := reference.LoadEffectTable(cfg.EffectTablePath)
	if err != nil {
		return nil, err
	}
	atc, err := reference.LoadATCMap(cfg.ATCMapPath)
	if err != nil {
		return nil, err
	}
	return reference.Build(drugs, effects, atc), nil
}

func readMentions(path string) ([]mention.Mention, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pipeline.ReadMentions(f)
}

func newMatcher(threshold int, fallback bool) (*fuzzy.Matcher, error) {
	if fallback {
		return fuzzy.NewMatcherWithScorer(fuzzy.FallbackScorer{}, threshold)
	}
	return fuzzy.NewMatcher(threshold)
}

func writeOutputs(dir string, result *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	outputs := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"mentions_normalized.csv", func(f *os.File) error { return pipeline.WriteNormalized(f, result.Normalized) }},
		{"mentions_validated.csv", func(f *os.File) error { return pipeline.WriteValidated(f, result.Validated) }},
		{"ade_filtered_results.csv", func(f *os.File) error { return pipeline.WriteDecisions(f, result.Decisions) }},
		{"drug_summary.csv", func(f *os.File) error { return pipeline.WriteSummary(f, result.Summary.PerDrug) }},
	}
	for _, out := range outputs {
		path := filepath.Join(dir, out.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := out.write(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("output written", "path", path)
	}
	return nil
}
