// Package pipeline wires the evidence stages together: normalisation, fuzzy
// matching, consistency checking, pattern aggregation, and confidence
// filtering. Each stage fully materialises its output before the next stage
// starts; fuzzy matching is the only stage parallelised internally, and the
// aggregation pass always completes before any decision is scored.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clinsight/ade-signal-pipeline/internal/consistency"
	"github.com/clinsight/ade-signal-pipeline/internal/filter"
	"github.com/clinsight/ade-signal-pipeline/internal/fuzzy"
	"github.com/clinsight/ade-signal-pipeline/internal/mention"
	"github.com/clinsight/ade-signal-pipeline/internal/normalize"
	"github.com/clinsight/ade-signal-pipeline/internal/pattern"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/pkg/metrics"
	"github.com/clinsight/ade-signal-pipeline/pkg/tracing"
)

// MatchFunc scores one term against a dictionary. side is "drug" or "ade"
// and feeds cache keying and metrics labels.
type MatchFunc func(ctx context.Context, term string, dict *reference.Dictionary, side string) fuzzy.Result

// Pipeline runs the full evidence pipeline over in-memory mention batches.
type Pipeline struct {
	vocab   *reference.Vocabulary
	match   MatchFunc
	cfg     filter.Config
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Result bundles every output table of one run.
type Result struct {
	RunID      string              `json:"run_id"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMs int64               `json:"duration_ms"`
	Normalized []mention.Normalized `json:"normalized"`
	Validated  []mention.Validated  `json:"validated"`
	Decisions  []mention.Decision   `json:"decisions"`
	Summary    Summary              `json:"summary"`
}

// New creates a Pipeline over the given vocabulary using the plain matcher.
// workers caps the fuzzy-matching parallelism; values below 1 mean
// sequential. m may be nil when metrics are not wanted.
func New(vocab *reference.Vocabulary, matcher *fuzzy.Matcher, cfg filter.Config, workers int, m *metrics.Metrics) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		vocab:   vocab,
		cfg:     cfg,
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "pipeline"),
	}
	p.match = func(_ context.Context, term string, dict *reference.Dictionary, _ string) fuzzy.Result {
		return matcher.Match(term, dict)
	}
	return p, nil
}

// UseMatchCache routes fuzzy matching through the Redis memoisation cache.
func (p *Pipeline) UseMatchCache(cache *fuzzy.MatchCache) {
	fingerprint := p.vocab.Fingerprint()
	p.match = func(ctx context.Context, term string, dict *reference.Dictionary, side string) fuzzy.Result {
		return cache.Match(ctx, term, dict, fingerprint, side)
	}
}

// Run executes all stages over the batch and returns the fully materialised
// result. It never aborts mid-batch for data reasons: unmatched or
// unvalidated mentions flow through with empty matched fields.
func (p *Pipeline) Run(ctx context.Context, mentions []mention.Mention) (*Result, error) {
	runID := newRunID()
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "pipeline-run", runID)
	span.SetAttr("mentions", len(mentions))

	normalized, err := p.normalizeAndMatch(ctx, mentions)
	if err != nil {
		p.countRun("error")
		return nil, err
	}

	validated := p.checkConsistency(ctx, normalized)
	patterns := p.aggregate(ctx, validated)

	decisions, err := p.score(ctx, validated, patterns)
	if err != nil {
		p.countRun("error")
		return nil, err
	}

	result := &Result{
		RunID:      runID,
		StartedAt:  start.UTC(),
		DurationMs: time.Since(start).Milliseconds(),
		Normalized: normalized,
		Validated:  validated,
		Decisions:  decisions,
		Summary:    buildSummary(decisions),
	}

	span.End()
	span.Log()
	p.countRun("ok")
	p.logger.Info("pipeline run complete",
		"run_id", runID,
		"mentions", len(mentions),
		"kept", result.Summary.Kept,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// normalizeAndMatch produces the normalised mention table. Matching is
// spread over a bounded worker pool; output order is preserved by index so
// the table is deterministic regardless of scheduling.
func (p *Pipeline) normalizeAndMatch(ctx context.Context, mentions []mention.Mention) ([]mention.Normalized, error) {
	defer p.observeStage("normalize_match", time.Now())

	normalized := make([]mention.Normalized, len(mentions))
	g, gctx := errgroup.WithContext(ctx)
	if p.workers > 1 {
		g.SetLimit(p.workers)
	} else {
		g.SetLimit(1)
	}

	for i, m := range mentions {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			nd := normalize.Normalize(m.DrugText)
			na := normalize.Normalize(m.ADEText)

			drugMatch := p.match(gctx, nd, p.vocab.Drugs, "drug")
			adeMatch := p.match(gctx, na, p.vocab.Effects, "ade")

			normalized[i] = mention.Normalized{
				Mention:             m,
				DrugNormalized:      nd,
				ADENormalized:       na,
				DrugMatched:         drugMatch.Key,
				DrugMatchedOriginal: drugMatch.Original,
				ADEMatched:          adeMatch.Key,
				ADEMatchedOriginal:  adeMatch.Original,
				DrugMatchScore:      drugMatch.Score,
				ADEMatchScore:       adeMatch.Score,
			}
			p.observeMatch("drug", drugMatch)
			p.observeMatch("ade", adeMatch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.MentionsProcessedTotal.Add(float64(len(mentions)))
	}
	return normalized, nil
}

func (p *Pipeline) checkConsistency(ctx context.Context, normalized []mention.Normalized) []mention.Validated {
	defer p.observeStage("consistency", time.Now())
	_, span := tracing.StartChildSpan(ctx, "consistency")
	defer span.End()
	return consistency.CheckAll(normalized, p.vocab)
}

func (p *Pipeline) aggregate(ctx context.Context, validated []mention.Validated) map[string]*pattern.DrugPattern {
	defer p.observeStage("aggregate", time.Now())
	_, span := tracing.StartChildSpan(ctx, "aggregate")
	defer span.End()
	return pattern.Build(validated)
}

func (p *Pipeline) score(ctx context.Context, validated []mention.Validated, patterns map[string]*pattern.DrugPattern) ([]mention.Decision, error) {
	defer p.observeStage("score", time.Now())
	_, span := tracing.StartChildSpan(ctx, "score")
	defer span.End()

	decisions, err := filter.DecideAll(validated, patterns, p.vocab, p.cfg)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		for _, d := range decisions {
			p.metrics.DecisionsTotal.WithLabelValues(d.Reason).Inc()
		}
	}
	return decisions, nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) observeMatch(side string, res fuzzy.Result) {
	if p.metrics == nil {
		return
	}
	p.metrics.MatchScore.WithLabelValues(side).Observe(float64(res.Score))
	outcome := "unmatched"
	if res.Key != "" {
		outcome = "matched"
	}
	p.metrics.MatchesTotal.WithLabelValues(side, outcome).Inc()
}

func (p *Pipeline) countRun(status string) {
	if p.metrics != nil {
		p.metrics.RunsTotal.WithLabelValues(status).Inc()
	}
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "run-unknown"
	}
	return "run-" + hex.EncodeToString(buf)
}
