// Command validator starts the streaming ADE validation service.
//
// It consumes mention batches from Kafka, runs each batch through the full
// evidence pipeline (normalisation, fuzzy matching against the reference
// vocabulary, consistency checking, pattern aggregation, confidence
// filtering), publishes the decision batches back to Kafka, persists runs in
// PostgreSQL, and serves the latest results over an HTTP API.
//
// Usage:
//
//	go run ./cmd/validator [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinsight/ade-signal-pipeline/internal/filter"
	"github.com/clinsight/ade-signal-pipeline/internal/fuzzy"
	"github.com/clinsight/ade-signal-pipeline/internal/pipeline"
	"github.com/clinsight/ade-signal-pipeline/internal/reference"
	"github.com/clinsight/ade-signal-pipeline/internal/store"
	"github.com/clinsight/ade-signal-pipeline/pkg/config"
	"github.com/clinsight/ade-signal-pipeline/pkg/health"
	"github.com/clinsight/ade-signal-pipeline/pkg/kafka"
	"github.com/clinsight/ade-signal-pipeline/pkg/logger"
	"github.com/clinsight/ade-signal-pipeline/pkg/metrics"
	"github.com/clinsight/ade-signal-pipeline/pkg/middleware"
	"github.com/clinsight/ade-signal-pipeline/pkg/postgres"
	pkgredis "github.com/clinsight/ade-signal-pipeline/pkg/redis"
	"github.com/clinsight/ade-signal-pipeline/pkg/resilience"
)

// main boots the validator service: it loads the reference vocabulary, wires
// the pipeline with its match cache, starts the Kafka consume loop, and
// serves the HTTP API. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting validator service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	vocab, err := loadReference(cfg.Reference)
	if err != nil {
		slog.Error("loading reference", "error", err)
		os.Exit(1)
	}
	m.ReferenceSize.WithLabelValues("drugs").Set(float64(vocab.Drugs.Len()))
	m.ReferenceSize.WithLabelValues("side_effects").Set(float64(vocab.Effects.Len()))
	m.ReferenceSize.WithLabelValues("associations").Set(float64(vocab.Associations()))

	matcher, err := newMatcher(cfg.Pipeline)
	if err != nil {
		slog.Error("creating matcher", "error", err)
		os.Exit(1)
	}

	filterCfg := filter.Config{
		MinFreq:              cfg.Pipeline.MinFreq,
		ConsistencyThreshold: cfg.Pipeline.ConsistencyThreshold,
	}
	pipe, err := pipeline.New(vocab, matcher, filterCfg, cfg.Pipeline.MatchWorkers, m)
	if err != nil {
		slog.Error("creating pipeline", "error", err)
		os.Exit(1)
	}

	// Redis is optional: without it matches are computed directly.
	var cache *fuzzy.MatchCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, running without match cache", "error", err)
	} else {
		defer redisClient.Close()
		cache = fuzzy.NewMatchCache(matcher, redisClient, cfg.Redis.CacheTTL)
		pipe.UseMatchCache(cache)
		slog.Info("match cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	resultStore := store.New(db)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Decisions)
	defer producer.Close()

	apiHandler := pipeline.NewHandler()

	runner := &batchRunner{
		pipe:         pipe,
		producer:     producer,
		store:        resultStore,
		api:          apiHandler,
		cache:        cache,
		metrics:      m,
		batchTimeout: cfg.Pipeline.BatchTimeout,
	}
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.MentionBatches, runner.handle)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("mention-batch consumer started", "topic", cfg.Kafka.Topics.MentionBatches)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(true, db.Ping))
	if redisClient != nil {
		// The match cache is optional, so a dead Redis only degrades.
		checker.Register("redis", health.PingCheck(false, redisClient.Ping))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs/latest", apiHandler.Latest)
	mux.HandleFunc("GET /api/v1/summary", apiHandler.Summary)
	if cache != nil {
		mux.HandleFunc("POST /api/v1/cache/flush", func(w http.ResponseWriter, r *http.Request) {
			deleted, err := cache.Invalidate(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"keys_deleted":%d}`, deleted)
		})
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("validator service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("validator service stopped")
}

// batchRunner processes one mention batch per Kafka message: run the
// pipeline, publish the decision batch, record it for the API, persist it.
type batchRunner struct {
	pipe         *pipeline.Pipeline
	producer     *kafka.Producer
	store        *store.Store
	api          *pipeline.Handler
	cache        *fuzzy.MatchCache
	batchTimeout time.Duration

	metrics    *metrics.Metrics
	prevHits   int64
	prevMisses int64
}

func (b *batchRunner) handle(ctx context.Context, key, value []byte) error {
	batch, err := kafka.DecodeJSON[pipeline.MentionBatch](value)
	if err != nil {
		// Malformed batches are logged and skipped; redelivery cannot fix them.
		slog.Error("skipping undecodable mention batch", "key", string(key), "error", err)
		return nil
	}
	slog.Info("mention batch received", "batch_id", batch.BatchID, "mentions", len(batch.Mentions))

	var result *pipeline.Result
	err = resilience.WithTimeout(ctx, b.batchTimeout, "pipeline-run", func(ctx context.Context) error {
		var runErr error
		result, runErr = b.pipe.Run(ctx, batch.Mentions)
		return runErr
	})
	if err != nil {
		return fmt.Errorf("running pipeline for batch %s: %w", batch.BatchID, err)
	}
	b.syncCacheMetrics()

	decisions := pipeline.DecisionBatch{
		RunID:       result.RunID,
		BatchID:     batch.BatchID,
		CompletedAt: time.Now().UTC(),
		Decisions:   result.Decisions,
		Summary:     result.Summary,
	}
	if err := b.producer.Publish(ctx, kafka.Event{Key: batch.BatchID, Value: decisions}); err != nil {
		return fmt.Errorf("publishing decisions for batch %s: %w", batch.BatchID, err)
	}

	b.api.Record(result)

	err = resilience.Retry(ctx, "save-run", resilience.RetryConfig{}, func() error {
		return b.store.SaveRun(ctx, result)
	})
	if err != nil {
		// The decision batch is already published; persistence failures
		// should not trigger Kafka redelivery and a duplicate publish.
		slog.Error("persisting run failed", "run_id", result.RunID, "error", err)
	}
	return nil
}

// syncCacheMetrics folds the cache's cumulative hit/miss counts into the
// Prometheus counters as deltas.
func (b *batchRunner) syncCacheMetrics() {
	if b.cache == nil {
		return
	}
	hits, misses := b.cache.Stats()
	b.metrics.MatchCacheHitsTotal.Add(float64(hits - b.prevHits))
	b.metrics.MatchCacheMissesTotal.Add(float64(misses - b.prevMisses))
	b.prevHits, b.prevMisses = hits, misses
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

func newMatcher(cfg config.PipelineConfig) (*fuzzy.Matcher, error) {
	if cfg.UseFallbackScorer {
		return fuzzy.NewMatcherWithScorer(fuzzy.FallbackScorer{}, cfg.FuzzyThreshold)
	}
	return fuzzy.NewMatcher(cfg.FuzzyThreshold)
}
