package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/events"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/linker"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/linker/cache"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/prompt"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/health"
	pkgkafka "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/tracing"
)

// promptFunc asks for the fields of one dataset.
type promptFunc func(ctx context.Context, question string, d *dataset.Dataset) (dataset.Selection, error)

type app struct {
	stdin  *os.File
	stderr io.Writer
	prompt promptFunc
}

func terminalPrompt(in *os.File, out io.Writer) promptFunc {
	return func(ctx context.Context, question string, d *dataset.Dataset) (dataset.Selection, error) {
		return prompt.Fields(ctx, in, out, question, d)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	opts, positional, flagSet, err := parseFlags(args, a.stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts, flagSet)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, a.stderr)
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx)

	ctx, span := tracing.Start(ctx, "run", runID)
	defer func() {
		span.End()
		span.Log(log)
	}()

	sources, err := a.loadSources(ctx, cfg, positional, opts.fields)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.NewRegistry())
	if cfg.Metrics.Enabled && cfg.Metrics.Port > 0 {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m.Handler())
		defer shutdown(context.Background())
	}
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Error("writing metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
			}
		}()
	}

	writer, err := sink.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer writer.Close()

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient = pkgredis.NewClient(cfg.Redis)
		defer redisClient.Close()
	}
	if err := preflight(ctx, cfg, redisClient, writer); err != nil {
		return err
	}

	linkerOpts := []linker.Option{linker.WithMetrics(m)}
	var matchCache *cache.MatchCache
	if redisClient != nil {
		matchCache = cache.New(redisClient, cfg.Redis)
		if opts.resetCache {
			if err := matchCache.Invalidate(ctx); err != nil {
				return apperrors.Newf(apperrors.ErrUnavailable, 0, "%v", err)
			}
		}
		linkerOpts = append(linkerOpts, linker.WithCache(matchCache))
	}
	if cfg.Kafka.Enabled {
		producer := pkgkafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		collector := events.NewCollector(producer, cfg.Kafka.BatchSize, opts.flushInterval, m)
		collector.Start(ctx)
		defer func() {
			if err := collector.Close(context.Background()); err != nil {
				log.Warn("link events not fully published", "pending", collector.BufferLen(), "error", err)
			}
		}()
		linkerOpts = append(linkerOpts, linker.WithEvents(collector))
	}

	l, err := linker.New(cfg.Matching, linkerOpts...)
	if err != nil {
		return err
	}
	acc, report, err := l.Run(ctx, sources[0], sources[1:]...)
	if err != nil {
		return err
	}
	if matchCache != nil {
		hits, misses := matchCache.Stats()
		log.Info("match cache", "hits", hits, "misses", misses)
	}

	log.Info("writing output", "sink", cfg.Output.Sink, "path", cfg.Output.FilePath(), "table", cfg.Output.Table)
	_, writeSpan := tracing.Start(ctx, "write", "")
	n, err := writer.Write(ctx, acc)
	writeSpan.End()
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	m.OutputRowsTotal.Add(float64(n))

	log.Info("done",
		"rows", n,
		"columns", len(acc.Columns()),
		"matched", report.Matched(),
		"fingerprint", report.Fingerprint,
	)
	return nil
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cfg *config.Config, opts *options, flagSet *pflag.FlagSet) {
	if flagSet.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if flagSet.Changed("sink") {
		cfg.Output.Sink = opts.sink
	}
	if flagSet.Changed("table") {
		cfg.Output.Table = opts.table
	}
	if flagSet.Changed("absent") {
		cfg.Output.AbsentValue = opts.absent
	}
	if flagSet.Changed("min-score") {
		cfg.Matching.MinScore = opts.minScore
	}
	if flagSet.Changed("min-overlap") {
		cfg.Matching.MinOverlap = opts.minOverlap
	}
	if flagSet.Changed("workers") {
		cfg.Matching.Workers = opts.workers
	}
	if flagSet.Changed("batch-size") {
		cfg.Matching.BatchSize = opts.batchSize
	}
	if flagSet.Changed("conflict") {
		cfg.Matching.Conflict = opts.conflict
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if flagSet.Changed("metrics-port") {
		cfg.Metrics.Port = opts.metricsPort
		cfg.Metrics.Enabled = opts.metricsPort > 0
	}
	if flagSet.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = opts.metricsTextfile
	}
}

// loadSources opens every dataset and resolves its field selection from the
// --fields flags, then the config file, then the interactive prompt.
func (a *app) loadSources(ctx context.Context, cfg *config.Config, positional, fieldSpecs []string) ([]linker.Source, error) {
	paths := positional
	if len(paths) == 0 {
		for _, src := range cfg.Sources {
			paths = append(paths, src.Path)
		}
	}
	if len(paths) < 2 {
		return nil, apperrors.Newf(apperrors.ErrInsufficientSources, 0,
			"at least two source datasets are required, got %d", len(paths))
	}

	sources := make([]linker.Source, len(paths))
	for i, path := range paths {
		d, err := dataset.Open(path)
		if err != nil {
			return nil, err
		}
		sources[i].Dataset = d
	}

	resolved := make([]bool, len(sources))
	for _, spec := range fieldSpecs {
		target, sel, err := dataset.ParseSpec(spec)
		if err != nil {
			return nil, err
		}
		i := findSource(sources, target)
		if i < 0 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "--fields %s does not name a source file", target)
		}
		sources[i].Selection = sel
		resolved[i] = true
	}
	for _, src := range cfg.Sources {
		if len(src.Fields) == 0 {
			continue
		}
		i := findSource(sources, src.Path)
		if i < 0 || resolved[i] {
			continue
		}
		fields := make([]dataset.Field, len(src.Fields))
		for j, f := range src.Fields {
			fields[j] = dataset.Field{Name: f.Name, Weight: f.Weight}
		}
		sources[i].Selection = dataset.Selection{Fields: fields}
		resolved[i] = true
	}

	for i := range sources {
		if resolved[i] {
			continue
		}
		question := prompt.SecondaryQuestion
		if i == 0 {
			question = prompt.PrimaryQuestion
		}
		sel, err := a.prompt(ctx, question, sources[i].Dataset)
		if err != nil {
			return nil, err
		}
		sources[i].Selection = sel
	}
	return sources, nil
}

func findSource(sources []linker.Source, target string) int {
	for i, src := range sources {
		if src.Dataset.Matches(target) {
			return i
		}
	}
	return -1
}

// preflight checks every enabled external dependency before any work starts.
func preflight(ctx context.Context, cfg *config.Config, redisClient *pkgredis.Client, writer sink.Writer) error {
	checker := health.NewChecker()
	if redisClient != nil {
		checker.Register("redis", redisClient.Ping)
	}
	if cfg.Kafka.Enabled {
		checker.Register("kafka", func(ctx context.Context) error {
			return pkgkafka.Ping(ctx, cfg.Kafka.Brokers)
		})
	}
	if p, ok := writer.(interface{ Ping(context.Context) error }); ok {
		checker.Register(cfg.Output.Sink, p.Ping)
	}
	if checker.Len() == 0 {
		return nil
	}
	report := checker.Run(ctx)
	if err := report.Err(); err != nil {
		return err
	}
	slog.Debug("preflight passed", "components", checker.Len())
	return nil
}
