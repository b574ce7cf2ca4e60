// Package linker runs a full linkage: it indexes the primary dataset, queries
// every row of each secondary dataset against it and widens the matched
// primary rows with the secondary values.
package linker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/index"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/merge"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/csvlink/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/csvlink/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/csvlink/pkg/tracing"
)

// Source pairs a dataset with the fields chosen for it.
type Source struct {
	Dataset   *dataset.Dataset
	Selection dataset.Selection
}

// MatchCache memoizes decisions for identical queries against the same index.
// The returned bool reports a cache hit.
type MatchCache interface {
	GetOrCompute(ctx context.Context, key string, compute func() Decision) (Decision, bool)
}

// EventRecorder receives one LinkEvent per processed secondary row.
type EventRecorder interface {
	Track(key string, value any)
}

// Linker is safe to reuse across runs; each Run builds its own index.
type Linker struct {
	cfg       config.MatchingConfig
	policy    merge.Policy
	threshold scorer.Threshold
	metrics   *metrics.Metrics
	cache     MatchCache
	events    EventRecorder
	logger    *slog.Logger
}

type Option func(*Linker)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Linker) { l.metrics = m }
}

func WithCache(c MatchCache) Option {
	return func(l *Linker) { l.cache = c }
}

func WithEvents(r EventRecorder) Option {
	return func(l *Linker) { l.events = r }
}

// New validates the matching settings and returns a Linker.
func New(cfg config.MatchingConfig, opts ...Option) (*Linker, error) {
	policy, err := merge.ParsePolicy(cfg.Conflict)
	if err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	l := &Linker{
		cfg:    cfg,
		policy: policy,
		threshold: scorer.Threshold{
			MinScore:   cfg.MinScore,
			MinOverlap: cfg.MinOverlap,
		},
		logger: logger.WithComponent("linker"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run links every secondary source into the primary. The primary is the
// first source of the run; secondaries are merged in the order given.
func (l *Linker) Run(ctx context.Context, primary Source, secondaries ...Source) (*merge.Accumulator, *Report, error) {
	if primary.Dataset == nil || len(secondaries) == 0 {
		return nil, nil, apperrors.Newf(apperrors.ErrInsufficientSources, 0,
			"at least two source datasets are required, got %d", countSources(primary, secondaries))
	}

	ctx, span := tracing.Start(ctx, "link", logger.RunID(ctx))
	defer span.End()
	log := l.logger
	if runID := logger.RunID(ctx); runID != "" {
		log = log.With("run_id", runID)
	}

	for _, src := range append([]Source{primary}, secondaries...) {
		if err := src.Selection.Validate(src.Dataset); err != nil {
			if apperrors.IsFatal(err) {
				return nil, nil, err
			}
			log.Warn("empty field selection", "dataset", src.Dataset.Name, "error", err)
		}
	}

	for _, src := range secondaries {
		if src.Selection.Weighted() {
			log.Warn("field weights apply to the primary dataset only; ignoring them",
				"dataset", src.Dataset.Name)
		}
	}

	report := &Report{Primary: primary.Dataset.Name}
	acc := merge.NewAccumulator(primary.Dataset.Headers, l.policy)

	log.Info("loading data", "dataset", primary.Dataset.Name)
	ix, err := l.buildIndex(ctx, primary, acc)
	if err != nil {
		return nil, nil, err
	}
	report.PrimaryRows = ix.DocCount()
	report.Terms = ix.TermCount()
	report.Fingerprint = ix.Fingerprint()

	groups := make([]merge.Group, len(secondaries))
	for i, src := range secondaries {
		g, err := acc.Reserve(src.Dataset.Name, src.Dataset.Headers)
		if err != nil {
			return nil, nil, err
		}
		groups[i] = g
	}

	for i, src := range secondaries {
		log.Info("merging", "dataset", src.Dataset.Name)
		dr, err := l.linkDataset(ctx, ix, acc, src, groups[i])
		if err != nil {
			return nil, nil, err
		}
		report.Datasets = append(report.Datasets, dr)
		log.Info("merged",
			"dataset", dr.Dataset,
			"processed", dr.Processed,
			"matched", dr.Matched,
			"unmatched", dr.Unmatched,
			"empty_queries", dr.EmptyQueries,
			"below_threshold", dr.BelowThreshold,
			"duration_ms", dr.Duration.Milliseconds(),
		)
	}

	span.SetAttr("primary_rows", report.PrimaryRows)
	span.SetAttr("datasets", len(report.Datasets))
	return acc, report, nil
}

func countSources(primary Source, secondaries []Source) int {
	n := len(secondaries)
	if primary.Dataset != nil {
		n++
	}
	return n
}

func (l *Linker) buildIndex(ctx context.Context, primary Source, acc *merge.Accumulator) (*index.Index, error) {
	_, span := tracing.Start(ctx, "index", "")
	start := time.Now()
	defer func() {
		span.End()
		l.observeStage("index", start)
	}()

	builder := index.NewBuilder(index.Params{K1: l.cfg.K1, B: l.cfg.B})
	if err := builder.Configure(primary.Selection.Weights()); err != nil {
		return nil, err
	}
	if err := builder.Start(); err != nil {
		return nil, err
	}

	names := primary.Selection.Names()
	for rec, err := range primary.Dataset.Rows(ctx) {
		if err != nil {
			return nil, err
		}
		rowID := acc.AddPrimary(rec.Values)
		docID, err := builder.AddDocument(rec.Pick(names))
		if err != nil {
			return nil, err
		}
		if docID != rowID {
			return nil, apperrors.Newf(apperrors.ErrInternal, 0,
				"document %d out of step with output row %d", docID, rowID)
		}
	}
	if builder.Len() == 0 {
		return nil, apperrors.Newf(apperrors.ErrInsufficientSources, 0,
			"%s has no data rows to index", primary.Dataset.Name)
	}

	ix, err := builder.Consolidate()
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.DocsIndexedTotal.Add(float64(ix.DocCount()))
		l.metrics.IndexTermsGauge.Set(float64(ix.TermCount()))
	}
	span.SetAttr("docs", ix.DocCount())
	span.SetAttr("terms", ix.TermCount())
	return ix, nil
}

// linkDataset streams one secondary dataset in batches. Rows of a batch are
// scored concurrently and applied to the accumulator in row order, so the
// output does not depend on the worker count.
func (l *Linker) linkDataset(ctx context.Context, ix *index.Index, acc *merge.Accumulator, src Source, g merge.Group) (DatasetReport, error) {
	ctx, span := tracing.Start(ctx, "match:"+src.Dataset.Name, "")
	start := time.Now()
	defer span.End()

	dr := DatasetReport{Dataset: src.Dataset.Name}
	names := src.Selection.Names()
	batch := make([]dataset.Record, 0, l.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		decisions, err := l.scoreBatch(ctx, ix, batch, names)
		if err != nil {
			return err
		}
		for i, d := range decisions {
			if err := l.apply(ctx, acc, g, batch[i], d, &dr); err != nil {
				return err
			}
		}
		batch = batch[:0]
		return nil
	}

	for rec, err := range src.Dataset.Rows(ctx) {
		if err != nil {
			return dr, err
		}
		batch = append(batch, rec)
		if len(batch) == l.cfg.BatchSize {
			if err := flush(); err != nil {
				return dr, err
			}
		}
	}
	if err := flush(); err != nil {
		return dr, err
	}

	dr.Duration = time.Since(start)
	l.observeStage("match", start)
	span.SetAttr("processed", dr.Processed)
	span.SetAttr("matched", dr.Matched)
	return dr, nil
}

func (l *Linker) scoreBatch(ctx context.Context, ix *index.Index, batch []dataset.Record, names []string) ([]Decision, error) {
	decisions := make([]Decision, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for i, rec := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = l.decide(gctx, ix, Query(rec, names))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func (l *Linker) decide(ctx context.Context, ix *index.Index, query []string) Decision {
	if len(query) == 0 {
		return Decision{Status: StatusEmptyQuery, DocID: -1}
	}
	if l.cache == nil {
		return Decide(ix, query, l.threshold)
	}
	d, hit := l.cache.GetOrCompute(ctx, CacheKey(ix.Fingerprint(), l.threshold, query), func() Decision {
		return Decide(ix, query, l.threshold)
	})
	if l.metrics != nil {
		if hit {
			l.metrics.CacheHitsTotal.Inc()
		} else {
			l.metrics.CacheMissesTotal.Inc()
		}
	}
	return d
}

func (l *Linker) apply(ctx context.Context, acc *merge.Accumulator, g merge.Group, rec dataset.Record, d Decision, dr *DatasetReport) error {
	dr.Processed++
	ev := LinkEvent{
		RunID:        logger.RunID(ctx),
		Dataset:      g.Dataset,
		Row:          rec.Line,
		Status:       d.Status,
		PrimaryRow:   -1,
		Certainty:    d.Certainty,
		MatchedTerms: d.MatchedTerms,
		Timestamp:    time.Now().UTC(),
	}

	switch d.Status {
	case StatusEmptyQuery:
		dr.EmptyQueries++
	case StatusUnmatched:
		dr.Unmatched++
	case StatusBelowThreshold:
		dr.BelowThreshold++
	case StatusMatched:
		outcome, err := acc.Merge(d.DocID, g, rec.Values, d.Certainty)
		if err != nil {
			return fmt.Errorf("merging %s row %d: %w", g.Dataset, rec.Line, err)
		}
		dr.Matched++
		ev.PrimaryRow = d.DocID
		ev.Outcome = outcome.String()
		if outcome != merge.Written {
			dr.Conflicts++
			if l.metrics != nil {
				l.metrics.MatchConflictsTotal.WithLabelValues(g.Dataset, outcome.String()).Inc()
			}
		}
		if l.metrics != nil {
			l.metrics.MatchCertainty.WithLabelValues(g.Dataset).Observe(d.Certainty)
		}
	}

	if l.metrics != nil {
		l.metrics.LinkQueriesTotal.WithLabelValues(g.Dataset, string(d.Status)).Inc()
	}
	if l.events != nil {
		l.events.Track(fmt.Sprintf("%s:%d", g.Dataset, rec.Line), ev)
	}
	return nil
}

func (l *Linker) observeStage(stage string, start time.Time) {
	if l.metrics != nil {
		l.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Query builds the search terms of a secondary row: the normalized tokens of
// each selected field, concatenated in selection order.
func Query(rec dataset.Record, names []string) []string {
	var terms []string
	for _, name := range names {
		if v, ok := rec.Get(name); ok {
			terms = append(terms, normalizer.Normalize(v)...)
		}
	}
	return terms
}
