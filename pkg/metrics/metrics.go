// Package metrics defines the Prometheus collectors for a linkage run and
// exposes them for scraping or as a node_exporter textfile.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes recorded by LinkQueriesTotal.
const (
	ResultMatched    = "matched"
	ResultUnmatched  = "unmatched"
	ResultEmptyQuery = "empty_query"
	ResultBelowGate  = "below_threshold"
)

// Metrics holds all Prometheus collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	DocsIndexedTotal     prometheus.Counter
	IndexTermsGauge      prometheus.Gauge
	LinkQueriesTotal     *prometheus.CounterVec
	MatchCertainty       *prometheus.HistogramVec
	MatchConflictsTotal  *prometheus.CounterVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	EventsPublishedTotal *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	OutputRowsTotal      prometheus.Counter
}

// New creates all collectors and registers them on reg. Passing a fresh
// registry per run keeps repeated runs in one process independent.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "csvlink_docs_indexed_total",
				Help: "Primary rows added to the search index.",
			},
		),
		IndexTermsGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "csvlink_index_terms",
				Help: "Distinct terms in the consolidated primary index.",
			},
		),
		LinkQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csvlink_link_queries_total",
				Help: "Secondary rows queried against the primary index by dataset and result.",
			},
			[]string{"dataset", "result"},
		),
		MatchCertainty: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csvlink_match_certainty",
				Help:    "BM25 certainty of accepted matches.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"dataset"},
		),
		MatchConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csvlink_match_conflicts_total",
				Help: "Matches that targeted an already matched primary row, by policy outcome.",
			},
			[]string{"dataset", "outcome"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "csvlink_match_cache_hits_total",
				Help: "Match cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "csvlink_match_cache_misses_total",
				Help: "Match cache misses.",
			},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csvlink_link_events_total",
				Help: "Link events handed to the event publisher by status.",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "csvlink_stage_duration_seconds",
				Help:    "Wall time of each pipeline stage.",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"stage"},
		),
		OutputRowsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "csvlink_output_rows_total",
				Help: "Merged rows written to the output sink.",
			},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.IndexTermsGauge,
		m.LinkQueriesTotal,
		m.MatchCertainty,
		m.MatchConflictsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EventsPublishedTotal,
		m.StageDuration,
		m.OutputRowsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the current values in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
