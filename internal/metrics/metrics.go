// Package metrics exposes reasoning and store counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"semkb/internal/store"
)

const namespace = "semkb"

// Metrics contains the engine and ingestion metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	EvalDuration     prometheus.Histogram
	DerivedFacts     prometheus.Counter
	Rounds           prometheus.Counter
	Inconsistencies  prometheus.Counter
	IngestedFacts    *prometheus.CounterVec
	ParseDiagnostics *prometheus.CounterVec
	RuleReloads      *prometheus.CounterVec
}

// NewMetrics creates the metric set and registers it with reg. A nil reg
// leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "evaluations_total",
				Help:      "Evaluation passes by outcome (ok, rejected, limit, error)",
			},
			[]string{"outcome"},
		),

		EvalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of evaluation passes in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		DerivedFacts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "derived_facts_total",
				Help:      "Total number of facts derived by rules",
			},
		),

		Rounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "rounds_total",
				Help:      "Total number of fixpoint rounds",
			},
		),

		Inconsistencies: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "inconsistencies_total",
				Help:      "Total number of satisfied contradiction rules",
			},
		),

		IngestedFacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "facts_total",
				Help:      "Facts added by ingestion, by graph kind (default, named)",
			},
			[]string{"graph"},
		),

		ParseDiagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "parse",
				Name:      "diagnostics_total",
				Help:      "Diagnostics reported by the fact and rule readers",
			},
			[]string{"source"},
		),

		RuleReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "watch",
				Name:      "reloads_total",
				Help:      "Rule file reloads by outcome (ok, error)",
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.Evaluations,
			m.EvalDuration,
			m.DerivedFacts,
			m.Rounds,
			m.Inconsistencies,
			m.IngestedFacts,
			m.ParseDiagnostics,
			m.RuleReloads,
		)
	}
	return m
}

// RecordEvaluation records one finished evaluation pass.
func (m *Metrics) RecordEvaluation(outcome string, d time.Duration, derived, rounds, inconsistencies int) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
	m.EvalDuration.Observe(d.Seconds())
	m.DerivedFacts.Add(float64(derived))
	m.Rounds.Add(float64(rounds))
	m.Inconsistencies.Add(float64(inconsistencies))
}

// RecordIngest records facts added to the default or a named graph.
func (m *Metrics) RecordIngest(defaultGraph, named int) {
	if m == nil {
		return
	}
	m.IngestedFacts.WithLabelValues("default").Add(float64(defaultGraph))
	m.IngestedFacts.WithLabelValues("named").Add(float64(named))
}

// RecordDiagnostics records parse diagnostics for source ("facts", "rules").
func (m *Metrics) RecordDiagnostics(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ParseDiagnostics.WithLabelValues(source).Add(float64(n))
}

// RecordReload records a rule reload triggered by the watcher.
func (m *Metrics) RecordReload(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.RuleReloads.WithLabelValues(outcome).Inc()
}

// StatsSource is anything that can report store counters. *store.Store
// satisfies it.
type StatsSource interface {
	Stats() store.Stats
}

// RegisterStore registers gauges that read st's counters at scrape time.
func RegisterStore(reg prometheus.Registerer, st StatsSource) error {
	gauge := func(name, help string, read func(store.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      name,
				Help:      help,
			},
			func() float64 { return float64(read(st.Stats())) },
		)
	}
	for _, c := range []prometheus.Collector{
		gauge("elements", "Interned elements", func(s store.Stats) int { return s.Elements }),
		gauge("default_graph_triples", "Facts in the default graph", func(s store.Stats) int { return s.DefaultGraph }),
		gauge("named_graphs", "Named graph partitions", func(s store.Stats) int { return s.NamedGraphs }),
		gauge("named_graph_triples", "Facts across named graphs", func(s store.Stats) int { return s.NamedTriples }),
		gauge("reifications", "Reifier bindings", func(s store.Stats) int { return s.Reifications }),
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
