package internal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what a run did. Counters live on their own registry so a
// run can be dumped to a node_exporter textfile without global state.
type Metrics struct {
	registry *prometheus.Registry

	batches       prometheus.Counter
	pagesScanned  prometheus.Counter
	pagesMatched  prometheus.Counter
	decisions     *prometheus.CounterVec
	edits         *prometheus.CounterVec
	appendAttempt *prometheus.CounterVec
}

// NewMetrics registers the run counters on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csdfilter",
			Name:      "batches_total",
			Help:      "Category member batches processed.",
		}),
		pagesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csdfilter",
			Name:      "pages_scanned_total",
			Help:      "Pages whose content was checked against the rewrite pattern.",
		}),
		pagesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "csdfilter",
			Name:      "pages_matched_total",
			Help:      "Pages whose content the rewrite pattern changed.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csdfilter",
			Name:      "decisions_total",
			Help:      "Operator decisions by kind.",
		}, []string{"decision"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csdfilter",
			Name:      "edits_total",
			Help:      "Page edits submitted by result.",
		}, []string{"result"}),
		appendAttempt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csdfilter",
			Name:      "log_append_attempts_total",
			Help:      "Log page append attempts by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.batches, m.pagesScanned, m.pagesMatched, m.decisions, m.edits, m.appendAttempt)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the counters in the text exposition format to path
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) batch() { m.batches.Inc() }
func (m *Metrics) scanned() { m.pagesScanned.Inc() }
func (m *Metrics) matched() { m.pagesMatched.Inc() }
func (m *Metrics) decision(d Decision) { m.decisions.WithLabelValues(d.String()).Inc() }
func (m *Metrics) edit(result string) { m.edits.WithLabelValues(result).Inc() }
func (m *Metrics) appendTry(result string) { m.appendAttempt.WithLabelValues(result).Inc() }
