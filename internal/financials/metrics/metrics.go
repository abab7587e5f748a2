package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the financials module.
type Metrics struct {
	// Reconciliation runs by terminal status
	Runs *prometheus.CounterVec

	// Annual accounts written by reconciliation
	AccountsImported prometheus.Counter

	// Filings skipped mid-run by reason
	FilingsSkipped *prometheus.CounterVec

	// Administrator and participation edges dropped for unresolvable companies
	EdgesDropped *prometheus.CounterVec

	// End-to-end reconciliation latency
	RunLatency prometheus.Histogram
}

// New creates a new Metrics instance with all financials module metrics registered.
func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companions_financials_runs_total",
			Help: "Total reconciliation runs by terminal status",
		}, []string{"status"}), // status: "completed", "aborted"

		AccountsImported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "companions_financials_accounts_imported_total",
			Help: "Total annual accounts written by reconciliation",
		}),

		FilingsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companions_financials_filings_skipped_total",
			Help: "Total filings skipped mid-run by reason",
		}, []string{"reason"}), // reason: "not_found", "upstream"

		EdgesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "companions_financials_edges_dropped_total",
			Help: "Total administrator and participation edges dropped because the referenced company is unknown",
		}, []string{"kind"}), // kind: "administrator", "participation"

		RunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "companions_financials_run_duration_seconds",
			Help:    "Duration of a full reconciliation run including upstream fetches",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// IncrementRun records a reconciliation run outcome.
func (m *Metrics) IncrementRun(status string) {
	if m != nil {
		m.Runs.WithLabelValues(status).Inc()
	}
}

// AddAccountsImported records accounts written by one run.
func (m *Metrics) AddAccountsImported(n int) {
	if m != nil {
		m.AccountsImported.Add(float64(n))
	}
}

// IncrementSkipped records one filing skipped mid-run.
func (m *Metrics) IncrementSkipped(reason string) {
	if m != nil {
		m.FilingsSkipped.WithLabelValues(reason).Inc()
	}
}

// IncrementEdgeDropped records one dropped relationship edge.
func (m *Metrics) IncrementEdgeDropped(kind string) {
	if m != nil {
		m.EdgesDropped.WithLabelValues(kind).Inc()
	}
}

// ObserveRunLatency records the total run duration.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}
