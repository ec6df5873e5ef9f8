// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records
// nothing, which keeps instrumentation optional in tests.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	RowsValidated    prometheus.Counter
	RowsRejected     prometheus.Counter
	RowsCommitted    prometheus.Counter
	RowsCommitFailed prometheus.Counter
	RowsCancelled    prometheus.Counter
	CommitDuration   prometheus.Histogram
}

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterimport_sessions_started_total",
			Help: "Total number of import sessions started",
		}),
		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterimport_sessions_finished_total",
			Help: "Total number of import sessions finished, by terminal state",
		}, []string{"state"}),
		RowsValidated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterimport_rows_validated_total",
			Help: "Total number of rows run through validation",
		}),
		RowsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterimport_rows_rejected_total",
			Help: "Total number of rows rejected at validation",
		}),
		RowsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterimport_rows_committed_total",
			Help: "Total number of rows committed downstream",
		}),
		RowsCommitFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterimport_rows_commit_failed_total",
			Help: "Total number of rows the downstream endpoint rejected",
		}),
		RowsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterimport_rows_cancelled_total",
			Help: "Total number of rows cancelled before dispatch",
		}),
		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rosterimport_commit_duration_seconds",
			Help:    "Latency of downstream record creation calls",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) SessionFinished(state string) {
	if m == nil {
		return
	}
	m.SessionsFinished.WithLabelValues(state).Inc()
}

func (m *Metrics) RowValidated() {
	if m == nil {
		return
	}
	m.RowsValidated.Inc()
}

func (m *Metrics) RowRejected() {
	if m == nil {
		return
	}
	m.RowsRejected.Inc()
}

func (m *Metrics) RowCommitted() {
	if m == nil {
		return
	}
	m.RowsCommitted.Inc()
}

func (m *Metrics) RowCommitFailed() {
	if m == nil {
		return
	}
	m.RowsCommitFailed.Inc()
}

func (m *Metrics) RowCancelled() {
	if m == nil {
		return
	}
	m.RowsCancelled.Inc()
}

func (m *Metrics) ObserveCommit(d time.Duration) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(d.Seconds())
}
