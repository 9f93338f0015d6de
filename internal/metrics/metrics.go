// Package metrics holds the Prometheus collectors for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is passed explicitly to every component that records metrics.
// A nil *Metrics is valid and turns all recording into no-ops, so tests
// and one-off CLI invocations don't need a registry.
type Metrics struct {
	pagesFetchedTotal    *prometheus.CounterVec
	recordsFetchedTotal  *prometheus.CounterVec
	recordsSkippedTotal  *prometheus.CounterVec
	accountOutcomesTotal *prometheus.CounterVec
	syncRunsTotal        *prometheus.CounterVec
	syncRunDuration      prometheus.Histogram
}

// NewMetrics creates a Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		pagesFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akasync_pages_fetched_total",
				Help: "Total number of provider transaction pages fetched",
			},
			[]string{"account_id"},
		),
		recordsFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akasync_records_fetched_total",
				Help: "Total number of transaction records fetched and normalized",
			},
			[]string{"account_id"},
		),
		recordsSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akasync_records_skipped_total",
				Help: "Total number of records skipped during normalization",
			},
			[]string{"account_id", "reason"},
		),
		accountOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akasync_account_outcomes_total",
				Help: "Total number of per-account aggregation outcomes by status",
			},
			[]string{"status"},
		),
		syncRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "akasync_sync_runs_total",
				Help: "Total number of orchestration runs by status",
			},
			[]string{"status"},
		),
		syncRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "akasync_sync_run_duration_seconds",
				Help:    "Duration of full orchestration runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
	}
}

// RecordPageFetched records one fetched page and its record count.
func (m *Metrics) RecordPageFetched(accountID string, records int) {
	if m == nil {
		return
	}
	m.pagesFetchedTotal.WithLabelValues(accountID).Inc()
	m.recordsFetchedTotal.WithLabelValues(accountID).Add(float64(records))
}

// RecordRecordSkipped records a record dropped during normalization.
func (m *Metrics) RecordRecordSkipped(accountID, reason string) {
	if m == nil {
		return
	}
	m.recordsSkippedTotal.WithLabelValues(accountID, reason).Inc()
}

// RecordAccountOutcome records the terminal status of one account's aggregation.
func (m *Metrics) RecordAccountOutcome(status string) {
	if m == nil {
		return
	}
	m.accountOutcomesTotal.WithLabelValues(status).Inc()
}

// RecordSyncRun records a completed orchestration run.
func (m *Metrics) RecordSyncRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.syncRunsTotal.WithLabelValues(status).Inc()
	m.syncRunDuration.Observe(seconds)
}
