package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"natrail-bot/internal/pkg/config"
)

// WorkerMetrics holds the worker's configuration metrics and per-cycle
// metrics. It satisfies monitor.CycleRecorder.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CycleRunsTotal counts cycles by status (success, failure).
	CycleRunsTotal *prometheus.CounterVec
	// CycleDurationSeconds includes post pacing and rate-limit waits.
	CycleDurationSeconds prometheus.Histogram
	// PostsPublishedTotal counts posts confirmed by the network.
	PostsPublishedTotal prometheus.Counter
	// LastSuccessTimestamp is the Unix time of the last successful cycle.
	LastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates and registers the worker metrics. It must be
// called once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cycle_runs_total",
			Help: "Total number of monitor cycles by status (success/failure)",
		}, []string{"status"}),

		CycleDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cycle_duration_seconds",
			Help:    "Duration of monitor cycles in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
		}),

		PostsPublishedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_posts_published_total",
			Help: "Total number of disruptions posted across all cycles",
		}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful monitor cycle",
		}),
	}
}

// RecordCycle records one finished cycle.
func (m *WorkerMetrics) RecordCycle(status string, duration time.Duration, posted int) {
	m.CycleRunsTotal.WithLabelValues(status).Inc()
	m.CycleDurationSeconds.Observe(duration.Seconds())
	if posted > 0 {
		m.PostsPublishedTotal.Add(float64(posted))
	}
	if status == StatusSuccess {
		m.LastSuccessTimestamp.SetToCurrentTime()
	}
}
