package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics tracks background job runs.
type SchedulerMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewSchedulerMetrics() *SchedulerMetrics {
	return NewSchedulerMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewSchedulerMetricsWithRegisterer(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuotas_scheduler_job_runs_total",
			Help: "Counts scheduler job runs.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuotas_scheduler_job_errors_total",
			Help: "Counts failed scheduler job runs.",
		}, []string{"job"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cuotas_scheduler_job_timeouts_total",
			Help: "Counts scheduler job runs that hit their deadline.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cuotas_scheduler_job_duration_seconds",
			Help:    "Scheduler job run latency.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.errors, m.timeouts, m.duration)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(sanitizeLabel(job)).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(sanitizeLabel(job)).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(sanitizeLabel(job)).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(sanitizeLabel(job)).Observe(elapsed.Seconds())
}
