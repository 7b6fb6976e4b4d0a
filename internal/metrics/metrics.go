// Package metrics exposes the watcher's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DecreeWatcher/internal/ports"
)

const namespace = "decreewatcher"

// Metrics holds the collectors updated by the pipeline and the run scheduler.
type Metrics struct {
	gatherer prometheus.Gatherer

	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge
	SkipsTotal         *prometheus.CounterVec
	NewDatesTotal      prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

var _ ports.Metrics = (*Metrics)(nil)

// New registers every collector with reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
		SkipsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_triggers_total",
			Help:      "Trigger minutes that did not start a run, by reason.",
		}, []string{"reason"}),
		NewDatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_dates_total",
			Help:      "Publication dates seen for the first time.",
		}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Digest deliveries by status.",
		}, []string{"status"}),
	}
}

// ObserveRun counts a finished run and records its duration and completion time.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.LastRunTimestamp.SetToCurrentTime()
}

// ObserveSkip counts a trigger minute that did not start a run.
func (m *Metrics) ObserveSkip(reason string) {
	m.SkipsTotal.WithLabelValues(reason).Inc()
}

// AddNewDates adds n first-seen publication dates.
func (m *Metrics) AddNewDates(n int) {
	if n > 0 {
		m.NewDatesTotal.Add(float64(n))
	}
}

// ObserveNotification counts a digest delivery attempt by status.
func (m *Metrics) ObserveNotification(status string) {
	m.NotificationsTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
