// Package metrics exports Prometheus counters for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ideaminer"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records
// nothing, so callers never need to check.
type Metrics struct {
	registry *prometheus.Registry

	ItemsProcessed  *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	FetchFailures   *prometheus.CounterVec
	RecordsProduced prometheus.Counter
	RunDuration     prometheus.Histogram
	LastRunTime     prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Discussion items attempted, by report status",
		}, []string{"status"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Model stage failures, by stage",
		}, []string{"stage"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Source fetches that failed, by subreddit",
		}, []string{"subreddit"}),
		RecordsProduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "Idea records produced",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		LastRunTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pipeline run finished",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ItemProcessed(status string) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) FetchFailed(subreddit string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(subreddit).Inc()
}

func (m *Metrics) RecordProduced() {
	if m == nil {
		return
	}
	m.RecordsProduced.Inc()
}

// RunFinished observes a run that started at start and ended at end.
func (m *Metrics) RunFinished(start, end time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(end.Sub(start).Seconds())
	m.LastRunTime.Set(float64(end.Unix()))
}
