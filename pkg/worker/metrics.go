package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuroacq/sigstreams/metric"
)

// poolMetrics mirrors the pool tallies onto Prometheus collectors. Every
// method is safe on a nil receiver so call sites need no guard.
type poolMetrics struct {
	depth       prometheus.Gauge
	utilization prometheus.Gauge
	submitted   prometheus.Counter
	processed   prometheus.Counter
	failed      prometheus.Counter
	dropped     prometheus.Counter
	duration    *prometheus.HistogramVec
}

// newPoolMetrics builds and registers the pool collectors under prefix. A
// registration conflict means another pool already claimed the prefix; the
// pool keeps running and reports through Stats only.
func newPoolMetrics(registry *metric.MetricsRegistry, prefix string) *poolMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: prefix + name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: prefix + name, Help: help})
	}

	m := &poolMetrics{
		depth:       gauge("_queue_depth", "Current worker pool queue depth"),
		utilization: gauge("_utilization", "Worker pool utilization (0-1)"),
		submitted:   counter("_submitted_total", "Total work items submitted"),
		processed:   counter("_processed_total", "Total work items processed"),
		failed:      counter("_failed_total", "Total work items that failed processing"),
		dropped:     counter("_dropped_total", "Total work items dropped due to full queue"),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent processing work items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"status"}),
	}

	const owner = "worker_pool"
	_ = registry.RegisterGauge(owner, prefix+"_queue_depth", m.depth)
	_ = registry.RegisterGauge(owner, prefix+"_utilization", m.utilization)
	_ = registry.RegisterCounter(owner, prefix+"_submitted_total", m.submitted)
	_ = registry.RegisterCounter(owner, prefix+"_processed_total", m.processed)
	_ = registry.RegisterCounter(owner, prefix+"_failed_total", m.failed)
	_ = registry.RegisterCounter(owner, prefix+"_dropped_total", m.dropped)
	_ = registry.RegisterHistogramVec(owner, prefix+"_processing_duration_seconds", m.duration)

	return m
}

func (m *poolMetrics) noteSubmit(depth int) {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.depth.Set(float64(depth))
}

func (m *poolMetrics) noteDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *poolMetrics) noteDone(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.processed.Inc()
	status := "success"
	if err != nil {
		m.failed.Inc()
		status = "error"
	}
	m.duration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *poolMetrics) noteDepth(depth, capacity int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(depth))
	m.utilization.Set(float64(depth) / float64(capacity))
}
