package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/neuroacq/sigstreams/errors"
)

// MetricsRegistrar is the registration surface handed to components that
// contribute their own collectors.
type MetricsRegistrar interface {
	RegisterCounter(serviceName, metricName string, counter prometheus.Counter) error
	RegisterGauge(serviceName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(serviceName, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(serviceName, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(serviceName, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(serviceName, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(serviceName, metricName string) bool
}

// MetricsRegistry owns the process-wide Prometheus registry, the core
// platform collectors, and a keyed index of per-component registrations.
// Keys are "<service>.<metric>", so two components can reuse a metric name
// without colliding in the index while Prometheus still enforces that their
// descriptors differ.
type MetricsRegistry struct {
	prom *prometheus.Registry
	core *Metrics

	mu    sync.RWMutex
	owned map[string]prometheus.Collector
}

// NewMetricsRegistry builds a registry preloaded with the core platform
// collectors and the Go runtime collectors.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:  prometheus.NewRegistry(),
		core:  NewMetrics(),
		owned: make(map[string]prometheus.Collector),
	}

	r.prom.MustRegister(
		r.core.ServiceStatus,
		r.core.ErrorsTotal,
		r.core.HealthCheckStatus,
		r.core.EventsSerialized,
		r.core.EventsDeserialized,
		r.core.PacketsDropped,
		r.core.DecodeDuration,
		r.core.RegisteredChannels,
		r.core.EventsPublished,
		r.core.PublishDropped,
		r.core.PublishDuration,
		r.core.NATSConnected,
		r.core.NATSRTT,
		r.core.NATSReconnects,
		r.core.NATSCircuitBreaker,
	)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prom
}

// CoreMetrics returns the core platform metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.core
}

// register is the single path every typed Register method funnels through.
// Duplicate keys and Prometheus descriptor conflicts surface as Invalid;
// anything else Prometheus rejects is Fatal.
func (r *MetricsRegistry) register(op, serviceName, metricName string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := serviceName + "." + metricName
	if _, taken := r.owned[key]; taken {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for service %s", metricName, serviceName),
			"MetricsRegistry", op, "duplicate metric registration")
	}

	if err := r.prom.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", op,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", op, "prometheus registration failed")
	}

	r.owned[key] = c
	return nil
}

// RegisterCounter registers a counter under the service's key space.
func (r *MetricsRegistry) RegisterCounter(serviceName, metricName string, counter prometheus.Counter) error {
	return r.register("RegisterCounter", serviceName, metricName, counter)
}

// RegisterGauge registers a gauge under the service's key space.
func (r *MetricsRegistry) RegisterGauge(serviceName, metricName string, gauge prometheus.Gauge) error {
	return r.register("RegisterGauge", serviceName, metricName, gauge)
}

// RegisterHistogram registers a histogram under the service's key space.
func (r *MetricsRegistry) RegisterHistogram(serviceName, metricName string, histogram prometheus.Histogram) error {
	return r.register("RegisterHistogram", serviceName, metricName, histogram)
}

// RegisterCounterVec registers a counter vector under the service's key space.
func (r *MetricsRegistry) RegisterCounterVec(serviceName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register("RegisterCounterVec", serviceName, metricName, counterVec)
}

// RegisterGaugeVec registers a gauge vector under the service's key space.
func (r *MetricsRegistry) RegisterGaugeVec(serviceName, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register("RegisterGaugeVec", serviceName, metricName, gaugeVec)
}

// RegisterHistogramVec registers a histogram vector under the service's key space.
func (r *MetricsRegistry) RegisterHistogramVec(
	serviceName, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register("RegisterHistogramVec", serviceName, metricName, histogramVec)
}

// Unregister removes a previously registered metric. It reports whether the
// metric was found and removed.
func (r *MetricsRegistry) Unregister(serviceName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := serviceName + "." + metricName
	c, exists := r.owned[key]
	if !exists {
		return false
	}

	if !r.prom.Unregister(c) {
		return false
	}
	delete(r.owned, key)
	return true
}
