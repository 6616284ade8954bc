package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sigstreams"

// Service status gauge values.
const (
	ServiceStopped = iota
	ServiceStarting
	ServiceRunning
	ServiceStopping
	ServiceFailed
)

// Metrics holds the platform-level collectors shared by every binary.
// Acquisition-specific series live with their owning components.
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Codec metrics
	EventsSerialized   *prometheus.CounterVec
	EventsDeserialized *prometheus.CounterVec
	PacketsDropped     *prometheus.CounterVec
	DecodeDuration     *prometheus.HistogramVec
	RegisteredChannels *prometheus.GaugeVec

	// Transport metrics
	EventsPublished *prometheus.CounterVec
	PublishDropped  *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

func gauge(subsystem, name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func counter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	})
}

func gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// NewMetrics builds every platform collector, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: gaugeVec("service", "status",
			"Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)", "service"),
		ErrorsTotal: counterVec("errors", "total",
			"Total number of errors", "service", "type"),
		HealthCheckStatus: gaugeVec("health", "status",
			"Health check status (0=unhealthy, 1=healthy)", "service"),

		EventsSerialized: counterVec("codec", "events_serialized_total",
			"Total number of event packets serialized", "kind"),
		EventsDeserialized: counterVec("codec", "events_deserialized_total",
			"Total number of event packets deserialized", "kind"),
		PacketsDropped: counterVec("codec", "packets_dropped_total",
			"Total number of event packets rejected during decode", "reason"),
		DecodeDuration: histogramVec("codec", "decode_duration_seconds",
			"Event packet decode duration in seconds",
			prometheus.ExponentialBuckets(1e-6, 4, 10), "kind"),
		RegisteredChannels: gaugeVec("channels", "registered",
			"Number of channels currently registered, by shape", "shape"),

		EventsPublished: counterVec("transport", "published_total",
			"Total number of event packets published", "subject"),
		PublishDropped: counterVec("transport", "publish_dropped_total",
			"Total number of event packets dropped before publish", "reason"),
		PublishDuration: histogramVec("transport", "publish_duration_seconds",
			"Event packet publish duration in seconds", prometheus.DefBuckets, "subject"),

		NATSConnected: gauge("nats", "connected",
			"NATS connection status (0=disconnected, 1=connected)"),
		NATSRTT: gauge("nats", "rtt_milliseconds",
			"NATS round-trip time in milliseconds"),
		NATSReconnects: counter("nats", "reconnects_total",
			"Total number of NATS reconnections"),
		NATSCircuitBreaker: gauge("nats", "circuit_breaker",
			"NATS circuit breaker status (0=closed, 1=open, 2=half-open)"),
	}
}

// RecordServiceStatus updates the service status gauge.
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError increments the error counter.
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates the health check gauge.
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordEventSerialized increments the serialized packet counter.
func (c *Metrics) RecordEventSerialized(kind string) {
	c.EventsSerialized.WithLabelValues(kind).Inc()
}

// RecordEventDeserialized increments the deserialized packet counter.
func (c *Metrics) RecordEventDeserialized(kind string) {
	c.EventsDeserialized.WithLabelValues(kind).Inc()
}

// RecordPacketDropped increments the rejected packet counter.
func (c *Metrics) RecordPacketDropped(reason string) {
	c.PacketsDropped.WithLabelValues(reason).Inc()
}

// RecordDecodeDuration records one packet decode time.
func (c *Metrics) RecordDecodeDuration(kind string, duration time.Duration) {
	c.DecodeDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordChannelCounts updates the registered channel gauges, one per shape.
func (c *Metrics) RecordChannelCounts(continuous, events, spikes, configurations int) {
	c.RegisteredChannels.WithLabelValues("continuous").Set(float64(continuous))
	c.RegisteredChannels.WithLabelValues("event").Set(float64(events))
	c.RegisteredChannels.WithLabelValues("spike").Set(float64(spikes))
	c.RegisteredChannels.WithLabelValues("configuration").Set(float64(configurations))
}

// RecordEventPublished increments the published packet counter.
func (c *Metrics) RecordEventPublished(subject string) {
	c.EventsPublished.WithLabelValues(subject).Inc()
}

// RecordPublishDropped increments the dropped publish counter.
func (c *Metrics) RecordPublishDropped(reason string) {
	c.PublishDropped.WithLabelValues(reason).Inc()
}

// RecordPublishDuration records one packet publish time.
func (c *Metrics) RecordPublishDuration(subject string, duration time.Duration) {
	c.PublishDuration.WithLabelValues(subject).Observe(duration.Seconds())
}

// RecordNATSStatus updates the NATS connection gauge.
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates the NATS round-trip gauge.
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments the reconnection counter.
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates the circuit breaker gauge.
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
