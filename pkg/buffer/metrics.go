package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neuroacq/sigstreams/metric"
)

// promBridge mirrors Statistics into Prometheus collectors. The component
// const label keeps buffers sharing one registry distinguishable.
type promBridge struct {
	writes    prometheus.Counter
	reads     prometheus.Counter
	peeks     prometheus.Counter
	overflows prometheus.Counter
	drops     prometheus.Counter

	size prometheus.Gauge
	load prometheus.Gauge
}

func newPromBridge(registry *metric.MetricsRegistry, component string) (*promBridge, error) {
	labels := prometheus.Labels{"component": component}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sigstreams",
			Subsystem:   "buffer",
			Name:        name,
			ConstLabels: labels,
			Help:        help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sigstreams",
			Subsystem:   "buffer",
			Name:        name,
			ConstLabels: labels,
			Help:        help,
		})
	}

	b := &promBridge{
		writes:    counter("writes_total", "Total number of buffer write operations"),
		reads:     counter("reads_total", "Total number of buffer read operations"),
		peeks:     counter("peeks_total", "Total number of buffer peek operations"),
		overflows: counter("overflows_total", "Total number of buffer overflow events"),
		drops:     counter("drops_total", "Total number of items dropped due to overflow"),
		size:      gauge("size", "Current number of items in the buffer"),
		load:      gauge("utilization", "Buffer fill level as a fraction of capacity"),
	}

	counters := []struct {
		name string
		c    prometheus.Counter
	}{
		{"buffer_writes", b.writes},
		{"buffer_reads", b.reads},
		{"buffer_peeks", b.peeks},
		{"buffer_overflows", b.overflows},
		{"buffer_drops", b.drops},
	}
	for _, reg := range counters {
		if err := registry.RegisterCounter(component, reg.name, reg.c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(component, "buffer_size", b.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(component, "buffer_utilization", b.load); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *promBridge) write(size, capacity int) {
	b.writes.Inc()
	b.fill(size, capacity)
}

func (b *promBridge) read(size, capacity int) {
	b.reads.Inc()
	b.fill(size, capacity)
}

func (b *promBridge) peek()     { b.peeks.Inc() }
func (b *promBridge) overflow() { b.overflows.Inc() }
func (b *promBridge) drop()     { b.drops.Inc() }

func (b *promBridge) fill(size, capacity int) {
	b.size.Set(float64(size))
	b.load.Set(float64(size) / float64(capacity))
}
