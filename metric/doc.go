// Package metric provides Prometheus-based metrics collection and an HTTP
// server for SigStreams pipeline monitoring.
//
// A MetricsRegistry carries two kinds of series: core platform metrics
// (service status, codec throughput, transport health) that every process
// gets automatically, and service-specific metrics that components add
// through the MetricsRegistrar interface. A Server exposes the combined
// registry for Prometheus scraping.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("sigtap", metric.ServiceRunning)
//	coreMetrics.RecordEventDeserialized("stage")
//	coreMetrics.RecordNATSStatus(true)
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
// The package automatically registers core platform metrics tracking:
//
//   - Service lifecycle: service_status (ServiceStopped through ServiceFailed)
//   - Codec throughput: codec_events_serialized_total, codec_events_deserialized_total
//   - Decode failures: codec_packets_dropped_total, labelled by rejection reason
//   - Decode performance: codec_decode_duration_seconds
//   - Channel registry size: channels_registered, labelled by shape
//   - Transport flow: transport_published_total, transport_publish_dropped_total
//   - NATS connectivity: nats_connected, nats_rtt_milliseconds, nats_reconnects_total
//   - Error tracking: errors_total
//
// Access core metrics through the registry:
//
//	coreMetrics := registry.CoreMetrics()
//
//	// Codec flow
//	coreMetrics.RecordEventSerialized("spike")
//	coreMetrics.RecordEventDeserialized("spike")
//	coreMetrics.RecordPacketDropped("size_mismatch")
//	coreMetrics.RecordDecodeDuration("spike", 12*time.Microsecond)
//
//	// Channel registry size, usually fed from channel.Registry.Counts
//	coreMetrics.RecordChannelCounts(64, 8, 4, 1)
//
//	// Transport connectivity
//	coreMetrics.RecordNATSStatus(true)
//	coreMetrics.RecordNATSRTT(2 * time.Millisecond)
//
// # Service-Specific Metrics
//
// Services register their own collectors through the registry:
//
//	requestCounter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "api_requests_total",
//	    Help: "Total number of API requests",
//	})
//	err := registry.RegisterCounter("api-service", "api_requests_total", requestCounter)
//
// Counters, gauges, histograms, and their vector forms are supported.
// Registering the same service/metric pair twice, or a collector that
// conflicts with an existing Prometheus descriptor, fails with an Invalid
// classified error; other Prometheus registration failures are Fatal.
//
// # HTTP Server
//
// The scrape server provides three endpoints: an HTML index at /, the
// metrics path (default /metrics, OpenMetrics enabled), and a /health
// responder that callers can replace through SetHealthHandler to serve
// aggregated component health. Server.Start blocks until the server stops;
// run it in a goroutine and call Stop from the shutdown path. A server
// closed through Stop returns nil from Start and may be started again.
//
// Configure Prometheus to scrape the endpoint:
//
//	# prometheus.yml
//	scrape_configs:
//	  - job_name: 'sigstreams'
//	    static_configs:
//	      - targets: ['localhost:9090']
//	    metrics_path: '/metrics'
//	    scrape_interval: 15s
//
// All core metrics use the namespace "sigstreams" and appropriate subsystems:
//   - sigstreams_service_status{service="..."}
//   - sigstreams_codec_events_deserialized_total{kind="..."}
//   - sigstreams_channels_registered{shape="..."}
//   - sigstreams_nats_connected
//
// Registry and server methods are safe for concurrent use; recording on a
// collector is lock-free per the Prometheus client guarantees.
package metric
