// Package health tracks the liveness of SigStreams pipeline services and
// rolls per-component statuses up into a single pipeline verdict.
//
// # Health States
//
// A component is in one of three states:
//   - Healthy: working as expected
//   - Degraded: working, but below normal capability
//   - Unhealthy: not working
//
// The middle state carries real operational meaning. A transport client
// that is reconnecting reports degraded; one whose circuit breaker has
// opened reports unhealthy.
//
// # Tracking Components
//
// A Monitor holds the latest Status per component name. Any goroutine may
// update or read it; updates stamp the component name and timestamp onto
// the stored status.
//
//	monitor := health.NewMonitor()
//
//	monitor.UpdateHealthy("nats", "Connected to broker")
//	monitor.UpdateDegraded("subscriber", "Decode queue above threshold")
//	monitor.UpdateUnhealthy("publisher", "Circuit breaker open")
//
//	if status, exists := monitor.Get("nats"); exists && status.IsHealthy() {
//	    log.Println("Broker connection is healthy")
//	}
//
// Status values are immutable. WithMetrics and WithSubStatus return
// modified copies, so a status already handed to the Monitor never changes
// underneath it.
//
// # Aggregation
//
// AggregateHealth folds every tracked component into one status using
// worst-case rules: any unhealthy component makes the pipeline unhealthy,
// any degraded one (absent unhealthy) makes it degraded, and only a fully
// healthy set reports healthy. A single failing component is never masked
// by a healthy majority.
//
//	systemHealth := monitor.AggregateHealth("sigtap")
//	if systemHealth.IsUnhealthy() {
//	    log.Printf("Pipeline unhealthy: %s", systemHealth.Message)
//	}
//
// # Converting Errors
//
// FromError turns a transport or codec failure into an unhealthy status.
// The error text is scrubbed before it becomes a message: URLs, file
// paths, IP addresses, ports and credential assignments are replaced with
// placeholders, so broker addresses and secrets stay out of dashboards.
//
//	monitor.Update("nats", health.FromError("nats", err))
//
// # Why No Errors
//
// Functions here do not return errors. Health reporting sits downstream of
// error handling: services classify and wrap failures with the errors
// package first, then record the outcome here for display.
package health
