// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The worker package implements a bounded worker pool with:
//   - Generic type support for type-safe work processing
//   - Bounded queues with backpressure (non-blocking submit)
//   - Context-aware cancellation and graceful shutdown
//   - Always-on statistics plus optional Prometheus metrics
//   - Configurable worker count and queue sizing
//
// Within the pipeline the primary consumer is the transport subscriber,
// which fans incoming event packets out to a decode pool so a slow
// consumer never blocks the broker callback.
//
// # Core Concepts
//
// The pool manages a fixed number of goroutines (workers) that process work
// items from a bounded channel (queue). A fixed pool gives predictable
// memory and goroutine overhead, and the bounded queue turns overload into
// an explicit ErrQueueFull instead of unbounded buffering.
//
// Using Go generics, the pool processes any work type T without type
// assertions:
//
//	type decodeTask struct {
//	    Subject string
//	    Data    []byte
//	}
//
//	pool := worker.NewPool[decodeTask](
//	    10,    // workers
//	    1000,  // queue size
//	    func(ctx context.Context, task decodeTask) error {
//	        // Decode and dispatch the packet
//	        return nil
//	    },
//	)
//
// # Lifecycle
//
// A pool moves through three states: created, started, stopped.
//
//	pool := worker.NewPool[decodeTask](4, 256, processTask)
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//
//	// Submit work from any goroutine
//	if err := pool.Submit(task); err != nil {
//	    if errors.Is(err, worker.ErrQueueFull) {
//	        // Shed load: count the drop and move on
//	    }
//	}
//
//	// Drain the queue and stop workers
//	if err := pool.Stop(30 * time.Second); err != nil {
//	    // ErrStopTimeout: workers did not finish in time
//	}
//
// Stop closes the work queue, so workers finish whatever is already queued
// before exiting. Cancelling the context instead abandons queued work and
// stops workers immediately. Use the context for hard shutdown and Stop for
// graceful drain.
//
// # Error Handling
//
// All lifecycle errors are sentinel values, never wrapped:
//
//   - ErrPoolNotStarted: Submit before Start
//   - ErrPoolStopped: Submit after Stop
//   - ErrPoolAlreadyStarted: Start called twice
//   - ErrQueueFull: queue at capacity, work item dropped
//   - ErrNilProcessor: NewPool called without a processor (panics)
//   - ErrStopTimeout: workers still running when the Stop timeout fired
//
// Errors returned by the processor itself are counted (Stats.Failed,
// failed_total) but not propagated; the processor owns its own error
// handling and logging.
//
// # Observability
//
// Stats returns a snapshot without any setup:
//
//	stats := pool.Stats()
//	log.Printf("queue %d/%d, processed %d, dropped %d",
//	    stats.QueueDepth, stats.QueueSize, stats.Processed, stats.Dropped)
//
// With a metrics registry the pool also exports Prometheus series under a
// caller-chosen prefix:
//
//	pool := worker.NewPool[decodeTask](4, 256, processTask,
//	    worker.WithMetricsRegistry[decodeTask](registry, "subscriber_decode"),
//	)
//
// This registers subscriber_decode_queue_depth, subscriber_decode_utilization,
// subscriber_decode_submitted_total, subscriber_decode_processed_total,
// subscriber_decode_failed_total, subscriber_decode_dropped_total, and
// subscriber_decode_processing_duration_seconds (labeled by status).
//
// # Sizing
//
// Workers bound concurrency; the queue bounds burst absorption. For
// CPU-bound processors (packet decoding) a worker count near GOMAXPROCS is
// usually right. For I/O-bound processors, more workers than cores is fine.
// Queue size trades memory for burst tolerance: at roughly 100 bytes per
// queued packet descriptor, a 10k queue costs about 1 MB.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Submit takes a shared lock so
// concurrent submitters do not serialize against each other, only against
// Start and Stop.
package worker
