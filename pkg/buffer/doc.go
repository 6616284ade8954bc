// Package buffer provides thread-safe circular buffers with configurable
// overflow policies, built-in statistics, and optional Prometheus metrics.
//
// # Overview
//
// The buffer package implements generic ring buffers for decoupling
// producers from consumers. Within the pipeline the main consumer is the
// transport publisher, which parks encoded event packets in a ring while
// the broker connection is down and drains them on reconnect.
//
// # Quick Start
//
// Basic buffer creation:
//
//	buf, err := buffer.NewCircularBuffer[int](1000)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = buf.Write(42)
//	value, ok := buf.Read()
//
// With an overflow policy and metrics export:
//
//	buf, err := buffer.NewCircularBuffer[[]byte](5000,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithMetrics[[]byte](registry, "publisher_ring"),
//	)
//
// # Overflow Policies
//
// Three behaviors are available when the buffer reaches capacity:
//
//   - DropOldest: evict the oldest item to make room (default)
//   - DropNewest: reject the incoming item
//   - Block: Write waits until space is available
//
// DropOldest suits live telemetry where the newest packet is the most
// valuable. Block suits work that must not be lost; combine it with
// WriteWithContext or WriteWithTimeout so a stuck consumer cannot wedge
// the producer forever:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	err := buf.WriteWithContext(ctx, packet)
//
// # Drop Callbacks
//
// WithDropCallback registers a function invoked with every item removed by
// the overflow policy or by Clear. The callback runs after the buffer lock
// is released, so it may call back into the buffer or into metrics:
//
//	buf, _ := buffer.NewCircularBuffer[[]byte](4096,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithDropCallback[[]byte](func(pkt []byte) {
//			coreMetrics.RecordPublishDropped("buffer_overflow")
//		}),
//	)
//
// # Observability
//
// Statistics are always collected through atomic counters and cost a few
// nanoseconds per operation:
//
//	stats := buf.Stats()
//	fmt.Printf("writes=%d drops=%d rate=%.2f\n",
//		stats.Writes(), stats.Drops(), stats.DropRate())
//
// Prometheus export is opt-in through WithMetrics. Exported series share
// the sigstreams_buffer_* prefix with a component const label, so several
// buffers can coexist on one registry:
//
//	sigstreams_buffer_writes_total{component="publisher_ring"}
//	sigstreams_buffer_drops_total{component="publisher_ring"}
//	sigstreams_buffer_utilization{component="publisher_ring"}
//
// # Thread Safety
//
// All buffer operations are safe for concurrent use. Reads and writes take
// an exclusive lock; Peek, Size, IsFull, and IsEmpty take a shared lock.
// Statistics accessors never block buffer operations.
package buffer
