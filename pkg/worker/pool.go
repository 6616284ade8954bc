// Package worker provides a generic worker pool for concurrent task processing
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neuroacq/sigstreams/metric"
)

// Pool fans work items of type T out to a fixed set of goroutines reading
// from a bounded queue. Submit never blocks; a full queue counts the item
// as dropped and returns ErrQueueFull.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error

	queue chan T
	wg    sync.WaitGroup
	tally tally
	prom  *poolMetrics

	// mu serializes Start and Stop against each other and against Submit.
	// Submit takes the read side so concurrent submitters never contend
	// with one another.
	mu       sync.RWMutex
	started  bool
	stopped  bool
	promDone chan struct{}

	registry *metric.MetricsRegistry
	prefix   string
}

// tally tracks pool activity for Stats.
type tally struct {
	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Pool at construction time.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry publishes pool gauges and counters under the given
// name prefix on the platform registry.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.prefix = prefix
	}
}

// NewPool builds a pool of the given size. Non-positive sizes fall back to
// 10 workers and a queue of 1000. A nil processor panics with
// ErrNilProcessor.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if processor == nil {
		panic(ErrNilProcessor)
	}
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   processor,
		queue:     make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry != nil && p.prefix != "" {
		p.prom = newPoolMetrics(p.registry, p.prefix)
	}
	return p
}

// Start launches the workers. The context bounds every processor call;
// cancelling it makes the workers exit without draining the queue.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for range p.workers {
		p.wg.Add(1)
		go p.run(ctx)
	}

	// The depth sampler runs outside the worker wait group so a queue
	// drain in Stop never waits on a ticker.
	if p.prom != nil {
		p.promDone = make(chan struct{})
		go p.sampleDepth(ctx)
	}

	p.started = true
	return nil
}

// Submit queues one work item without blocking.
func (p *Pool[T]) Submit(work T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch {
	case !p.started:
		return ErrPoolNotStarted
	case p.stopped:
		return ErrPoolStopped
	}

	select {
	case p.queue <- work:
		p.tally.submitted.Add(1)
		p.prom.noteSubmit(len(p.queue))
		return nil
	default:
		p.tally.dropped.Add(1)
		p.prom.noteDrop()
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the workers to drain it. On timeout
// the workers keep running and ErrStopTimeout is returned.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	close(p.queue)
	if p.promDone != nil {
		close(p.promDone)
	}

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-drained:
		p.stopped = true
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats snapshots the pool counters.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.queue),
		Submitted:  p.tally.submitted.Load(),
		Processed:  p.tally.processed.Load(),
		Failed:     p.tally.failed.Load(),
		Dropped:    p.tally.dropped.Load(),
	}
}

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// run is one worker goroutine. It exits when the queue closes or the
// context ends.
func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.queue:
			if !ok {
				return
			}
			p.runOne(ctx, work)
		}
	}
}

// runOne times a single processor call and folds the outcome into the
// tallies and, when enabled, the histogram.
func (p *Pool[T]) runOne(ctx context.Context, work T) {
	start := time.Now()
	err := p.process(ctx, work)

	p.tally.processed.Add(1)
	if err != nil {
		p.tally.failed.Add(1)
	}
	p.prom.noteDone(err, time.Since(start))
}

// sampleDepth refreshes the queue depth and utilization gauges once a
// second while the pool runs.
func (p *Pool[T]) sampleDepth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.promDone:
			return
		case <-ticker.C:
			p.prom.noteDepth(len(p.queue), p.queueSize)
		}
	}
}
