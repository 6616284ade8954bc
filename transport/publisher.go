package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/metric"
	"github.com/neuroacq/sigstreams/pkg/buffer"
)

// Publisher defaults. The drain loop wakes every drainInterval and
// publishes up to drainBatchSize packets per wake.
const (
	DefaultRingCapacity = 4096

	drainInterval  = 5 * time.Millisecond
	drainBatchSize = 256
)

// outbound is one serialized packet waiting in the ring.
type outbound struct {
	subject string
	data    []byte
}

// Publisher serializes events into packets and publishes them on their
// provenance-derived subjects.
//
// Publish serializes into a pooled buffer and sends on the caller's
// goroutine. Enqueue hands the packet to a ring drained by a background
// goroutine; when the ring is full the oldest pending packet is dropped and
// counted, so a slow broker stalls nothing upstream.
type Publisher struct {
	bus    Bus
	prefix string

	pool sync.Pool
	ring buffer.Buffer[outbound]

	ringCapacity int
	logger       *slog.Logger
	registry     *metric.MetricsRegistry

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// PublisherOption configures a Publisher at construction.
type PublisherOption func(*Publisher) error

// WithRingCapacity sets how many serialized packets the ring holds before
// the overflow policy drops the oldest.
func WithRingCapacity(n int) PublisherOption {
	return func(p *Publisher) error {
		if n <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Publisher", "WithRingCapacity",
				"ring capacity must be positive")
		}
		p.ringCapacity = n
		return nil
	}
}

// WithPublisherLogger replaces the default slog logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) error {
		if logger == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Publisher", "WithPublisherLogger",
				"logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithPublisherMetrics wires the publisher and its ring into the platform
// metrics registry.
func WithPublisherMetrics(registry *metric.MetricsRegistry) PublisherOption {
	return func(p *Publisher) error {
		p.registry = registry
		return nil
	}
}

// NewPublisher creates a publisher addressing packets under prefix.
func NewPublisher(bus Bus, prefix string, opts ...PublisherOption) (*Publisher, error) {
	if bus == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Publisher", "NewPublisher",
			"bus cannot be nil")
	}
	if prefix == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Publisher", "NewPublisher",
			"subject prefix cannot be empty")
	}

	p := &Publisher{
		bus:          bus,
		prefix:       prefix,
		ringCapacity: DefaultRingCapacity,
		logger:       slog.Default(),
	}
	p.pool.New = func() any {
		b := make([]byte, 0, 256)
		return &b
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	ringOpts := []buffer.Option[outbound]{
		buffer.WithOverflowPolicy[outbound](buffer.DropOldest),
		buffer.WithDropCallback[outbound](p.onRingDrop),
	}
	if p.registry != nil {
		ringOpts = append(ringOpts, buffer.WithMetrics[outbound](p.registry, "publisher_ring"))
	}
	ring, err := buffer.NewCircularBuffer(p.ringCapacity, ringOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Publisher", "NewPublisher", "create ring buffer")
	}
	p.ring = ring
	return p, nil
}

// Prefix returns the subject prefix packets are addressed under.
func (p *Publisher) Prefix() string {
	return p.prefix
}

// Pending returns how many enqueued packets await the drain goroutine.
func (p *Publisher) Pending() int {
	return p.ring.Size()
}

// Publish serializes e and sends it on the caller's goroutine.
func (p *Publisher) Publish(ctx context.Context, e event.Event) error {
	subject, err := SubjectForType(p.prefix, e)
	if err != nil {
		return err
	}

	bp, data, err := p.serialize(e)
	if err != nil {
		return err
	}
	defer p.pool.Put(bp)

	start := time.Now()
	if err := p.bus.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "Publisher", "Publish", "publish to "+subject)
	}
	p.recordPublished(subject, time.Since(start))
	return nil
}

// Enqueue serializes e into the ring for the drain goroutine. The publisher
// must be started for the packet to leave the ring.
func (p *Publisher) Enqueue(e event.Event) error {
	subject, err := SubjectForType(p.prefix, e)
	if err != nil {
		return err
	}

	// Ring entries outlive this call, so they get their own backing array
	// rather than a pooled one.
	data := make([]byte, e.PacketSize())
	n, err := e.Serialize(data)
	if err != nil {
		return errors.Wrap(err, "Publisher", "Enqueue", "serialize event")
	}
	if p.registry != nil {
		p.registry.CoreMetrics().RecordEventSerialized(e.Type().String())
	}

	if err := p.ring.Write(outbound{subject: subject, data: data[:n]}); err != nil {
		return errors.WrapTransient(errors.ErrShuttingDown, "Publisher", "Enqueue",
			"ring closed")
	}
	return nil
}

// Start launches the drain goroutine.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true
	go p.drainLoop(runCtx, p.done)
	return nil
}

// Stop halts the drain goroutine after a final flush and closes the ring.
// Packets still in the ring after the final flush are lost.
func (p *Publisher) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	done := p.done
	p.started = false
	p.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Publisher", "Stop",
			"drain goroutine did not stop in time")
	}
	return p.ring.Close()
}

func (p *Publisher) drainLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush with a fresh context so pending packets still
			// reach the broker during shutdown.
			p.flush(context.Background())
			return
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// flush publishes up to one batch from the ring. Publish failures drop the
// packet and continue; the broker connection owns retry behavior.
func (p *Publisher) flush(ctx context.Context) {
	batch := p.ring.ReadBatch(drainBatchSize)
	for _, out := range batch {
		start := time.Now()
		if err := p.bus.Publish(ctx, out.subject, out.data); err != nil {
			if p.registry != nil {
				p.registry.CoreMetrics().RecordPublishDropped("publish_error")
			}
			p.logger.Warn("dropping packet after failed publish",
				"subject", out.subject, "error", err)
			continue
		}
		p.recordPublished(out.subject, time.Since(start))
	}
}

// serialize writes e into a pooled buffer, growing it when the pooled
// capacity is short. The returned pointer must go back to the pool.
func (p *Publisher) serialize(e event.Event) (*[]byte, []byte, error) {
	bp, _ := p.pool.Get().(*[]byte)
	buf := *bp
	size := e.PacketSize()
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]

	n, err := e.Serialize(buf)
	if err != nil {
		p.pool.Put(bp)
		return nil, nil, errors.Wrap(err, "Publisher", "Publish", "serialize event")
	}
	*bp = buf
	if p.registry != nil {
		p.registry.CoreMetrics().RecordEventSerialized(e.Type().String())
	}
	return bp, buf[:n], nil
}

func (p *Publisher) recordPublished(subject string, elapsed time.Duration) {
	if p.registry == nil {
		return
	}
	core := p.registry.CoreMetrics()
	core.RecordEventPublished(subject)
	core.RecordPublishDuration(subject, elapsed)
}

// onRingDrop runs for every packet the overflow policy evicts.
func (p *Publisher) onRingDrop(out outbound) {
	if p.registry != nil {
		p.registry.CoreMetrics().RecordPublishDropped("ring_full")
	}
	p.logger.Warn("publish ring full, dropping oldest packet", "subject", out.subject)
}
