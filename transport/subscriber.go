package transport

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/metric"
	"github.com/neuroacq/sigstreams/pkg/worker"
)

// Subscriber defaults, matching the tap configuration defaults.
const (
	DefaultDecodeWorkers = 4
	DefaultDecodeQueue   = 1024
)

// EventHandler receives every successfully decoded packet. The handler runs
// on a decode worker goroutine, so implementations must be safe for
// concurrent calls.
type EventHandler func(ctx context.Context, subject string, e event.Event)

// inbound is one raw packet waiting for a decode worker.
type inbound struct {
	subject string
	data    []byte
}

// Subscriber subscribes a set of subjects and decodes the raw packets
// through a worker pool against the channel registry.
//
// A packet that fails to decode is counted, logged and dropped; the stream
// keeps flowing. Malformed input never stops the subscriber.
type Subscriber struct {
	bus      Bus
	resolver event.Resolver
	handler  EventHandler

	subjects  []string
	workers   int
	queueSize int
	logger    *slog.Logger
	registry  *metric.MetricsRegistry

	pool *worker.Pool[inbound]

	mu         sync.Mutex
	started    bool
	subs       []*Subscription
	cancel     context.CancelFunc
	poolCancel context.CancelFunc
	group      *errgroup.Group
}

// SubscriberOption configures a Subscriber at construction.
type SubscriberOption func(*Subscriber) error

// WithSubjects sets the subjects to subscribe. Wildcards are allowed; see
// the subject helpers.
func WithSubjects(subjects ...string) SubscriberOption {
	return func(s *Subscriber) error {
		for _, subject := range subjects {
			if subject == "" {
				return errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "WithSubjects",
					"subject cannot be empty")
			}
		}
		s.subjects = append(s.subjects, subjects...)
		return nil
	}
}

// WithDecodeWorkers sets how many goroutines decode packets.
func WithDecodeWorkers(n int) SubscriberOption {
	return func(s *Subscriber) error {
		if n <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "WithDecodeWorkers",
				"worker count must be positive")
		}
		s.workers = n
		return nil
	}
}

// WithDecodeQueue sets how many raw packets may wait for a decode worker.
func WithDecodeQueue(n int) SubscriberOption {
	return func(s *Subscriber) error {
		if n <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "WithDecodeQueue",
				"queue size must be positive")
		}
		s.queueSize = n
		return nil
	}
}

// WithSubscriberLogger replaces the default slog logger.
func WithSubscriberLogger(logger *slog.Logger) SubscriberOption {
	return func(s *Subscriber) error {
		if logger == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "WithSubscriberLogger",
				"logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithSubscriberMetrics wires the subscriber and its decode pool into the
// platform metrics registry.
func WithSubscriberMetrics(registry *metric.MetricsRegistry) SubscriberOption {
	return func(s *Subscriber) error {
		s.registry = registry
		return nil
	}
}

// NewSubscriber creates a subscriber that decodes against resolver and
// hands every decoded event to handler.
func NewSubscriber(bus Bus, resolver event.Resolver, handler EventHandler, opts ...SubscriberOption) (*Subscriber, error) {
	if bus == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "NewSubscriber",
			"bus cannot be nil")
	}
	if resolver == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "NewSubscriber",
			"resolver cannot be nil")
	}
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "NewSubscriber",
			"handler cannot be nil")
	}

	s := &Subscriber{
		bus:       bus,
		resolver:  resolver,
		handler:   handler,
		workers:   DefaultDecodeWorkers,
		queueSize: DefaultDecodeQueue,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var poolOpts []worker.Option[inbound]
	if s.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[inbound](s.registry, "subscriber_decode"))
	}
	s.pool = worker.NewPool(s.workers, s.queueSize, s.decode, poolOpts...)
	return s, nil
}

// Subjects returns the configured subjects.
func (s *Subscriber) Subjects() []string {
	out := make([]string, len(s.subjects))
	copy(out, s.subjects)
	return out
}

// Stats returns decode pool statistics.
func (s *Subscriber) Stats() worker.PoolStats {
	return s.pool.Stats()
}

// Start subscribes every configured subject and launches the decode pool.
// Cancelling ctx tears the subscriptions down.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.ErrAlreadyStarted
	}
	if len(s.subjects) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Subscriber", "Start",
			"no subjects configured")
	}

	// The pool outlives the subscription context so queued packets still
	// decode during shutdown; Stop cancels it after the queue drains.
	poolCtx, poolCancel := context.WithCancel(context.Background())
	if err := s.pool.Start(poolCtx); err != nil {
		poolCancel()
		return errors.Wrap(err, "Subscriber", "Start", "start decode pool")
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	var subs []*Subscription
	for _, subject := range s.subjects {
		sub, err := s.bus.Subscribe(runCtx, subject, s.enqueue)
		if err != nil {
			for _, active := range subs {
				_ = active.Unsubscribe()
			}
			cancel()
			_ = s.pool.Stop(time.Second)
			poolCancel()
			return errors.WrapTransient(err, "Subscriber", "Start", "subscribe to "+subject)
		}
		subs = append(subs, sub)
		s.logger.Debug("subscribed", "subject", subject)
	}

	s.subs = subs
	s.cancel = cancel
	s.poolCancel = poolCancel
	s.group = g
	s.started = true

	// Subscription lifetimes are bound to the context: the group tears
	// them down when the caller's ctx ends or Stop cancels.
	g.Go(func() error {
		<-gctx.Done()
		return s.unsubscribeAll()
	})
	return nil
}

// Stop tears down the subscriptions, drains queued packets through the
// decode pool and stops it.
func (s *Subscriber) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	poolCancel := s.poolCancel
	group := s.group
	s.started = false
	s.mu.Unlock()

	cancel()
	teardownErr := group.Wait()

	poolErr := s.pool.Stop(timeout)
	poolCancel()

	if teardownErr != nil {
		return errors.Wrap(teardownErr, "Subscriber", "Stop", "unsubscribe")
	}
	if poolErr != nil {
		return errors.WrapTransient(poolErr, "Subscriber", "Stop", "stop decode pool")
	}
	return nil
}

func (s *Subscriber) unsubscribeAll() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	var first error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// enqueue is the bus handler: it copies the payload across the goroutine
// boundary and submits it to the decode pool.
func (s *Subscriber) enqueue(_ context.Context, subject string, data []byte) {
	raw := make([]byte, len(data))
	copy(raw, data)

	if err := s.pool.Submit(inbound{subject: subject, data: raw}); err != nil {
		reason := "shutdown"
		if stderrors.Is(err, worker.ErrQueueFull) {
			reason = "queue_full"
		}
		if s.registry != nil {
			s.registry.CoreMetrics().RecordPacketDropped(reason)
		}
		s.logger.Warn("dropping packet before decode",
			"subject", subject, "reason", reason)
	}
}

// decode deserializes one packet and hands it to the handler. Failures drop
// the packet and never propagate; a poisoned packet must not stop the pool.
func (s *Subscriber) decode(ctx context.Context, in inbound) error {
	start := time.Now()
	e, err := event.Deserialize(in.data, s.resolver)
	if err != nil {
		s.dropPacket(in.subject, err)
		return nil
	}

	if s.registry != nil {
		core := s.registry.CoreMetrics()
		kind := e.Type().String()
		core.RecordEventDeserialized(kind)
		core.RecordDecodeDuration(kind, time.Since(start))
	}
	s.handler(ctx, in.subject, e)
	return nil
}

// dropPacket classifies err for the drop counter and logs it.
func (s *Subscriber) dropPacket(subject string, err error) {
	reason := "decode_error"
	switch {
	case stderrors.Is(err, errors.ErrChannelNotFound):
		reason = "unknown_channel"
	case stderrors.Is(err, errors.ErrMetadataIncompatible):
		reason = "metadata_mismatch"
	case errors.IsInvalid(err):
		reason = "invalid_packet"
	}
	if s.registry != nil {
		s.registry.CoreMetrics().RecordPacketDropped(reason)
	}
	s.logger.Warn("dropping undecodable packet",
		"subject", subject, "reason", reason, "error", err)
}
