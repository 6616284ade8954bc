// Package transport carries serialized event packets over NATS.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/health"
	"github.com/neuroacq/sigstreams/metric"
	"github.com/neuroacq/sigstreams/pkg/retry"
)

// ConnectionStatus tracks the lifecycle of the NATS connection.
type ConnectionStatus int32

const (
	// StatusDisconnected means no connection attempt is in progress.
	StatusDisconnected ConnectionStatus = iota

	// StatusConnecting means a connection attempt is in progress.
	StatusConnecting

	// StatusConnected means the connection is established and usable.
	StatusConnected

	// StatusReconnecting means the connection dropped and the NATS client
	// is re-dialing on its own.
	StatusReconnecting

	// StatusCircuitOpen means repeated failures tripped the circuit
	// breaker and operations fail fast until the cooldown elapses.
	StatusCircuitOpen
)

// String returns a human-readable status name.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit-open"
	default:
		return "unknown"
	}
}

// Connection and circuit breaker defaults. The circuit opens after
// circuitThreshold consecutive failures and its cooldown doubles on every
// trip up to maxCircuitBackoff.
const (
	defaultTimeout          = 5 * time.Second
	defaultReconnectWait    = 2 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultMaxPingsOut      = 3
	defaultHealthInterval   = 10 * time.Second
	defaultDrainTimeout     = 30 * time.Second
	defaultCircuitThreshold = 5

	initialCircuitBackoff = time.Second
	maxCircuitBackoff     = time.Minute

	// messageTimeout bounds each subscription callback so a stuck handler
	// cannot wedge the NATS consumer goroutine.
	messageTimeout = 30 * time.Second

	msgIDHeader = "Nats-Msg-Id"
)

// healthComponent is the name the client reports under in a health.Monitor.
const healthComponent = "transport"

// MsgHandler receives one delivered message. The subject is the concrete
// subject the message arrived on, which differs from the subscribed subject
// under wildcard subscriptions.
type MsgHandler func(ctx context.Context, subject string, data []byte)

// Subscription is the handle for one active subscription. Unsubscribe is
// idempotent.
type Subscription struct {
	subject string

	once sync.Once
	stop func() error
	err  error
}

// NewSubscription wraps an unsubscribe function into a handle. In-memory
// buses use it to satisfy the Bus interface; the NATS client builds its
// handles internally.
func NewSubscription(subject string, unsubscribe func() error) *Subscription {
	return &Subscription{subject: subject, stop: unsubscribe}
}

// Subject returns the subject this subscription was created for.
func (s *Subscription) Subject() string {
	return s.subject
}

// Unsubscribe removes the subscription. Repeated calls return the result of
// the first.
func (s *Subscription) Unsubscribe() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.err = s.stop()
		}
	})
	return s.err
}

// Bus is the messaging surface the publisher and subscriber depend on.
// *Client implements it over NATS; tests substitute an in-memory bus.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler MsgHandler) (*Subscription, error)
}

// Client is a managed NATS connection with circuit breaker protection,
// bounded reconnect backoff and optional metric and health reporting.
//
// Status, failure counters and the breaker cooldown are atomics, so
// concurrent publishes, subscribes and health probes never contend on the
// connection mutex.
type Client struct {
	url string

	mu   sync.RWMutex
	conn *nats.Conn

	status      atomic.Value // ConnectionStatus
	failures    atomic.Int32
	lastFailure atomic.Value // time.Time

	circuitFailures  atomic.Int32
	circuitThreshold int32
	backoff          atomic.Value // time.Duration

	name          string
	timeout       time.Duration
	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	maxPingsOut   int

	healthInterval time.Duration
	drainTimeout   time.Duration
	connectRetry   retry.Config

	username string
	password string
	token    string
	tlsConf  *tls.Config

	onDisconnect func(error)
	onReconnect  func()
	onClosed     func()

	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor

	closeMu    sync.Mutex
	closed     bool
	healthDone chan struct{}
}

// NewClient creates a client for the given NATS URL. The client starts
// disconnected; call Connect to establish the connection.
func NewClient(url string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "NewClient",
			"NATS URL cannot be empty")
	}

	c := &Client{
		url:              url,
		name:             "sigstreams",
		timeout:          defaultTimeout,
		maxReconnects:    -1,
		reconnectWait:    defaultReconnectWait,
		pingInterval:     defaultPingInterval,
		maxPingsOut:      defaultMaxPingsOut,
		healthInterval:   defaultHealthInterval,
		drainTimeout:     defaultDrainTimeout,
		circuitThreshold: defaultCircuitThreshold,
		connectRetry:     retry.Quick(),
		logger:           slog.Default(),
	}
	c.status.Store(StatusDisconnected)
	c.backoff.Store(initialCircuitBackoff)
	c.lastFailure.Store(time.Time{})

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// URL returns the configured server URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	if s, ok := c.status.Load().(ConnectionStatus); ok {
		return s
	}
	return StatusDisconnected
}

// IsHealthy reports whether the connection is established and usable.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)

	if c.registry != nil {
		core := c.registry.CoreMetrics()
		core.RecordNATSStatus(s == StatusConnected)
		state := 0
		if s == StatusCircuitOpen {
			state = 1
		}
		core.RecordCircuitBreakerState(state)
	}
}

// Connect establishes the NATS connection, retrying transient dial failures
// with bounded backoff. It returns once the connection is live, the retry
// budget is spent or ctx ends.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return errors.ErrCircuitOpen
	}
	c.setStatus(StatusConnecting)

	err := retry.Do(ctx, c.connectRetry, func() error {
		conn, dialErr := nats.Connect(c.url, c.connectionOptions()...)
		if dialErr != nil {
			c.recordFailure()
			return dialErr
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "dial "+c.url)
	}

	c.resetCircuit()
	c.setStatus(StatusConnected)
	c.startHealthMonitor()
	c.logger.Info("connected to NATS", "url", c.url, "name", c.name)
	return nil
}

// connectionOptions translates the client configuration into nats.go
// options, wiring the reconnect handlers into status and metric updates.
func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.name),
		nats.Timeout(c.timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.MaxPingsOutstanding(c.maxPingsOut),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS connection lost", "url", c.url, "error", err)
			if c.onDisconnect != nil {
				go c.onDisconnect(err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.resetCircuit()
			c.setStatus(StatusConnected)
			if c.registry != nil {
				c.registry.CoreMetrics().RecordNATSReconnect()
			}
			c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			if c.onReconnect != nil {
				go c.onReconnect()
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
			if c.onClosed != nil {
				go c.onClosed()
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				c.logger.Error("NATS async error", "subject", sub.Subject, "error", err)
				return
			}
			c.logger.Error("NATS async error", "error", err)
		}),
	}

	if c.username != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.tlsConf != nil {
		opts = append(opts, nats.Secure(c.tlsConf))
	}
	return opts
}

// ConnectionOptions returns the nats.go options the client dials with.
func (c *Client) ConnectionOptions() []nats.Option {
	return c.connectionOptions()
}

// connection returns the live connection, or the sentinel explaining why
// there is none. Guard errors are returned bare so callers can compare them
// directly.
func (c *Client) connection() (*nats.Conn, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, errors.ErrCircuitOpen
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return nil, errors.ErrNoConnection
	}
	return conn, nil
}

// GetConnection returns the underlying nats.Conn, or nil when disconnected.
// Intended for test helpers that need raw access.
func (c *Client) GetConnection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Publish sends data on subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if err := conn.Publish(subject, data); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "Client", "Publish", "publish to "+subject)
	}
	return nil
}

// PublishMsg sends data on subject with a Nats-Msg-Id header carrying a
// fresh uuid, so JetStream-enabled consumers can deduplicate redeliveries.
// It returns the assigned id.
func (c *Client) PublishMsg(_ context.Context, subject string, data []byte) (string, error) {
	conn, err := c.connection()
	if err != nil {
		return "", err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	id := uuid.NewString()
	msg.Header.Set(msgIDHeader, id)

	if err := conn.PublishMsg(msg); err != nil {
		c.recordFailure()
		return "", errors.WrapTransient(err, "Client", "PublishMsg", "publish to "+subject)
	}
	return id, nil
}

// Subscribe registers handler for subject and returns the subscription
// handle. Every delivery runs under a per-message timeout context.
func (c *Client) Subscribe(_ context.Context, subject string, handler MsgHandler) (*Subscription, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(context.Background(), messageTimeout)
		defer cancel()
		handler(msgCtx, msg.Subject, msg.Data)
	})
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(errors.ErrSubscriptionFailed, "Client", "Subscribe",
			"subscribe to "+subject)
	}
	return NewSubscription(subject, sub.Unsubscribe), nil
}

// RTT measures the round trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	conn, err := c.connection()
	if err != nil {
		return 0, err
	}
	rtt, err := conn.RTT()
	if err != nil {
		return 0, errors.WrapTransient(err, "Client", "RTT", "measure round trip")
	}
	if c.registry != nil {
		c.registry.CoreMetrics().RecordNATSRTT(rtt)
	}
	return rtt, nil
}

// WaitForConnection blocks until the client reaches Connected or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context) error {
	if c.Status() == StatusConnected {
		return nil
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.WrapTransient(errors.ErrConnectionTimeout, "Client", "WaitForConnection",
				"waiting for "+c.url)
		case <-ticker.C:
			if c.Status() == StatusConnected {
				return nil
			}
		}
	}
}

// Close drains in-flight messages and closes the connection. Safe to call
// more than once; later calls are no-ops.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.stopHealthMonitor()

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	// Credentials are not needed past this point.
	c.username, c.password, c.token = "", "", ""
	c.mu.Unlock()

	if conn == nil {
		c.setStatus(StatusDisconnected)
		return nil
	}

	drainDone := make(chan error, 1)
	go func() { drainDone <- conn.Drain() }()

	var drainErr error
	select {
	case drainErr = <-drainDone:
	case <-time.After(c.drainTimeout):
		conn.Close()
		drainErr = fmt.Errorf("drain timed out after %s", c.drainTimeout)
	case <-ctx.Done():
		conn.Close()
		drainErr = ctx.Err()
	}

	c.setStatus(StatusDisconnected)
	if c.monitor != nil {
		c.monitor.Remove(healthComponent)
	}
	if drainErr != nil {
		return errors.WrapTransient(drainErr, "Client", "Close", "drain connection")
	}
	c.logger.Info("NATS connection closed", "url", c.url)
	return nil
}

// Failures returns the total failure count since the last circuit reset.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the current circuit breaker cooldown.
func (c *Client) Backoff() time.Duration {
	if d, ok := c.backoff.Load().(time.Duration); ok {
		return d
	}
	return initialCircuitBackoff
}

// MaxReconnects returns the configured reconnect attempt limit.
func (c *Client) MaxReconnects() int {
	return c.maxReconnects
}

// ReconnectWait returns the configured wait between reconnect attempts.
func (c *Client) ReconnectWait() time.Duration {
	return c.reconnectWait
}

// PingInterval returns the configured keepalive ping interval.
func (c *Client) PingInterval() time.Duration {
	return c.pingInterval
}

// StatusReport is a point-in-time snapshot of the connection state.
type StatusReport struct {
	URL             string
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Backoff         time.Duration
}

// GetStatus returns a snapshot of the connection state.
func (c *Client) GetStatus() StatusReport {
	last, _ := c.lastFailure.Load().(time.Time)
	return StatusReport{
		URL:             c.url,
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: last,
		Backoff:         c.Backoff(),
	}
}

// recordFailure counts one failure toward the circuit threshold. Crossing
// the threshold opens the circuit, doubles the cooldown and schedules a
// half-open probe.
func (c *Client) recordFailure() {
	c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	if c.registry != nil {
		c.registry.CoreMetrics().RecordError(healthComponent, "connection")
	}

	if c.circuitFailures.Add(1) < c.circuitThreshold {
		return
	}
	c.circuitFailures.Store(0)
	c.setStatus(StatusCircuitOpen)

	next := c.Backoff() * 2
	if next > maxCircuitBackoff {
		next = maxCircuitBackoff
	}
	c.backoff.Store(next)

	c.logger.Warn("circuit breaker open",
		"url", c.url,
		"failures", c.failures.Load(),
		"cooldown", next)
	time.AfterFunc(next, c.testCircuit)
}

// testCircuit half-opens the circuit after the cooldown. If the underlying
// connection recovered on its own the circuit closes, otherwise the client
// drops back to disconnected so the next Connect may try again.
func (c *Client) testCircuit() {
	if c.Status() != StatusCircuitOpen {
		return
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn != nil && conn.IsConnected() {
		c.resetCircuit()
		c.setStatus(StatusConnected)
		c.logger.Info("circuit breaker closed", "url", c.url)
		return
	}
	c.setStatus(StatusDisconnected)
}

// resetCircuit clears the failure counters and restores the initial
// cooldown.
func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(initialCircuitBackoff)
	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

func (c *Client) startHealthMonitor() {
	if c.healthInterval <= 0 {
		return
	}

	c.mu.Lock()
	if c.healthDone != nil {
		c.mu.Unlock()
		return
	}
	done := make(chan struct{})
	c.healthDone = done
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.checkHealth()
			}
		}
	}()
}

func (c *Client) stopHealthMonitor() {
	c.mu.Lock()
	done := c.healthDone
	c.healthDone = nil
	c.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// checkHealth samples the connection and publishes the result to the metric
// and health sinks.
func (c *Client) checkHealth() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	connected := conn != nil && conn.IsConnected()
	if c.registry != nil {
		c.registry.CoreMetrics().RecordNATSStatus(connected)
		c.registry.CoreMetrics().RecordHealthStatus(healthComponent, connected)
	}

	if !connected {
		if c.monitor != nil {
			c.monitor.UpdateUnhealthy(healthComponent, "NATS connection down")
		}
		return
	}

	rtt, err := conn.RTT()
	if err != nil {
		if c.monitor != nil {
			c.monitor.UpdateDegraded(healthComponent, "RTT probe failed")
		}
		return
	}
	if c.registry != nil {
		c.registry.CoreMetrics().RecordNATSRTT(rtt)
	}
	if c.monitor != nil {
		c.monitor.UpdateHealthy(healthComponent,
			fmt.Sprintf("connected, rtt %s", rtt.Round(time.Microsecond)))
	}
}
