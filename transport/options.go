package transport

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/health"
	"github.com/neuroacq/sigstreams/metric"
	"github.com/neuroacq/sigstreams/pkg/retry"
)

// Option configures a Client at construction.
type Option func(*Client) error

// WithName sets the connection name reported to the NATS server.
func WithName(name string) Option {
	return func(c *Client) error {
		if name == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithName",
				"connection name cannot be empty")
		}
		c.name = name
		return nil
	}
}

// WithTimeout sets the dial timeout for each connection attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithTimeout",
				"timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

// WithMaxReconnects sets how many times the NATS client re-dials after a
// drop. Negative means unlimited, zero disables reconnects.
func WithMaxReconnects(n int) Option {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the wait between reconnect attempts.
func WithReconnectWait(wait time.Duration) Option {
	return func(c *Client) error {
		if wait < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithReconnectWait",
				"reconnect wait cannot be negative")
		}
		c.reconnectWait = wait
		return nil
	}
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(interval time.Duration) Option {
	return func(c *Client) error {
		if interval <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithPingInterval",
				"ping interval must be positive")
		}
		c.pingInterval = interval
		return nil
	}
}

// WithMaxPingsOut sets how many unanswered pings mark the connection stale.
func WithMaxPingsOut(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithMaxPingsOut",
				"max pings out must be positive")
		}
		c.maxPingsOut = n
		return nil
	}
}

// WithHealthInterval sets how often the client probes the connection for
// the metric and health sinks. Zero disables the probe goroutine.
func WithHealthInterval(interval time.Duration) Option {
	return func(c *Client) error {
		if interval < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithHealthInterval",
				"health interval cannot be negative")
		}
		c.healthInterval = interval
		return nil
	}
}

// WithDrainTimeout bounds how long Close waits for in-flight messages.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithDrainTimeout",
				"drain timeout must be positive")
		}
		c.drainTimeout = timeout
		return nil
	}
}

// WithConnectRetry replaces the backoff schedule Connect uses for dial
// attempts.
func WithConnectRetry(cfg retry.Config) Option {
	return func(c *Client) error {
		c.connectRetry = cfg
		return nil
	}
}

// WithCircuitThreshold sets how many consecutive failures open the circuit.
func WithCircuitThreshold(n int32) Option {
	return func(c *Client) error {
		if n <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithCircuitThreshold",
				"circuit threshold must be positive")
		}
		c.circuitThreshold = n
		return nil
	}
}

// WithCredentials sets username and password authentication.
func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithToken sets token authentication.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTLS sets the TLS configuration for the connection.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) error {
		c.tlsConf = cfg
		return nil
	}
}

// WithDisconnectCallback registers fn to run whenever the connection drops.
// The callback runs on its own goroutine.
func WithDisconnectCallback(fn func(error)) Option {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback registers fn to run after a successful reconnect.
// The callback runs on its own goroutine.
func WithReconnectCallback(fn func()) Option {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}

// WithClosedCallback registers fn to run when the connection closes for
// good. The callback runs on its own goroutine.
func WithClosedCallback(fn func()) Option {
	return func(c *Client) error {
		c.onClosed = fn
		return nil
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "WithLogger",
				"logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics wires the client into the platform metrics registry. The
// client reports connection status, RTT, reconnects and circuit breaker
// state.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Client) error {
		c.registry = registry
		return nil
	}
}

// WithHealthMonitor wires the client into a health monitor. The client
// reports under the component name "transport".
func WithHealthMonitor(monitor *health.Monitor) Option {
	return func(c *Client) error {
		c.monitor = monitor
		return nil
	}
}
