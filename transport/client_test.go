package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/pkg/retry"
)

func newLocalClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient("nats://localhost:4222", opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	client := newLocalClient(t)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
}

func TestNewClient_EmptyURL(t *testing.T) {
	_, err := NewClient("   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestStatusLifecycle(t *testing.T) {
	client := newLocalClient(t)
	require.Equal(t, StatusDisconnected, client.Status())

	steps := []struct {
		to      ConnectionStatus
		healthy bool
	}{
		{StatusConnecting, false},
		{StatusConnected, true},
		{StatusReconnecting, false},
		{StatusConnected, true},
	}
	for _, step := range steps {
		client.setStatus(step.to)
		assert.Equal(t, step.to, client.Status())
		assert.Equal(t, step.healthy, client.IsHealthy(), "healthy while %s", step.to)
	}
}

func TestIsHealthy(t *testing.T) {
	client := newLocalClient(t)

	// Only a live connection counts as healthy.
	for _, status := range []ConnectionStatus{
		StatusDisconnected,
		StatusConnecting,
		StatusConnected,
		StatusReconnecting,
		StatusCircuitOpen,
	} {
		client.setStatus(status)
		assert.Equal(t, status == StatusConnected, client.IsHealthy(), "status %s", status)
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit-open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("opens at the failure threshold", func(t *testing.T) {
		client := newLocalClient(t)

		for range 4 {
			client.recordFailure()
		}
		assert.NotEqual(t, StatusCircuitOpen, client.Status())

		client.recordFailure()
		assert.Equal(t, StatusCircuitOpen, client.Status())
		assert.Equal(t, int32(5), client.Failures())
	})

	t.Run("honors a custom threshold", func(t *testing.T) {
		client := newLocalClient(t, WithCircuitThreshold(2))

		client.recordFailure()
		assert.NotEqual(t, StatusCircuitOpen, client.Status())
		client.recordFailure()
		assert.Equal(t, StatusCircuitOpen, client.Status())
	})

	t.Run("reset clears failures and backoff", func(t *testing.T) {
		client := newLocalClient(t)

		for range 5 {
			client.recordFailure()
		}
		require.Equal(t, StatusCircuitOpen, client.Status())

		client.resetCircuit()
		assert.Equal(t, int32(0), client.Failures())
		assert.NotEqual(t, StatusCircuitOpen, client.Status())
		assert.Equal(t, time.Second, client.Backoff())
	})

	t.Run("backoff doubles per trip and caps at a minute", func(t *testing.T) {
		client := newLocalClient(t)
		assert.Equal(t, time.Second, client.Backoff())

		for range 5 {
			client.recordFailure()
		}
		assert.Equal(t, 2*time.Second, client.Backoff())

		for range 5 {
			client.recordFailure()
		}
		assert.Equal(t, 4*time.Second, client.Backoff())

		for range 100 {
			client.recordFailure()
		}
		assert.LessOrEqual(t, client.Backoff(), time.Minute)
	})
}

func TestConcurrentStatusChurn(t *testing.T) {
	client := newLocalClient(t)

	ops := []func(){
		func() { client.setStatus(StatusConnecting) },
		func() { client.setStatus(StatusConnected) },
		func() { _ = client.Status() },
		func() { _ = client.IsHealthy() },
		func() { client.recordFailure() },
		func() { client.resetCircuit() },
	}

	var g errgroup.Group
	for _, op := range ops {
		g.Go(func() error {
			for range 100 {
				op()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Whatever interleaving happened, the client lands in a nameable state.
	assert.NotEqual(t, "unknown", client.Status().String())
}

func TestWaitForConnection(t *testing.T) {
	t.Run("already connected returns at once", func(t *testing.T) {
		client := newLocalClient(t)
		client.setStatus(StatusConnected)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		start := time.Now()
		require.NoError(t, client.WaitForConnection(ctx))
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("connection arriving mid-wait unblocks", func(t *testing.T) {
		client := newLocalClient(t)
		go func() {
			time.Sleep(50 * time.Millisecond)
			client.setStatus(StatusConnected)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		require.NoError(t, client.WaitForConnection(ctx))
		assert.Equal(t, StatusConnected, client.Status())
	})

	t.Run("deadline expiry surfaces the timeout sentinel", func(t *testing.T) {
		client := newLocalClient(t)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := client.WaitForConnection(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrConnectionTimeout)
	})
}

// Operations fail with the right sentinel when there is no connection.
func TestGuards_NotConnected(t *testing.T) {
	client := newLocalClient(t)
	ctx := context.Background()

	err := client.Publish(ctx, "test.subject", []byte("data"))
	assert.Equal(t, errors.ErrNoConnection, err)

	_, err = client.PublishMsg(ctx, "test.subject", []byte("data"))
	assert.Equal(t, errors.ErrNoConnection, err)

	_, err = client.Subscribe(ctx, "test.subject", func(context.Context, string, []byte) {})
	assert.Equal(t, errors.ErrNoConnection, err)

	_, err = client.RTT()
	assert.Equal(t, errors.ErrNoConnection, err)
}

// Operations fail fast while the circuit is open, Connect included.
func TestGuards_CircuitOpen(t *testing.T) {
	client := newLocalClient(t)
	for range 5 {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())
	ctx := context.Background()

	err := client.Publish(ctx, "test.subject", []byte("data"))
	assert.Equal(t, errors.ErrCircuitOpen, err)

	_, err = client.PublishMsg(ctx, "test.subject", []byte("data"))
	assert.Equal(t, errors.ErrCircuitOpen, err)

	_, err = client.Subscribe(ctx, "test.subject", func(context.Context, string, []byte) {})
	assert.Equal(t, errors.ErrCircuitOpen, err)

	err = client.Connect(ctx)
	assert.Equal(t, errors.ErrCircuitOpen, err)
}

func TestConnect_Unreachable(t *testing.T) {
	client, err := NewClient("nats://invalid-host:4222",
		WithConnectRetry(retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond}),
		WithTimeout(500*time.Millisecond),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, client.Connect(ctx))
	assert.Equal(t, StatusDisconnected, client.Status())

	// Close without a connection is a no-op, twice over.
	assert.NoError(t, client.Close(ctx))
	assert.NoError(t, client.Close(ctx))
}

func TestConnectionOptions(t *testing.T) {
	client := newLocalClient(t,
		WithName("test-node"),
		WithMaxReconnects(10),
		WithReconnectWait(5*time.Second),
		WithPingInterval(30*time.Second),
	)

	assert.NotEmpty(t, client.ConnectionOptions())
	assert.Equal(t, 10, client.MaxReconnects())
	assert.Equal(t, 5*time.Second, client.ReconnectWait())
	assert.Equal(t, 30*time.Second, client.PingInterval())
}

func TestOptions_Validation(t *testing.T) {
	bad := map[string]Option{
		"empty name":               WithName(""),
		"zero timeout":             WithTimeout(0),
		"negative reconnect wait":  WithReconnectWait(-time.Second),
		"zero ping interval":       WithPingInterval(0),
		"zero max pings":           WithMaxPingsOut(0),
		"negative health interval": WithHealthInterval(-time.Second),
		"zero drain timeout":       WithDrainTimeout(0),
		"zero circuit threshold":   WithCircuitThreshold(0),
		"nil logger":               WithLogger(nil),
	}

	for name, opt := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient("nats://localhost:4222", opt)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestGetStatus(t *testing.T) {
	client := newLocalClient(t)
	for range 3 {
		client.recordFailure()
	}

	report := client.GetStatus()
	assert.Equal(t, "nats://localhost:4222", report.URL)
	assert.Equal(t, int32(3), report.FailureCount)
	assert.Equal(t, StatusDisconnected, report.Status)
	assert.NotZero(t, report.LastFailureTime)
	assert.Equal(t, time.Second, report.Backoff)

	client.resetCircuit()
	assert.Equal(t, int32(0), client.GetStatus().FailureCount)
}

// Subscription handles are idempotent.
func TestSubscription_Unsubscribe(t *testing.T) {
	calls := 0
	sub := NewSubscription("ephys.events.100.0", func() error {
		calls++
		return nil
	})

	assert.Equal(t, "ephys.events.100.0", sub.Subject())
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 1, calls)
}
