package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient runs a throwaway NATS server in a container and connects a
// Client to it. Tests that need a real broker use it instead of mocks.
type TestClient struct {
	container testcontainers.Container
	Client    *Client
	URL       string
	cleanup   func()
}

type testConfig struct {
	natsVersion  string
	timeout      time.Duration
	startTimeout time.Duration
}

func defaultTestConfig() *testConfig {
	return &testConfig{
		natsVersion:  "2.11.7-alpine",
		timeout:      5 * time.Second,
		startTimeout: 30 * time.Second,
	}
}

// TestOption configures the test NATS container.
type TestOption func(*testConfig)

// WithNATSVersion pins the NATS server image version.
func WithNATSVersion(version string) TestOption {
	return func(cfg *testConfig) { cfg.natsVersion = version }
}

// WithTestTimeout sets the connection timeout for the test client.
func WithTestTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) { cfg.timeout = timeout }
}

// WithStartTimeout sets the container startup timeout.
func WithStartTimeout(timeout time.Duration) TestOption {
	return func(cfg *testConfig) { cfg.startTimeout = timeout }
}

// NewTestClient starts a NATS container and returns a connected client.
// Cleanup is registered on t; the container and connection go away with the
// test.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()

	tc, err := NewSharedTestClient(opts...)
	if err != nil {
		t.Fatalf("start test NATS: %v", err)
	}
	t.Cleanup(tc.cleanup)
	return tc
}

// NewSharedTestClient starts a NATS container without a testing.T, for use
// in TestMain when several tests share one broker. The caller must call
// Terminate.
func NewSharedTestClient(opts ...TestOption) (*TestClient, error) {
	cfg := defaultTestConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()
	container, url, err := startNATSContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := connectTestClient(ctx, url, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestClient{
		container: container,
		Client:    client,
		URL:       url,
		cleanup: func() {
			_ = client.Close(context.Background())
			_ = container.Terminate(context.Background())
		},
	}, nil
}

// startNATSContainer brings up the broker image and reports the client URL
// once both the client port and the monitoring endpoint answer.
func startNATSContainer(ctx context.Context, cfg *testConfig) (testcontainers.Container, string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:" + cfg.natsVersion,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          []string{"--port", "4222", "--http_port", "8222"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(cfg.startTimeout),
			),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start NATS container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("container port: %w", err)
	}
	return container, fmt.Sprintf("nats://%s:%s", host, port.Port()), nil
}

// connectTestClient dials the containerized broker with reconnects and
// background health checks disabled.
func connectTestClient(ctx context.Context, url string, cfg *testConfig) (*Client, error) {
	client, err := NewClient(url,
		WithTimeout(cfg.timeout),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to test NATS: %w", err)
	}
	if err := client.WaitForConnection(connectCtx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("test NATS not ready: %w", err)
	}
	return client, nil
}

// Terminate closes the client and removes the container. Usually handled by
// t.Cleanup.
func (tc *TestClient) Terminate() error {
	if tc.cleanup != nil {
		tc.cleanup()
		tc.cleanup = nil
	}
	return nil
}

// IsReady reports whether the connection to the test broker is usable.
func (tc *TestClient) IsReady() bool {
	return tc.Client.IsHealthy()
}

// GetNativeConnection returns the raw nats.Conn for direct wire access.
func (tc *TestClient) GetNativeConnection() *nats.Conn {
	return tc.Client.GetConnection()
}
