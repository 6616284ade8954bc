package metric

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroacq/sigstreams/errors"
)

// Server exposes a MetricsRegistry for Prometheus scraping over HTTP.
type Server struct {
	registry *MetricsRegistry
	port     int
	path     string

	mu     sync.Mutex
	server *http.Server
	health http.HandlerFunc
}

// NewServer builds a scrape server for the given registry. A zero port
// defaults to 9090 and an empty path to /metrics.
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if port == 0 {
		port = 9090
	}
	if path == "" {
		path = "/metrics"
	}
	return &Server{registry: registry, port: port, path: path}
}

// SetHealthHandler replaces the static /health responder, letting callers
// serve aggregated component health from the same address. Must be called
// before Start.
func (s *Server) SetHealthHandler(h http.HandlerFunc) {
	s.mu.Lock()
	s.health = h
	s.mu.Unlock()
}

// routes assembles the scrape mux. Caller holds s.mu.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	health := s.health
	if health == nil {
		health = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}
	}
	mux.HandleFunc("/health", health)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<html>
<head><title>SigStreams Metrics</title></head>
<body>
<h1>SigStreams Metrics Server</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="/health">Health</a></p>
</body>
</html>`, s.path)
	})

	return mux
}

// Start serves scrapes and blocks until the server stops. A server shut
// down through Stop returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Start", "metrics registry not provided")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.routes(),
	}
	s.server = srv

	// Serve outside the lock so Stop can close the listener.
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to start server on port %d", s.port))
	}
	return nil
}

// Stop closes the listener. The server may be started again afterwards.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	s.server = nil
	if err != nil {
		return errors.WrapTransient(err, "Server", "Stop",
			"failed to stop HTTP server")
	}
	return nil
}

// Address returns the local scrape URL.
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
