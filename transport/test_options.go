package transport

import "time"

func tuned(connect, start time.Duration) TestOption {
	return func(cfg *testConfig) {
		cfg.timeout = connect
		cfg.startTimeout = start
	}
}

// WithFastStartup tunes the test container for unit test speed.
func WithFastStartup() TestOption { return tuned(2*time.Second, 10*time.Second) }

// WithIntegrationDefaults allows for slower container starts on loaded CI
// hosts.
func WithIntegrationDefaults() TestOption { return tuned(5*time.Second, 30*time.Second) }
