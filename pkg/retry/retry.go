// Package retry provides bounded exponential backoff for transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config controls how Do schedules attempts.
type Config struct {
	MaxAttempts  int           // Total attempts including the first (0 = run once)
	InitialDelay time.Duration // Delay before the second attempt
	MaxDelay     time.Duration // Upper bound on the delay between attempts
	Multiplier   float64       // Growth factor applied to the delay after each attempt
	AddJitter    bool          // Spread delays by up to 25% to avoid lockstep retries
}

// DefaultConfig suits short operations against a usually-healthy peer.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick suits node startup, where the broker may not be reachable yet.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   1.5,
		AddJitter:    true,
	}
}

// Persistent suits resources the node cannot operate without, such as its
// transport connection.
func Persistent() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// normalize rejects nonsense values and fills defaults for zero ones.
func (cfg *Config) normalize() error {
	switch {
	case cfg.InitialDelay < 0:
		return errors.New("retry: InitialDelay cannot be negative")
	case cfg.MaxDelay < 0:
		return errors.New("retry: MaxDelay cannot be negative")
	case cfg.Multiplier < 0:
		return errors.New("retry: Multiplier cannot be negative")
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	switch {
	case cfg.Multiplier == 0:
		cfg.Multiplier = 2.0
	case cfg.Multiplier > 1000:
		cfg.Multiplier = 1000
	}

	if cfg.MaxDelay < cfg.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return nil
}

// grow advances the delay by Multiplier, capped at MaxDelay and guarded
// against duration overflow.
func (cfg Config) grow(delay time.Duration) time.Duration {
	next := float64(delay) * cfg.Multiplier
	if next > float64(cfg.MaxDelay) || next > float64(time.Duration(1<<63-1)) {
		return cfg.MaxDelay
	}
	return time.Duration(next)
}

// sleepFor is the base delay plus up to 25% jitter when enabled.
func (cfg Config) sleepFor(delay time.Duration) time.Duration {
	if !cfg.AddJitter {
		return delay
	}
	return delay + rand.N(delay/4+1)
}

// Do runs fn until it succeeds, the attempts run out, fn reports a
// non-retryable error or ctx ends.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, err)
		}

		timer := time.NewTimer(cfg.sleepFor(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
		delay = cfg.grow(delay)
	}
}

// DoWithResult is Do for functions that produce a value. On failure the
// value from the last attempt is returned alongside the error.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

// NonRetryableError marks failures that more attempts cannot fix, such as
// rejected credentials.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps err so Do fails immediately instead of retrying.
// A nil err stays nil.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries the non-retryable marker.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}
