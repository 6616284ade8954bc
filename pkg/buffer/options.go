package buffer

import (
	"github.com/neuroacq/sigstreams/metric"
)

// Option configures buffer construction.
type Option[T any] func(*settings[T])

type settings[T any] struct {
	policy OverflowPolicy
	onDrop DropCallback[T]

	// registry plus component enable the Prometheus mirror; either one
	// missing leaves the buffer stats-only.
	registry  *metric.MetricsRegistry
	component string
}

// WithOverflowPolicy selects the full-buffer behavior. The default is
// DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(s *settings[T]) {
		s.policy = policy
	}
}

// WithMetrics mirrors buffer statistics into the given registry, labeled
// with the component name. Ignored when registry is nil or component is
// empty.
func WithMetrics[T any](registry *metric.MetricsRegistry, component string) Option[T] {
	return func(s *settings[T]) {
		if registry != nil && component != "" {
			s.registry = registry
			s.component = component
		}
	}
}

// WithDropCallback registers a callback for every item the overflow policy
// or Clear discards.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(s *settings[T]) {
		s.onDrop = callback
	}
}

func newSettings[T any](options ...Option[T]) *settings[T] {
	s := &settings[T]{policy: DropOldest}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}
