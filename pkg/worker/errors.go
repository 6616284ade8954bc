package worker

import "errors"

// Sentinel errors returned by pool operations; compare with errors.Is.
var (
	// ErrPoolNotStarted is returned by Submit before Start has been called
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped is returned by Submit after Stop has completed
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted is returned by Start when the pool is already running
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull is returned by Submit when the work queue is at capacity
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor causes NewPool to panic when no processor is provided
	ErrNilProcessor = errors.New("worker pool processor cannot be nil")

	// ErrStopTimeout is returned by Stop when workers do not drain in time
	ErrStopTimeout = errors.New("worker pool stop timeout")
)
