// Package retry provides bounded exponential backoff for transient failures.
//
// # Overview
//
// The retry package implements attempt-bounded exponential backoff with
// optional jitter and context cancellation. It is used wherever a SigStreams
// node talks to infrastructure that can be briefly unavailable, most notably
// the transport client's initial broker connection.
//
// # Usage
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return client.Connect(ctx)
//	})
//
// Errors wrapped with NonRetryable fail immediately regardless of remaining
// attempts; use it for authentication and configuration failures that more
// attempts cannot fix:
//
//	if badCredentials {
//	    return retry.NonRetryable(err)
//	}
//
// DoWithResult is the generic variant for operations that return a value.
//
// # Presets
//
// Quick() suits startup races (many fast attempts, low ceiling); Persistent()
// suits resources a node cannot run without (fewer, slower, higher ceiling).
// DefaultConfig() sits in between. All presets add jitter to avoid thundering
// herds when many nodes restart together.
package retry
