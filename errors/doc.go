// Package errors provides standardized error handling patterns for SigStreams components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// signal-stream processing: Transient (temporary, retryable), Invalid (bad
// input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// Classification lets components make informed decisions about retries and
// packet dropping without hardcoded error string matching. It integrates with
// Go's standard error handling: errors.Is(), errors.As(), and wrapping chains
// all work through ClassifiedError.
//
// # Codec Error Contract
//
// The packet codec reports five conditions through sentinel variables:
//
//   - ErrBufferTooSmall: serialize destination capacity is insufficient; the
//     caller should query PacketSize() and retry with a larger buffer.
//   - ErrTypeMismatch: a packet's sub-kind byte disagrees with the resolved
//     descriptor's declared kind; the packet is dropped.
//   - ErrChannelNotFound: no descriptor is registered for the packet's
//     provenance key; the packet is dropped.
//   - ErrMetadataIncompatible: the trailing metadata section does not satisfy
//     the descriptor's declared schema; the packet is dropped.
//   - ErrInvariantViolation: a descriptor was constructed with an impossible
//     configuration (for example a spike channel whose source list does not
//     match its electrode kind). Fatal: the producing stage is misconfigured.
//
// The first four are classified Invalid: consumers drop the affected packet,
// count it, and continue. ErrInvariantViolation is classified Fatal because it
// can only happen during pipeline (re)configuration.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Client", "Connect", "dial")     // retryable
//	errors.WrapInvalid(err, "Deserialize", "event", "resolve") // drop and continue
//	errors.WrapFatal(err, "NewSpike", "sources", "validate")   // stop processing
//
// The generic Wrap() preserves the original error's classification.
//
// # Retry Integration
//
// RetryConfig carries backoff parameters and converts to the pkg/retry
// framework's Config via ToRetryConfig(). IsTransient() is the gate used by
// the transport layer before retrying:
//
//	if err := client.Publish(ctx, subject, data); err != nil {
//	    if errors.IsTransient(err) {
//	        // back off and retry
//	    }
//	}
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
