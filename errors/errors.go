// Package errors provides standardized error handling patterns for SigStreams components.
// It includes error classification, standard error variables, and helper functions
// for consistent error wrapping and classification across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neuroacq/sigstreams/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Component lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Connection and networking errors
	ErrNoConnection       = errors.New("no connection available")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrSubscriptionFailed = errors.New("subscription failed")
	ErrCircuitOpen        = errors.New("circuit breaker open")

	// Codec errors. The first four are transport-boundary failures: the
	// affected packet is dropped and processing continues. The last one is a
	// construction-time failure and indicates a misconfigured stage.
	ErrBufferTooSmall       = errors.New("destination buffer too small")
	ErrTypeMismatch         = errors.New("payload kind does not match descriptor")
	ErrChannelNotFound      = errors.New("channel descriptor not found")
	ErrMetadataIncompatible = errors.New("metadata does not match declared schema")
	ErrInvariantViolation   = errors.New("channel configuration invariant violated")

	// Data processing errors
	ErrInvalidData = errors.New("invalid data format")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// classRule groups the signals that map an unclassified error to a class:
// known sentinels first, substrings of the error text as a fallback.
type classRule struct {
	sentinels []error
	patterns  []string
}

var classRules = map[ErrorClass]classRule{
	ErrorTransient: {
		sentinels: []error{
			ErrConnectionTimeout, ErrConnectionLost, ErrNoConnection,
			ErrCircuitOpen, context.DeadlineExceeded, context.Canceled,
		},
		patterns: []string{
			"timeout", "connection", "network", "temporary",
			"unavailable", "busy", "retry",
		},
	},
	ErrorFatal: {
		sentinels: []error{ErrInvalidConfig, ErrMissingConfig, ErrInvariantViolation},
		patterns: []string{
			"fatal", "panic", "corrupted", "invalid config",
			"missing config", "invariant", "out of memory",
		},
	},
	ErrorInvalid: {
		sentinels: []error{
			ErrInvalidData, ErrBufferTooSmall, ErrTypeMismatch,
			ErrChannelNotFound, ErrMetadataIncompatible,
		},
	},
}

func (r classRule) matches(err error) bool {
	for _, sentinel := range r.sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	if len(r.patterns) == 0 {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range r.patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// hasClass reports whether err belongs to class. An explicit classification
// wins; otherwise the class rules decide.
func hasClass(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == class
	}
	return classRules[class].matches(err)
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool { return hasClass(err, ErrorTransient) }

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool { return hasClass(err, ErrorFatal) }

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool { return hasClass(err, ErrorInvalid) }

// Classify returns the error class for an error. Invalid beats fatal beats
// transient when several rules match; unknown errors default to transient
// so callers err on the side of retrying.
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClass(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapClass(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapClass(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapClass(ErrorInvalid, err, component, method, action)
}

// RetryConfig defines configuration for retry operations
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error // Empty means retry any transient error
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry determines if an error should be retried based on config
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries || !IsTransient(err) {
		return false
	}

	if len(rc.RetryableErrors) == 0 {
		return true
	}
	for _, retryable := range rc.RetryableErrors {
		if errors.Is(err, retryable) {
			return true
		}
	}
	return false
}

// ToRetryConfig converts the errors package RetryConfig to the retry framework's
// Config type. The conversion adds 1 to MaxRetries (converting "additional
// attempts" to "total attempts") and enables jitter.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}

// BackoffDelay calculates the delay for a retry attempt
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	delay := rc.InitialDelay
	for range attempt {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
		if delay > rc.MaxDelay {
			return rc.MaxDelay
		}
	}
	return delay
}
