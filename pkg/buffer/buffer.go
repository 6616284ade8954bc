package buffer

import (
	"context"
	"time"
)

// Buffer is a bounded FIFO queue shared between producers and consumers.
// Implementations are safe for concurrent use. Read-side operations never
// block; Write may block only under the Block overflow policy.
type Buffer[T any] interface {
	// Write adds an item. What happens when the buffer is full depends on
	// the configured overflow policy.
	Write(item T) error

	// WriteWithTimeout is Write bounded by a timeout under the Block
	// policy. Other policies never park the writer, so it is then
	// identical to Write.
	WriteWithTimeout(item T, timeout time.Duration) error

	// WriteWithContext is Write honoring context cancellation under the
	// Block policy.
	WriteWithContext(ctx context.Context, item T) error

	// Read removes and returns the oldest item, or the zero value and
	// false when the buffer is empty.
	Read() (T, bool)

	// ReadBatch removes and returns up to max items, oldest first. The
	// returned slice may be shorter than max, or nil when empty.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it, or the zero value
	// and false when the buffer is empty.
	Peek() (T, bool)

	// Size returns the number of items currently held.
	Size() int

	// Capacity returns the fixed maximum number of items.
	Capacity() int

	// IsFull reports whether Size equals Capacity.
	IsFull() bool

	// IsEmpty reports whether the buffer holds no items.
	IsEmpty() bool

	// Clear discards every held item, feeding each to the drop callback.
	Clear()

	// Stats returns the always-on statistics tracker.
	Stats() *Statistics

	// Close shuts the buffer down and wakes any blocked writers. Writes
	// after Close fail.
	Close() error
}

// OverflowPolicy selects what Write does when the buffer is full.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room for the new one.
	DropOldest OverflowPolicy = iota

	// DropNewest discards the incoming item and keeps the buffer as is.
	DropNewest

	// Block makes Write wait until a read frees a slot.
	Block
)

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback receives each item discarded by the overflow policy or by
// Clear. It runs after the buffer lock is released, so it may safely call
// back into the buffer.
type DropCallback[T any] func(item T)

// NewCircularBuffer builds a ring buffer with the given capacity.
// Statistics are always collected; Prometheus export is opt-in through
// WithMetrics and is the only way construction can fail.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	return newRing(capacity, newSettings(options...))
}
