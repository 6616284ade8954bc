package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/transport"
)

// MockBus is an in-memory transport.Bus. Published packets are recorded for
// verification and dispatched synchronously to every subscription whose
// pattern matches, with NATS wildcard semantics. Thread-safe for concurrent
// use from multiple goroutines.
type MockBus struct {
	mu         sync.RWMutex
	messages   map[string][][]byte
	handlers   []busHandler
	nextID     int
	publishErr error
	closed     bool
}

type busHandler struct {
	id      int
	pattern string
	fn      transport.MsgHandler
}

// NewMockBus creates an empty in-memory bus.
func NewMockBus() *MockBus {
	return &MockBus{
		messages: make(map[string][][]byte),
	}
}

// Publish records the packet and invokes matching handlers outside the lock.
// Each handler gets a per-message context with a 30s timeout, matching the
// real client.
func (b *MockBus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.ErrShuttingDown
	}
	if b.publishErr != nil {
		err := b.publishErr
		b.mu.Unlock()
		return err
	}

	owned := make([]byte, len(data))
	copy(owned, data)
	b.messages[subject] = append(b.messages[subject], owned)

	var matched []transport.MsgHandler
	for _, h := range b.handlers {
		if SubjectMatches(h.pattern, subject) {
			matched = append(matched, h.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range matched {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		fn(msgCtx, subject, owned)
		cancel()
	}
	return nil
}

// Subscribe registers a handler for the subject pattern and returns a handle
// whose Unsubscribe removes exactly this registration.
func (b *MockBus) Subscribe(ctx context.Context, subject string, handler transport.MsgHandler) (*transport.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.ErrShuttingDown
	}

	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, busHandler{id: id, pattern: subject, fn: handler})

	return transport.NewSubscription(subject, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, h := range b.handlers {
			if h.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				break
			}
		}
		return nil
	}), nil
}

// SetPublishError makes every following Publish return err. Pass nil to
// restore normal delivery.
func (b *MockBus) SetPublishError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publishErr = err
}

// Messages returns a copy of all packets recorded for the subject.
func (b *MockBus) Messages(subject string) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msgs := b.messages[subject]
	if msgs == nil {
		return nil
	}
	out := make([][]byte, len(msgs))
	copy(out, msgs)
	return out
}

// MessageCount returns the number of packets recorded for the subject.
func (b *MockBus) MessageCount(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages[subject])
}

// TotalCount returns the number of packets recorded across all subjects.
func (b *MockBus) TotalCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, msgs := range b.messages {
		n += len(msgs)
	}
	return n
}

// SubscriptionCount returns the number of live handler registrations.
func (b *MockBus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Clear drops recorded packets for one subject.
func (b *MockBus) Clear(subject string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.messages, subject)
}

// ClearAll drops all recorded packets.
func (b *MockBus) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = make(map[string][][]byte)
}

// Close marks the bus closed. Publish and Subscribe then fail with
// ErrShuttingDown.
func (b *MockBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (b *MockBus) IsClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// SubjectMatches reports whether a subject matches a subscription pattern
// under NATS semantics: tokens split on ".", "*" matches exactly one token
// and a trailing ">" matches one or more remaining tokens.
func SubjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// WaitForMessage polls until a packet arrives on the subject and returns the
// latest one, failing the test on timeout.
func WaitForMessage(tb testing.TB, bus *MockBus, subject string, timeout time.Duration) []byte {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if msgs := bus.Messages(subject); len(msgs) > 0 {
			return msgs[len(msgs)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("timeout waiting for message on subject %s", subject)
	return nil
}

// WaitForMessageCount polls until at least count packets arrived on the
// subject, failing the test on timeout.
func WaitForMessageCount(tb testing.TB, bus *MockBus, subject string, count int, timeout time.Duration) {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if bus.MessageCount(subject) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
		count, subject, bus.MessageCount(subject))
}

// AssertMessageReceived fails the test unless at least one packet was
// recorded on the subject.
func AssertMessageReceived(tb testing.TB, bus *MockBus, subject string) {
	tb.Helper()

	if bus.MessageCount(subject) == 0 {
		tb.Fatalf("expected message on subject %s, got none", subject)
	}
}

// AssertNoMessages fails the test if any packet was recorded on the subject.
func AssertNoMessages(tb testing.TB, bus *MockBus, subject string) {
	tb.Helper()

	if n := bus.MessageCount(subject); n > 0 {
		tb.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}
