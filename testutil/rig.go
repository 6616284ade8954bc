package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/transport"
)

// Rig wires a publisher and a subscriber back to back over a MockBus, so a
// test can push typed events through the full serialize, carry and decode
// path without a broker. Decoded events are collected in arrival order on
// the decode workers; with more than one worker that order is not the
// publish order, so assert on content rather than position.
type Rig struct {
	Bus        *MockBus
	Publisher  *transport.Publisher
	Subscriber *transport.Subscriber

	mu       sync.Mutex
	subjects []string
	events   []event.Event
}

// NewRig builds the publisher and subscriber over a fresh bus. The
// subscriber taps every subject under the prefix and resolves against res.
func NewRig(tb testing.TB, res event.Resolver, prefix string) *Rig {
	tb.Helper()

	r := &Rig{Bus: NewMockBus()}

	sub, err := transport.NewSubscriber(r.Bus, res, r.record,
		transport.WithSubjects(transport.Wildcard(prefix)),
	)
	if err != nil {
		tb.Fatalf("build rig subscriber: %v", err)
	}
	pub, err := transport.NewPublisher(r.Bus, prefix)
	if err != nil {
		tb.Fatalf("build rig publisher: %v", err)
	}

	r.Subscriber = sub
	r.Publisher = pub
	return r
}

// Start launches both ends and registers a cleanup that stops them.
func (r *Rig) Start(tb testing.TB) {
	tb.Helper()

	if err := r.Subscriber.Start(context.Background()); err != nil {
		tb.Fatalf("start rig subscriber: %v", err)
	}
	if err := r.Publisher.Start(context.Background()); err != nil {
		tb.Fatalf("start rig publisher: %v", err)
	}
	tb.Cleanup(func() {
		_ = r.Publisher.Stop(2 * time.Second)
		_ = r.Subscriber.Stop(2 * time.Second)
	})
}

// Stop halts the publisher first so pending packets flush, then the
// subscriber so queued packets decode.
func (r *Rig) Stop(tb testing.TB) {
	tb.Helper()

	if err := r.Publisher.Stop(2 * time.Second); err != nil {
		tb.Fatalf("stop rig publisher: %v", err)
	}
	if err := r.Subscriber.Stop(2 * time.Second); err != nil {
		tb.Fatalf("stop rig subscriber: %v", err)
	}
}

func (r *Rig) record(_ context.Context, subject string, e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.events = append(r.events, e)
}

// Events returns a copy of the decoded events collected so far.
func (r *Rig) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Subjects returns a copy of the subjects the collected events arrived on,
// index-aligned with Events.
func (r *Rig) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

// EventCount returns the number of events decoded so far.
func (r *Rig) EventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WaitForEvents polls until at least count events decoded, failing the test
// on timeout.
func (r *Rig) WaitForEvents(tb testing.TB, count int, timeout time.Duration) {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.EventCount() >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("timeout waiting for %d events (got %d)", count, r.EventCount())
}
