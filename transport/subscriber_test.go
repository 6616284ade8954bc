package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/metric"
	"github.com/neuroacq/sigstreams/stage"
)

// collector accumulates events delivered by decode workers.
type collector struct {
	mu       sync.Mutex
	subjects []string
	events   []event.Event
}

func (c *collector) handle(_ context.Context, subject string, e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	c.events = append(c.events, e)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) event(i int) event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[i]
}

func (c *collector) subject(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subjects[i]
}

// readCounter is the non-fatal sibling of counterValue for polling loops.
func readCounter(registry *metric.MetricsRegistry, family, label, value string) float64 {
	families, err := registry.PrometheusRegistry().Gather()
	if err != nil {
		return 0
	}
	if m := findMetric(families, family, label, value); m != nil {
		return m.GetCounter().GetValue()
	}
	return 0
}

func serializePacket(t *testing.T, e event.Event) []byte {
	t.Helper()

	buf := make([]byte, e.PacketSize())
	n, err := e.Serialize(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return buf
}

func TestNewSubscriber_Validation(t *testing.T) {
	bus := newBusStub()
	channels := channel.NewRegistry()
	handler := func(context.Context, string, event.Event) {}

	_, err := NewSubscriber(nil, channels, handler)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscriber(bus, nil, handler)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscriber(bus, channels, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscriber(bus, channels, handler, WithSubjects(""))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscriber(bus, channels, handler, WithDecodeWorkers(0))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscriber(bus, channels, handler, WithDecodeQueue(-1))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewSubscriber(bus, channels, handler, WithSubscriberLogger(nil))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestSubscriber_StartRequiresSubjects(t *testing.T) {
	bus := newBusStub()
	channels := channel.NewRegistry()

	sub, err := NewSubscriber(bus, channels, func(context.Context, string, event.Event) {})
	require.NoError(t, err)

	err = sub.Start(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestSubscriber_DecodesPublishedPackets(t *testing.T) {
	bus := newBusStub()
	channels, ttlInfo := testChannels(t)
	got := &collector{}

	sub, err := NewSubscriber(bus, channels, got.handle,
		WithSubjects("ephys.events.100.0"),
	)
	require.NoError(t, err)
	require.NoError(t, sub.Start(context.Background()))
	defer func() { _ = sub.Stop(time.Second) }()

	ttl, err := event.NewTTL(ttlInfo, 5000, 4, []byte{0x08})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "ephys.events.100.0", serializePacket(t, ttl)))

	require.Eventually(t, func() bool {
		return got.len() == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "ephys.events.100.0", got.subject(0))
	decoded, ok := got.event(0).(*event.TTL)
	require.True(t, ok)
	assert.Equal(t, uint64(5000), decoded.Timestamp())
	assert.Equal(t, uint16(4), decoded.Line())
	assert.True(t, decoded.State())
}

func TestSubscriber_WildcardSubscription(t *testing.T) {
	bus := newBusStub()
	channels := channel.NewRegistry()
	acq := stage.New(100, "acquisition")

	bankA := stage.NewBuilder(acq, 0, channels)
	infoA, err := bankA.Event(channel.TTL, 8, channel.WithName("bank-a"))
	require.NoError(t, err)
	bankB := stage.NewBuilder(acq, 1, channels)
	infoB, err := bankB.Event(channel.TTL, 8, channel.WithName("bank-b"))
	require.NoError(t, err)

	got := &collector{}
	sub, err := NewSubscriber(bus, channels, got.handle,
		WithSubjects(EventWildcard("ephys")),
	)
	require.NoError(t, err)
	require.NoError(t, sub.Start(context.Background()))
	defer func() { _ = sub.Stop(time.Second) }()

	ttlA, err := event.NewTTL(infoA, 10, 1, []byte{0x01})
	require.NoError(t, err)
	ttlB, err := event.NewTTL(infoB, 20, 2, []byte{0x02})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "ephys.events.100.0", serializePacket(t, ttlA)))
	require.NoError(t, bus.Publish(context.Background(), "ephys.events.100.1", serializePacket(t, ttlB)))

	require.Eventually(t, func() bool {
		return got.len() == 2
	}, time.Second, 5*time.Millisecond)

	seen := map[string]bool{got.subject(0): true, got.subject(1): true}
	assert.True(t, seen["ephys.events.100.0"])
	assert.True(t, seen["ephys.events.100.1"])
}

func TestSubscriber_MalformedPacketDropped(t *testing.T) {
	bus := newBusStub()
	channels, _ := testChannels(t)
	registry := metric.NewMetricsRegistry()
	got := &collector{}

	sub, err := NewSubscriber(bus, channels, got.handle,
		WithSubjects("ephys.events.100.0"),
		WithSubscriberMetrics(registry),
	)
	require.NoError(t, err)
	require.NoError(t, sub.Start(context.Background()))
	defer func() { _ = sub.Stop(time.Second) }()

	require.NoError(t, bus.Publish(context.Background(), "ephys.events.100.0", []byte{0xFF, 0xFF, 0xFF}))

	require.Eventually(t, func() bool {
		return readCounter(registry, "sigstreams_codec_packets_dropped_total", "reason", "invalid_packet") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, got.len())
}

func TestSubscriber_UnknownChannelDropped(t *testing.T) {
	bus := newBusStub()
	_, ttlInfo := testChannels(t)
	registry := metric.NewMetricsRegistry()
	got := &collector{}

	// The subscriber resolves against an empty registry, so the packet's
	// channel key cannot be found.
	sub, err := NewSubscriber(bus, channel.NewRegistry(), got.handle,
		WithSubjects("ephys.events.100.0"),
		WithSubscriberMetrics(registry),
	)
	require.NoError(t, err)
	require.NoError(t, sub.Start(context.Background()))
	defer func() { _ = sub.Stop(time.Second) }()

	ttl, err := event.NewTTL(ttlInfo, 1, 1, []byte{0x01})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "ephys.events.100.0", serializePacket(t, ttl)))

	require.Eventually(t, func() bool {
		return readCounter(registry, "sigstreams_codec_packets_dropped_total", "reason", "unknown_channel") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, got.len())
}

func TestSubscriber_DeserializedMetric(t *testing.T) {
	bus := newBusStub()
	channels, ttlInfo := testChannels(t)
	registry := metric.NewMetricsRegistry()
	got := &collector{}

	sub, err := NewSubscriber(bus, channels, got.handle,
		WithSubjects("ephys.events.100.0"),
		WithSubscriberMetrics(registry),
	)
	require.NoError(t, err)
	require.NoError(t, sub.Start(context.Background()))
	defer func() { _ = sub.Stop(time.Second) }()

	ttl, err := event.NewTTL(ttlInfo, 1, 1, []byte{0x01})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), "ephys.events.100.0", serializePacket(t, ttl)))

	require.Eventually(t, func() bool {
		return readCounter(registry, "sigstreams_codec_events_deserialized_total", "kind", "stage") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSubscriber_StartStop(t *testing.T) {
	bus := newBusStub()
	channels, _ := testChannels(t)

	sub, err := NewSubscriber(bus, channels, func(context.Context, string, event.Event) {},
		WithSubjects("ephys.events.>"),
	)
	require.NoError(t, err)

	require.NoError(t, sub.Start(context.Background()))
	assert.Equal(t, errors.ErrAlreadyStarted, sub.Start(context.Background()))
	assert.Equal(t, 1, bus.handlerCount())

	require.NoError(t, sub.Stop(time.Second))
	assert.Equal(t, 0, bus.handlerCount())

	// Stop after stop is a no-op.
	require.NoError(t, sub.Stop(time.Second))
}

func TestSubscriber_CtxCancelUnsubscribes(t *testing.T) {
	bus := newBusStub()
	channels, _ := testChannels(t)

	sub, err := NewSubscriber(bus, channels, func(context.Context, string, event.Event) {},
		WithSubjects("ephys.events.>"),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sub.Start(ctx))
	require.Equal(t, 1, bus.handlerCount())

	cancel()
	require.Eventually(t, func() bool {
		return bus.handlerCount() == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sub.Stop(time.Second))
}

func TestSubscriber_Subjects(t *testing.T) {
	bus := newBusStub()
	channels, _ := testChannels(t)

	sub, err := NewSubscriber(bus, channels, func(context.Context, string, event.Event) {},
		WithSubjects("a.b", "c.d"),
	)
	require.NoError(t, err)

	subjects := sub.Subjects()
	assert.Equal(t, []string{"a.b", "c.d"}, subjects)

	// The returned slice is a copy.
	subjects[0] = "mutated"
	assert.Equal(t, []string{"a.b", "c.d"}, sub.Subjects())
}
