// Package e2e drives the full publish path end to end over an in-memory
// bus: construct, serialize, route by subject, decode and hand off. The
// broker is the only piece swapped out, everything else is the production
// wiring.
package e2e

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/testutil"
	"github.com/neuroacq/sigstreams/transport"
)

const prefix = "sigstreams.lab.rig01"

func TestFlow_AllEventKinds(t *testing.T) {
	channels := testutil.NewChannels(t)
	rig := testutil.NewRig(t, channels.Registry, prefix)
	rig.Start(t)

	ctx := context.Background()
	require.NoError(t, rig.Publisher.Publish(ctx, event.NewTimestampEvent(testutil.StageID, testutil.SubStream, 1_000_000)))
	require.NoError(t, rig.Publisher.Publish(ctx, testutil.TTLEvent(t, channels.TTL, 1_000_100, 5, true)))
	require.NoError(t, rig.Publisher.Publish(ctx, testutil.TextEvent(t, channels.Messages, 1_000_200, "stim on")))
	require.NoError(t, rig.Publisher.Publish(ctx, testutil.SpikeEvent(t, channels.Spikes, 1_000_300, -48.25)))

	rig.WaitForEvents(t, 4, 2*time.Second)

	byType := make(map[event.Type][]event.Event)
	for _, e := range rig.Events() {
		byType[e.Type()] = append(byType[e.Type()], e)
	}

	require.Len(t, byType[event.TypeSystem], 1)
	sys := byType[event.TypeSystem][0].(*event.System)
	assert.Equal(t, event.SystemTimestamp, sys.Kind())
	assert.Equal(t, uint64(1_000_000), sys.Timestamp())

	require.Len(t, byType[event.TypeStage], 2)
	for _, e := range byType[event.TypeStage] {
		switch ev := e.(type) {
		case *event.TTL:
			assert.Equal(t, uint16(5), ev.Line())
			assert.True(t, ev.State())
			assert.Equal(t, "digital-in", ev.Info().Name())
		case *event.Text:
			assert.Equal(t, "stim on", ev.Text())
			assert.Equal(t, "messages", ev.Info().Name())
		default:
			t.Fatalf("unexpected stage event %T", e)
		}
	}

	require.Len(t, byType[event.TypeSpike], 1)
	spike := byType[event.TypeSpike][0].(*event.Spike)
	assert.InDelta(t, -48.25, spike.Threshold(), 0.0001)
	assert.Len(t, spike.Waveform(), channels.Spikes.ChannelCount())

	assert.Contains(t, rig.Subjects(), transport.SystemSubject(prefix, testutil.StageID))
	assert.Contains(t, rig.Subjects(), transport.EventSubject(prefix, testutil.StageID, testutil.SubStream))
}

func TestFlow_MetadataSurvivesTheWire(t *testing.T) {
	channels := testutil.NewChannels(t)
	rig := testutil.NewRig(t, channels.Registry, prefix)
	rig.Start(t)

	const sampleIndex = 9_876_543
	require.NoError(t, rig.Publisher.Publish(context.Background(),
		testutil.SyncEvent(t, channels.Sync, 2_000_000, sampleIndex)))

	rig.WaitForEvents(t, 1, 2*time.Second)

	ttl, ok := rig.Events()[0].(*event.TTL)
	require.True(t, ok)

	values := ttl.Metadata()
	require.Len(t, values, 1)
	assert.Equal(t, testutil.SampleIndexField.Identifier, values[0].Field().Identifier)
	assert.Equal(t, uint64(sampleIndex), binary.NativeEndian.Uint64(values[0].Bytes()))
}

func TestFlow_MalformedPacketsDoNotStallDecoding(t *testing.T) {
	channels := testutil.NewChannels(t)
	rig := testutil.NewRig(t, channels.Registry, prefix)
	rig.Start(t)

	ctx := context.Background()
	subject := transport.EventSubject(prefix, testutil.StageID, testutil.SubStream)
	for name, raw := range testutil.MalformedPackets {
		require.NoError(t, rig.Bus.Publish(ctx, subject, raw), "publish %s", name)
	}

	// A well-formed event after the garbage still decodes.
	require.NoError(t, rig.Publisher.Publish(ctx, testutil.TTLEvent(t, channels.TTL, 3_000_000, 1, true)))

	rig.WaitForEvents(t, 1, 2*time.Second)
	assert.Equal(t, 1, rig.EventCount())
}

func TestFlow_UnknownChannelsDropStageEventsOnly(t *testing.T) {
	// The subscriber's registry is empty, as a tap without a manifest
	// would be. Stage packets drop, system packets decode standalone.
	producer := testutil.NewChannels(t)
	rig := testutil.NewRig(t, channel.NewRegistry(), prefix)
	rig.Start(t)

	ctx := context.Background()
	subject := transport.EventSubject(prefix, testutil.StageID, testutil.SubStream)
	raw := testutil.Packet(t, testutil.TTLEvent(t, producer.TTL, 4_000_000, 2, false))
	require.NoError(t, rig.Bus.Publish(ctx, subject, raw))

	require.NoError(t, rig.Publisher.Publish(ctx, event.NewBufferSizeEvent(testutil.StageID, testutil.SubStream, 512)))

	rig.WaitForEvents(t, 1, 2*time.Second)

	sys, ok := rig.Events()[0].(*event.System)
	require.True(t, ok)
	assert.Equal(t, event.SystemBufferSize, sys.Kind())
	assert.Equal(t, uint32(512), sys.BufferSize())
}

func TestFlow_EnqueuedBurstArrivesComplete(t *testing.T) {
	channels := testutil.NewChannels(t)
	rig := testutil.NewRig(t, channels.Registry, prefix)
	rig.Start(t)

	const burst = 50
	for i := 0; i < burst; i++ {
		require.NoError(t, rig.Publisher.Enqueue(testutil.TTLEvent(t, channels.TTL, uint64(i+1), 1, i%2 == 0)))
	}

	rig.WaitForEvents(t, burst, 5*time.Second)

	seen := make(map[uint64]bool, burst)
	for _, e := range rig.Events() {
		seen[e.Timestamp()] = true
	}
	require.Len(t, seen, burst, "each enqueued timestamp arrives exactly once")
	for i := 1; i <= burst; i++ {
		assert.True(t, seen[uint64(i)], fmt.Sprintf("timestamp %d missing", i))
	}
}

func TestFlow_StopFlushesPendingEvents(t *testing.T) {
	channels := testutil.NewChannels(t)
	rig := testutil.NewRig(t, channels.Registry, prefix)
	rig.Start(t)

	const pending = 5
	for i := 0; i < pending; i++ {
		require.NoError(t, rig.Publisher.Enqueue(testutil.TTLEvent(t, channels.TTL, uint64(100+i), 1, true)))
	}

	// Stop drains the publisher ring before the subscriber goes away, so
	// everything enqueued above still lands.
	rig.Stop(t)
	assert.Equal(t, pending, rig.EventCount())
}
