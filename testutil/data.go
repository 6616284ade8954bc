package testutil

import (
	"fmt"
	"testing"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/event"
	"github.com/neuroacq/sigstreams/metadata"
	"github.com/neuroacq/sigstreams/stage"
)

// Canned channel layout and packets shared by integration tests. Tests
// needing a different topology build their own registry; these fixtures
// cover the common one-stage rig.

// StageID is the acquisition stage every fixture channel belongs to.
const StageID uint16 = 100

// SubStream is the sub-stream every fixture channel belongs to.
const SubStream uint16 = 0

// SampleIndexField is the metadata field declared on the Sync channel.
var SampleIndexField = metadata.Field{
	Name:       "Sample index",
	Identifier: "acquisition.sample.index",
	Kind:       metadata.UInt64,
	Length:     1,
}

// Channels is a registry populated with one acquisition stage: four
// headstage channels at 30 kHz, an 8-line TTL bank, a single-line sync bank
// carrying a sample-index metadata field, a 128-character message channel, a
// tetrode spike channel cut from the headstage channels and a configuration
// channel.
type Channels struct {
	Registry    *channel.Registry
	Acquisition *stage.Stage
	Raw         []*channel.Continuous
	TTL         *channel.Event
	Sync        *channel.Event
	Messages    *channel.Event
	Spikes      *channel.Spike
	Settings    *channel.Configuration
}

// NewChannels builds the canned registry, failing the test on any
// registration error.
func NewChannels(tb testing.TB) *Channels {
	tb.Helper()

	registry := channel.NewRegistry()
	acq := stage.New(StageID, "acquisition")
	b := stage.NewBuilder(acq, SubStream, registry)

	raw := make([]*channel.Continuous, 4)
	for i := range raw {
		ch, err := b.Continuous(channel.SignalHeadstage,
			channel.WithName(fmt.Sprintf("CH%d", i+1)),
			channel.WithSampleRate(30000),
		)
		if err != nil {
			tb.Fatalf("declare continuous channel %d: %v", i, err)
		}
		raw[i] = ch
	}

	ttl, err := b.Event(channel.TTL, 8, channel.WithName("digital-in"))
	if err != nil {
		tb.Fatalf("declare TTL channel: %v", err)
	}

	syncIn, err := b.Event(channel.TTL, 1, channel.WithName("sync-in"))
	if err != nil {
		tb.Fatalf("declare sync channel: %v", err)
	}
	if err := syncIn.DeclareMetadata(SampleIndexField); err != nil {
		tb.Fatalf("declare sync metadata: %v", err)
	}

	messages, err := b.Event(channel.Text, 1, channel.WithName("messages"))
	if err != nil {
		tb.Fatalf("declare message channel: %v", err)
	}
	messages.SetLength(128)

	spikes, err := b.Spike(channel.Tetrode, raw, channel.WithName("tetrode-1"))
	if err != nil {
		tb.Fatalf("declare spike channel: %v", err)
	}

	settings, err := b.Configuration(channel.WithName("acquisition-settings"))
	if err != nil {
		tb.Fatalf("declare configuration channel: %v", err)
	}

	return &Channels{
		Registry:    registry,
		Acquisition: acq,
		Raw:         raw,
		TTL:         ttl,
		Sync:        syncIn,
		Messages:    messages,
		Spikes:      spikes,
		Settings:    settings,
	}
}

// TTLEvent builds a TTL toggle on the given channel. The word is sized from
// the channel and carries only the selected line's level.
func TTLEvent(tb testing.TB, info *channel.Event, timestamp uint64, line uint16, state bool) *event.TTL {
	tb.Helper()

	word := make([]byte, info.DataSize())
	if state {
		bit := uint(line - 1)
		word[bit/8] |= 1 << (bit % 8)
	}
	e, err := event.NewTTL(info, timestamp, line, word)
	if err != nil {
		tb.Fatalf("build TTL event: %v", err)
	}
	return e
}

// SyncEvent builds a TTL toggle on the sync channel with its sample-index
// metadata value attached.
func SyncEvent(tb testing.TB, info *channel.Event, timestamp uint64, sampleIndex uint64) *event.TTL {
	tb.Helper()

	value, err := metadata.ValueOf(SampleIndexField, []uint64{sampleIndex})
	if err != nil {
		tb.Fatalf("build sample-index value: %v", err)
	}
	e, err := event.NewTTL(info, timestamp, 1, []byte{0x01}, event.WithMetadata(value))
	if err != nil {
		tb.Fatalf("build sync event: %v", err)
	}
	return e
}

// TextEvent builds an annotation on the given text channel.
func TextEvent(tb testing.TB, info *channel.Event, timestamp uint64, text string) *event.Text {
	tb.Helper()

	e, err := event.NewText(info, timestamp, 1, text)
	if err != nil {
		tb.Fatalf("build text event: %v", err)
	}
	return e
}

// SpikeEvent builds a spike on the given channel with a ramp waveform sized
// from the channel's source count and window.
func SpikeEvent(tb testing.TB, info *channel.Spike, timestamp uint64, threshold float32) *event.Spike {
	tb.Helper()

	waveform := make([][]float32, info.ChannelCount())
	for i := range waveform {
		row := make([]float32, info.TotalSamples())
		for j := range row {
			row[j] = float32(i*1000+j) * 0.195
		}
		waveform[i] = row
	}
	e, err := event.NewSpike(info, timestamp, threshold, waveform)
	if err != nil {
		tb.Fatalf("build spike event: %v", err)
	}
	return e
}

// Packet serializes any event into a fresh buffer.
func Packet(tb testing.TB, e event.Event) []byte {
	tb.Helper()

	buf := make([]byte, e.PacketSize())
	if _, err := e.Serialize(buf); err != nil {
		tb.Fatalf("serialize %s packet: %v", e.Type(), err)
	}
	return buf
}

// MalformedPackets are byte strings that must be rejected by the decoder,
// keyed by what is wrong with them.
var MalformedPackets = map[string][]byte{
	"empty":             {},
	"single_byte":       {0x01},
	"unknown_base_kind": {0x07, 0x00, 0x64, 0x00, 0x00, 0x00},
	"short_system":      {0x00, 0x01, 0x64, 0x00},
	"short_stage":       {0x01, 0x01, 0x64, 0x00, 0x00, 0x00, 0x00, 0x00},
}
