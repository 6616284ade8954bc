package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/channel"
)

// The registry must satisfy the codec's resolver contract.
var _ Resolver = (*channel.Registry)(nil)

type testStage struct {
	id   uint16
	name string
}

func (s *testStage) ID() uint16   { return s.id }
func (s *testStage) Name() string { return s.name }

// eventChannel builds an event descriptor on a fixed test stage.
func eventChannel(t *testing.T, kind channel.PayloadKind, channels int) *channel.Event {
	t.Helper()
	stage := &testStage{id: 4, name: "acquisition"}
	ch, err := channel.NewEvent(kind, channels, stage, 0, 0, 0)
	require.NoError(t, err)
	return ch
}

// spikeChannel builds a spike descriptor with matching continuous sources.
func spikeChannel(t *testing.T, electrode channel.ElectrodeKind) *channel.Spike {
	t.Helper()
	stage := &testStage{id: 5, name: "spike sorter"}
	sources := make([]*channel.Continuous, electrode.ChannelCount())
	for i := range sources {
		sources[i] = channel.NewContinuous(channel.SignalHeadstage, stage, 0, uint16(i), uint16(i))
	}
	ch, err := channel.NewSpike(electrode, sources, stage, 0, 0, 0)
	require.NoError(t, err)
	return ch
}

// registryFor registers the given descriptors for resolution.
func registryFor(t *testing.T, events []*channel.Event, spikes []*channel.Spike) *channel.Registry {
	t.Helper()
	reg := channel.NewRegistry()
	for _, ch := range events {
		require.NoError(t, reg.AddEvent(ch))
	}
	for _, ch := range spikes {
		require.NoError(t, reg.AddSpike(ch))
	}
	return reg
}

// encode serializes an event into an exactly sized buffer.
func encode(t *testing.T, e Event) []byte {
	t.Helper()
	buf := make([]byte, e.PacketSize())
	n, err := e.Serialize(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return buf
}

func TestPacketType(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		want   Type
		wantOK bool
	}{
		{"empty", nil, 0, false},
		{"system", []byte{0}, TypeSystem, true},
		{"stage", []byte{1, 99}, TypeStage, true},
		{"spike", []byte{2}, TypeSpike, true},
		{"unknown", []byte{7}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PacketType(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTypeStrings(t *testing.T) {
	assert.Equal(t, "system", TypeSystem.String())
	assert.Equal(t, "stage", TypeStage.String())
	assert.Equal(t, "spike", TypeSpike.String())
	assert.Equal(t, "unknown", Type(9).String())

	assert.Equal(t, "timestamp", SystemTimestamp.String())
	assert.Equal(t, "buffer_size", SystemBufferSize.String())
	assert.Equal(t, "parameter_change", SystemParameterChange.String())
}
