package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// continuousSources builds n continuous channels on the given stage for use
// as spike sources.
func continuousSources(stage Stage, n int) []*Continuous {
	out := make([]*Continuous, n)
	for i := range out {
		out[i] = NewContinuous(SignalHeadstage, stage, 0, uint16(i), uint16(i))
	}
	return out
}

func TestNewSpikeDefaults(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}
	ch, err := NewSpike(Tetrode, continuousSources(stage, 4), stage, 0, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, Tetrode, ch.Electrode())
	assert.Equal(t, 4, ch.ChannelCount())
	assert.Equal(t, DefaultPrePeakSamples, ch.PrePeakSamples())
	assert.Equal(t, DefaultPostPeakSamples, ch.PostPeakSamples())
	assert.Equal(t, DefaultPrePeakSamples+DefaultPostPeakSamples, ch.TotalSamples())
	assert.InDelta(t, 1.0, ch.Gain(), 0.0001)
}

func TestNewSpikeSourceCountMismatch(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}

	tests := []struct {
		name      string
		electrode ElectrodeKind
		sources   int
	}{
		{"tetrode with two sources", Tetrode, 2},
		{"stereotrode with one source", Stereotrode, 1},
		{"single with two sources", SingleElectrode, 2},
		{"tetrode with none", Tetrode, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpike(tt.electrode, continuousSources(stage, tt.sources), stage, 0, 0, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvariantViolation)
			assert.True(t, errors.IsFatal(err))
		})
	}
}

func TestNewSpikeRejectsUnknownElectrode(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}
	_, err := NewSpike(ElectrodeKind(9), nil, stage, 0, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
}

func TestNewSpikeRejectsNilSource(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}
	sources := continuousSources(stage, 2)
	sources[1] = nil

	_, err := NewSpike(Stereotrode, sources, stage, 0, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
}

func TestSpikeSourceRefs(t *testing.T) {
	source := &testStage{id: 2, name: "bandpass"}
	sorter := &testStage{id: 5, name: "spike sorter"}

	sources := []*Continuous{
		NewContinuous(SignalHeadstage, source, 1, 10, 10),
		NewContinuous(SignalHeadstage, source, 1, 11, 11),
	}
	ch, err := NewSpike(Stereotrode, sources, sorter, 0, 0, 0)
	require.NoError(t, err)

	refs := ch.Sources()
	require.Len(t, refs, 2)
	assert.Equal(t, SourceRef{StageID: 2, SubStream: 1, Index: 10}, refs[0])
	assert.Equal(t, SourceRef{StageID: 2, SubStream: 1, Index: 11}, refs[1])

	// Returned slice is a copy.
	refs[0].Index = 99
	assert.Equal(t, uint16(10), ch.Sources()[0].Index)
}

func TestSpikeWaveformWindow(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}
	ch, err := NewSpike(SingleElectrode, continuousSources(stage, 1), stage, 0, 0, 0)
	require.NoError(t, err)

	require.NoError(t, ch.SetWaveformWindow(10, 22))
	assert.Equal(t, 10, ch.PrePeakSamples())
	assert.Equal(t, 22, ch.PostPeakSamples())
	assert.Equal(t, 32, ch.TotalSamples())

	err = ch.SetWaveformWindow(-1, 22)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
}

func TestSpikeGain(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}
	ch, err := NewSpike(SingleElectrode, continuousSources(stage, 1), stage, 0, 0, 0)
	require.NoError(t, err)

	ch.SetGain(4.5)
	assert.InDelta(t, 4.5, ch.Gain(), 0.0001)
}

func TestSpikeDeclareMetadata(t *testing.T) {
	stage := &testStage{id: 5, name: "spike sorter"}
	ch, err := NewSpike(Tetrode, continuousSources(stage, 4), stage, 0, 0, 0)
	require.NoError(t, err)

	require.NoError(t, ch.DeclareMetadata(
		metadata.Field{Name: "impedance", Identifier: "electrode.impedance", Kind: metadata.Float32, Length: 4},
	))

	assert.Equal(t, 16, ch.MetadataSize())
	require.Len(t, ch.MetadataSchema(), 1)
}

func TestElectrodeKindChannelCounts(t *testing.T) {
	assert.Equal(t, 1, SingleElectrode.ChannelCount())
	assert.Equal(t, 2, Stereotrode.ChannelCount())
	assert.Equal(t, 4, Tetrode.ChannelCount())
	assert.Equal(t, 0, ElectrodeKind(0).ChannelCount())

	assert.True(t, Tetrode.Valid())
	assert.False(t, ElectrodeKind(4).Valid())
}
