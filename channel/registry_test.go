package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/errors"
)

func TestRegistryAddAndLookup(t *testing.T) {
	reg := NewRegistry()
	stage := &testStage{id: 4, name: "acquisition"}

	cont := NewContinuous(SignalHeadstage, stage, 0, 0, 0, WithName("CH1"))
	require.NoError(t, reg.AddContinuous(cont))

	evt, err := NewEvent(TTL, 8, stage, 0, 1, 0)
	require.NoError(t, err)
	require.NoError(t, reg.AddEvent(evt))

	spk, err := NewSpike(SingleElectrode, []*Continuous{cont}, stage, 0, 2, 0)
	require.NoError(t, err)
	require.NoError(t, reg.AddSpike(spk))

	cfg := NewConfiguration(stage, 0, 3, 0)
	require.NoError(t, reg.AddConfiguration(cfg))

	got, err := reg.ContinuousChannel(cont.Provenance().Key())
	require.NoError(t, err)
	assert.Same(t, cont, got)

	gotEvt, err := reg.EventChannel(evt.Provenance().Key())
	require.NoError(t, err)
	assert.Same(t, evt, gotEvt)

	gotSpk, err := reg.SpikeChannel(spk.Provenance().Key())
	require.NoError(t, err)
	assert.Same(t, spk, gotSpk)

	gotCfg, err := reg.ConfigurationChannel(cfg.Provenance().Key())
	require.NoError(t, err)
	assert.Same(t, cfg, gotCfg)
}

func TestRegistryRejectsNil(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.AddContinuous(nil))
	assert.Error(t, reg.AddEvent(nil))
	assert.Error(t, reg.AddSpike(nil))
	assert.Error(t, reg.AddConfiguration(nil))
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryRejectsDuplicateKey(t *testing.T) {
	reg := NewRegistry()
	stage := &testStage{id: 4, name: "acquisition"}

	first := NewContinuous(SignalHeadstage, stage, 0, 0, 0)
	require.NoError(t, reg.AddContinuous(first))

	// Same stage, sub-stream and type index resolve to the same key even
	// though the output index differs.
	second := NewContinuous(SignalHeadstage, stage, 0, 7, 0)
	err := reg.AddContinuous(second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySameKeyAcrossShapes(t *testing.T) {
	reg := NewRegistry()
	stage := &testStage{id: 4, name: "acquisition"}

	cont := NewContinuous(SignalHeadstage, stage, 0, 0, 0)
	require.NoError(t, reg.AddContinuous(cont))

	// An event channel with identical provenance lives in its own namespace.
	evt, err := NewEvent(TTL, 8, stage, 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, reg.AddEvent(evt))

	assert.Equal(t, 2, reg.Len())
}

func TestRegistryNotFound(t *testing.T) {
	reg := NewRegistry()
	key := Key{StageID: 9, SubStream: 0, TypeIndex: 0}

	_, err := reg.ContinuousChannel(key)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrChannelNotFound)
	assert.True(t, errors.IsInvalid(err))

	_, err = reg.EventChannel(key)
	assert.ErrorIs(t, err, errors.ErrChannelNotFound)

	_, err = reg.SpikeChannel(key)
	assert.ErrorIs(t, err, errors.ErrChannelNotFound)

	_, err = reg.ConfigurationChannel(key)
	assert.ErrorIs(t, err, errors.ErrChannelNotFound)
}

func TestRegistryCounts(t *testing.T) {
	reg := NewRegistry()
	stage := &testStage{id: 4, name: "acquisition"}

	require.NoError(t, reg.AddContinuous(NewContinuous(SignalHeadstage, stage, 0, 0, 0)))
	require.NoError(t, reg.AddContinuous(NewContinuous(SignalHeadstage, stage, 0, 1, 1)))

	evt, err := NewEvent(Text, 1, stage, 0, 2, 0)
	require.NoError(t, err)
	require.NoError(t, reg.AddEvent(evt))

	continuous, events, spikes, configs := reg.Counts()
	assert.Equal(t, 2, continuous)
	assert.Equal(t, 1, events)
	assert.Equal(t, 0, spikes)
	assert.Equal(t, 0, configs)
	assert.Equal(t, 3, reg.Len())
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	reg := NewRegistry()
	early := &testStage{id: 1, name: "source"}
	late := &testStage{id: 6, name: "sorter"}

	require.NoError(t, reg.AddContinuous(NewContinuous(SignalHeadstage, late, 0, 0, 0, WithName("late"))))
	require.NoError(t, reg.AddContinuous(NewContinuous(SignalHeadstage, early, 1, 0, 0, WithName("early-sub1"))))
	require.NoError(t, reg.AddContinuous(NewContinuous(SignalHeadstage, early, 0, 0, 0, WithName("early-sub0"))))

	descs := reg.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, "early-sub0", descs[0].Name())
	assert.Equal(t, "early-sub1", descs[1].Name())
	assert.Equal(t, "late", descs[2].Name())
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry()
	stage := &testStage{id: 4, name: "acquisition"}

	cont := NewContinuous(SignalHeadstage, stage, 0, 0, 0)
	require.NoError(t, reg.AddContinuous(cont))
	require.Equal(t, 1, reg.Len())

	reg.Clear()

	assert.Equal(t, 0, reg.Len())
	_, err := reg.ContinuousChannel(cont.Provenance().Key())
	assert.ErrorIs(t, err, errors.ErrChannelNotFound)

	// Re-announcing after a clear succeeds.
	assert.NoError(t, reg.AddContinuous(cont))
}
