package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuousDefaults(t *testing.T) {
	stage := &testStage{id: 1, name: "acquisition"}
	ch := NewContinuous(SignalHeadstage, stage, 0, 0, 0)

	assert.Equal(t, SignalHeadstage, ch.Kind())
	assert.InDelta(t, 1.0, ch.BitVolts(), 0.0001)
	assert.True(t, ch.Enabled())
	assert.False(t, ch.Monitored())
	assert.False(t, ch.Recording())
}

func TestContinuousFlagsIndependent(t *testing.T) {
	stage := &testStage{id: 1, name: "acquisition"}
	ch := NewContinuous(SignalAux, stage, 0, 0, 0)

	ch.SetMonitored(true)
	assert.True(t, ch.Monitored())
	assert.True(t, ch.Enabled())
	assert.False(t, ch.Recording())

	ch.SetRecording(true)
	ch.SetEnabled(false)
	assert.True(t, ch.Monitored())
	assert.True(t, ch.Recording())
	assert.False(t, ch.Enabled())
}

func TestContinuousSetBitVolts(t *testing.T) {
	stage := &testStage{id: 1, name: "acquisition"}
	ch := NewContinuous(SignalHeadstage, stage, 0, 0, 0)

	ch.SetBitVolts(0.195)
	assert.InDelta(t, 0.195, ch.BitVolts(), 0.0001)
}

func TestContinuousReset(t *testing.T) {
	stage := &testStage{id: 1, name: "acquisition"}
	ch := NewContinuous(SignalHeadstage, stage, 0, 5, 5, WithName("CH6"))

	ch.SetBitVolts(0.05)
	ch.SetEnabled(false)
	ch.SetMonitored(true)
	ch.SetRecording(true)
	ch.SetSampleRate(2500)

	ch.Reset()

	assert.InDelta(t, 1.0, ch.BitVolts(), 0.0001)
	assert.True(t, ch.Enabled())
	assert.False(t, ch.Monitored())
	assert.False(t, ch.Recording())
	assert.InDelta(t, DefaultSampleRate, ch.SampleRate(), 0.001)

	// Identity survives a reset.
	assert.Equal(t, "CH6", ch.Name())
	assert.Equal(t, uint16(5), ch.Provenance().Index)
}

func TestSignalKindStrings(t *testing.T) {
	assert.Equal(t, "headstage", SignalHeadstage.String())
	assert.Equal(t, "aux", SignalAux.String())
	assert.Equal(t, "adc", SignalADC.String())
}
