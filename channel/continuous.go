package channel

import (
	"sync"
	"sync/atomic"
)

// Continuous describes one continuous-signal output channel of a stage.
//
// The enabled/monitored/recording flags are toggled by a control goroutine
// (typically a UI) while processing goroutines read them, so they are
// atomic. The bit-volts scale is guarded separately.
type Continuous struct {
	Info

	kind SignalKind

	scaleMu  sync.RWMutex
	bitVolts float64

	enabled   atomic.Bool
	monitored atomic.Bool
	recording atomic.Bool
}

// NewContinuous constructs a continuous-signal descriptor bound to its
// owning stage. The channel starts enabled with a unit bit-volts scale.
func NewContinuous(kind SignalKind, stage Stage, subStream, index, typeIndex uint16, opts ...InfoOption) *Continuous {
	c := &Continuous{
		kind:     kind,
		bitVolts: 1.0,
	}
	c.Info.init(stage, subStream, index, typeIndex, opts...)
	c.enabled.Store(true)
	return c
}

// Kind returns the signal kind.
func (c *Continuous) Kind() SignalKind {
	return c.kind
}

// BitVolts returns the amplitude scale factor converting raw sample units to
// microvolts.
func (c *Continuous) BitVolts() float64 {
	c.scaleMu.RLock()
	defer c.scaleMu.RUnlock()
	return c.bitVolts
}

// SetBitVolts updates the amplitude scale factor.
func (c *Continuous) SetBitVolts(v float64) {
	c.scaleMu.Lock()
	defer c.scaleMu.Unlock()
	c.bitVolts = v
}

// Enabled reports whether the channel currently produces data.
func (c *Continuous) Enabled() bool {
	return c.enabled.Load()
}

// SetEnabled toggles data production.
func (c *Continuous) SetEnabled(v bool) {
	c.enabled.Store(v)
}

// Monitored reports whether the channel is routed to audio monitoring.
func (c *Continuous) Monitored() bool {
	return c.monitored.Load()
}

// SetMonitored toggles audio monitoring.
func (c *Continuous) SetMonitored(v bool) {
	c.monitored.Store(v)
}

// Recording reports whether the channel is flagged for recording.
func (c *Continuous) Recording() bool {
	return c.recording.Load()
}

// SetRecording toggles the recording flag.
func (c *Continuous) SetRecording(v bool) {
	c.recording.Store(v)
}

// Reset restores the mutable state to its defaults: unit scale, enabled, not
// monitored, not recording, default sample rate. Identity and provenance are
// untouched.
func (c *Continuous) Reset() {
	c.SetBitVolts(1.0)
	c.enabled.Store(true)
	c.monitored.Store(false)
	c.recording.Store(false)
	c.SetSampleRate(DefaultSampleRate)
}
