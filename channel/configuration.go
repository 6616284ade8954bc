package channel

import "sync/atomic"

// Configuration describes a configuration-only output channel: it carries
// provenance identity and a descriptor tag but no payload shape. Stages use
// it to announce settings objects that recorders may persist alongside data.
type Configuration struct {
	Info

	recording atomic.Bool
}

// NewConfiguration constructs a configuration-channel descriptor bound to
// its owning stage.
func NewConfiguration(stage Stage, subStream, index, typeIndex uint16, opts ...InfoOption) *Configuration {
	c := &Configuration{}
	c.Info.init(stage, subStream, index, typeIndex, opts...)
	return c
}

// Recording reports whether the configuration object is flagged for
// recording.
func (c *Configuration) Recording() bool {
	return c.recording.Load()
}

// SetRecording toggles the recording flag.
func (c *Configuration) SetRecording(v bool) {
	c.recording.Store(v)
}
