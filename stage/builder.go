package stage

import (
	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
)

// Builder declares one stage's output channels on one sub-stream during
// pipeline (re)establishment. It assigns the running output index across all
// shapes and the running type index within each shape, constructs the
// descriptor and registers it.
//
// Pipeline setup runs on a single goroutine; the builder is not safe for
// concurrent use.
type Builder struct {
	stage     channel.Stage
	subStream uint16
	registry  *channel.Registry

	nextIndex  uint16
	nextCont   uint16
	nextEvent  uint16
	nextSpike  uint16
	nextConfig uint16
}

// NewBuilder creates a builder registering channels for the given stage and
// sub-stream into the registry.
func NewBuilder(stage channel.Stage, subStream uint16, registry *channel.Registry) *Builder {
	return &Builder{
		stage:     stage,
		subStream: subStream,
		registry:  registry,
	}
}

// Continuous declares a continuous-signal channel.
func (b *Builder) Continuous(kind channel.SignalKind, opts ...channel.InfoOption) (*channel.Continuous, error) {
	ch := channel.NewContinuous(kind, b.stage, b.subStream, b.nextIndex, b.nextCont, opts...)
	if err := b.registry.AddContinuous(ch); err != nil {
		return nil, errors.Wrap(err, "Builder", "Continuous", "register channel")
	}
	b.nextIndex++
	b.nextCont++
	return ch, nil
}

// Event declares an event channel of the given payload kind and virtual
// channel count.
func (b *Builder) Event(kind channel.PayloadKind, channels int, opts ...channel.InfoOption) (*channel.Event, error) {
	ch, err := channel.NewEvent(kind, channels, b.stage, b.subStream, b.nextIndex, b.nextEvent, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Builder", "Event", "construct channel")
	}
	if err := b.registry.AddEvent(ch); err != nil {
		return nil, errors.Wrap(err, "Builder", "Event", "register channel")
	}
	b.nextIndex++
	b.nextEvent++
	return ch, nil
}

// Spike declares a spike channel cut from the given continuous sources. The
// source count must match the electrode kind.
func (b *Builder) Spike(electrode channel.ElectrodeKind, sources []*channel.Continuous, opts ...channel.InfoOption) (*channel.Spike, error) {
	ch, err := channel.NewSpike(electrode, sources, b.stage, b.subStream, b.nextIndex, b.nextSpike, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Builder", "Spike", "construct channel")
	}
	if err := b.registry.AddSpike(ch); err != nil {
		return nil, errors.Wrap(err, "Builder", "Spike", "register channel")
	}
	b.nextIndex++
	b.nextSpike++
	return ch, nil
}

// Configuration declares a configuration channel.
func (b *Builder) Configuration(opts ...channel.InfoOption) (*channel.Configuration, error) {
	ch := channel.NewConfiguration(b.stage, b.subStream, b.nextIndex, b.nextConfig, opts...)
	if err := b.registry.AddConfiguration(ch); err != nil {
		return nil, errors.Wrap(err, "Builder", "Configuration", "register channel")
	}
	b.nextIndex++
	b.nextConfig++
	return ch, nil
}

// Counts reports how many channels of each shape the builder has declared.
func (b *Builder) Counts() (continuous, events, spikes, configs int) {
	return int(b.nextCont), int(b.nextEvent), int(b.nextSpike), int(b.nextConfig)
}
