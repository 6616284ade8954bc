package channel

import "sync"

// DefaultSampleRate is the sample rate a descriptor starts with and returns
// to on reset, in Hz.
const DefaultSampleRate = 44100.0

// Info is the descriptor core embedded by value in all four channel shapes.
// It holds the immutable provenance identity, the owning stage's name as a
// snapshot frozen at construction, and the read-mostly descriptive fields.
//
// The stage-name snapshot is deliberate: renaming a stage later does not
// retroactively change descriptors it already produced.
type Info struct {
	prov      Provenance
	stageName string

	mu          sync.RWMutex
	name        string
	tag         string
	description string
	sampleRate  float64

	chain Chain
}

// InfoOption configures the descriptor core at construction time.
type InfoOption func(*Info)

// WithName sets the display name.
func WithName(name string) InfoOption {
	return func(i *Info) { i.name = name }
}

// WithTag sets the free-text descriptor tag.
func WithTag(tag string) InfoOption {
	return func(i *Info) { i.tag = tag }
}

// WithDescription sets the free-text description.
func WithDescription(description string) InfoOption {
	return func(i *Info) { i.description = description }
}

// WithSampleRate overrides the default sample rate.
func WithSampleRate(rate float64) InfoOption {
	return func(i *Info) { i.sampleRate = rate }
}

// init binds the core to its owning stage. The stage's id and declared name
// are copied once; the descriptor never reads from the stage again.
func (i *Info) init(stage Stage, subStream, index, typeIndex uint16, opts ...InfoOption) {
	i.prov = Provenance{
		StageID:   stage.ID(),
		SubStream: subStream,
		Index:     index,
		TypeIndex: typeIndex,
	}
	i.stageName = stage.Name()
	i.sampleRate = DefaultSampleRate
	for _, opt := range opts {
		opt(i)
	}
}

// Provenance returns the immutable provenance identity.
func (i *Info) Provenance() Provenance {
	return i.prov
}

// StageName returns the owning stage's name as captured at construction.
func (i *Info) StageName() string {
	return i.stageName
}

// Name returns the display name.
func (i *Info) Name() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.name
}

// SetName updates the display name.
func (i *Info) SetName(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.name = name
}

// Tag returns the free-text descriptor tag.
func (i *Info) Tag() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tag
}

// SetTag updates the descriptor tag.
func (i *Info) SetTag(tag string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tag = tag
}

// Description returns the free-text description.
func (i *Info) Description() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.description
}

// SetDescription updates the description.
func (i *Info) SetDescription(description string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.description = description
}

// SampleRate returns the channel's sample rate in Hz.
func (i *Info) SampleRate() float64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.sampleRate
}

// SetSampleRate updates the sample rate.
func (i *Info) SetSampleRate(rate float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sampleRate = rate
}

// Chain returns the channel's provenance trail.
func (i *Info) Chain() *Chain {
	return &i.chain
}
