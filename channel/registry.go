package channel

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/neuroacq/sigstreams/errors"
)

// Descriptor is the read surface shared by all channel shapes. Every
// descriptor type in this package satisfies it through its embedded Info.
type Descriptor interface {
	Provenance() Provenance
	StageName() string
	Name() string
	Chain() *Chain
}

// Registry holds the channel descriptors a pipeline has announced, keyed
// by provenance. Consumers resolve incoming packet headers against it to
// recover the descriptor a packet was produced under.
//
// Each shape lives in its own map so lookups stay typed: a caller asking
// for an event channel never has to type-assert its way out of a generic
// bucket.
type Registry struct {
	continuous map[Key]*Continuous
	events     map[Key]*Event
	spikes     map[Key]*Spike
	configs    map[Key]*Configuration
	mu         sync.RWMutex // Protects all maps
}

// NewRegistry creates a new empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		continuous: make(map[Key]*Continuous),
		events:     make(map[Key]*Event),
		spikes:     make(map[Key]*Spike),
		configs:    make(map[Key]*Configuration),
	}
}

// AddContinuous registers a continuous channel descriptor.
// Returns an error if a continuous channel with the same key already exists.
func (r *Registry) AddContinuous(ch *Continuous) error {
	if ch == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Registry", "AddContinuous", "descriptor validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ch.Provenance().Key()
	if _, exists := r.continuous[key]; exists {
		msg := fmt.Errorf("continuous channel %s is already registered", key)
		return errors.WrapInvalid(msg, "Registry", "AddContinuous", "duplicate key check")
	}

	r.continuous[key] = ch
	return nil
}

// AddEvent registers an event channel descriptor.
// Returns an error if an event channel with the same key already exists.
func (r *Registry) AddEvent(ch *Event) error {
	if ch == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Registry", "AddEvent", "descriptor validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ch.Provenance().Key()
	if _, exists := r.events[key]; exists {
		msg := fmt.Errorf("event channel %s is already registered", key)
		return errors.WrapInvalid(msg, "Registry", "AddEvent", "duplicate key check")
	}

	r.events[key] = ch
	return nil
}

// AddSpike registers a spike channel descriptor.
// Returns an error if a spike channel with the same key already exists.
func (r *Registry) AddSpike(ch *Spike) error {
	if ch == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Registry", "AddSpike", "descriptor validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ch.Provenance().Key()
	if _, exists := r.spikes[key]; exists {
		msg := fmt.Errorf("spike channel %s is already registered", key)
		return errors.WrapInvalid(msg, "Registry", "AddSpike", "duplicate key check")
	}

	r.spikes[key] = ch
	return nil
}

// AddConfiguration registers a configuration channel descriptor.
// Returns an error if a configuration channel with the same key already exists.
func (r *Registry) AddConfiguration(ch *Configuration) error {
	if ch == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Registry", "AddConfiguration", "descriptor validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := ch.Provenance().Key()
	if _, exists := r.configs[key]; exists {
		msg := fmt.Errorf("configuration channel %s is already registered", key)
		return errors.WrapInvalid(msg, "Registry", "AddConfiguration", "duplicate key check")
	}

	r.configs[key] = ch
	return nil
}

// ContinuousChannel retrieves a continuous channel descriptor by key.
func (r *Registry) ContinuousChannel(key Key) (*Continuous, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.continuous[key]
	if !exists {
		return nil, errors.Wrap(errors.ErrChannelNotFound, "Registry", "ContinuousChannel",
			fmt.Sprintf("continuous lookup for key %s", key))
	}
	return ch, nil
}

// EventChannel retrieves an event channel descriptor by key.
func (r *Registry) EventChannel(key Key) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.events[key]
	if !exists {
		return nil, errors.Wrap(errors.ErrChannelNotFound, "Registry", "EventChannel",
			fmt.Sprintf("event lookup for key %s", key))
	}
	return ch, nil
}

// SpikeChannel retrieves a spike channel descriptor by key.
func (r *Registry) SpikeChannel(key Key) (*Spike, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.spikes[key]
	if !exists {
		return nil, errors.Wrap(errors.ErrChannelNotFound, "Registry", "SpikeChannel",
			fmt.Sprintf("spike lookup for key %s", key))
	}
	return ch, nil
}

// ConfigurationChannel retrieves a configuration channel descriptor by key.
func (r *Registry) ConfigurationChannel(key Key) (*Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.configs[key]
	if !exists {
		return nil, errors.Wrap(errors.ErrChannelNotFound, "Registry", "ConfigurationChannel",
			fmt.Sprintf("configuration lookup for key %s", key))
	}
	return ch, nil
}

// Descriptors returns a snapshot of every registered descriptor across all
// four shapes, ordered by key. The ordering is deterministic so callers can
// log or display the registry contents stably.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type keyed struct {
		key  Key
		desc Descriptor
	}

	all := make([]keyed, 0, len(r.continuous)+len(r.events)+len(r.spikes)+len(r.configs))
	for key, ch := range r.continuous {
		all = append(all, keyed{key, ch})
	}
	for key, ch := range r.events {
		all = append(all, keyed{key, ch})
	}
	for key, ch := range r.spikes {
		all = append(all, keyed{key, ch})
	}
	for key, ch := range r.configs {
		all = append(all, keyed{key, ch})
	}

	// Stable sort so descriptors sharing a key across shapes keep the
	// continuous, event, spike, configuration append order.
	slices.SortStableFunc(all, func(a, b keyed) int {
		if c := cmp.Compare(a.key.StageID, b.key.StageID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.key.SubStream, b.key.SubStream); c != 0 {
			return c
		}
		return cmp.Compare(a.key.TypeIndex, b.key.TypeIndex)
	})

	result := make([]Descriptor, len(all))
	for i, entry := range all {
		result[i] = entry.desc
	}
	return result
}

// Counts reports how many descriptors of each shape are registered.
// Used to keep registry gauges current.
func (r *Registry) Counts() (continuous, events, spikes, configs int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.continuous), len(r.events), len(r.spikes), len(r.configs)
}

// Len returns the total number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.continuous) + len(r.events) + len(r.spikes) + len(r.configs)
}

// Clear removes all registered descriptors. Called when a pipeline is
// reconfigured and stages are about to re-announce their channels.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.continuous = make(map[Key]*Continuous)
	r.events = make(map[Key]*Event)
	r.spikes = make(map[Key]*Spike)
	r.configs = make(map[Key]*Configuration)
}
