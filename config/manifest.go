package config

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/metadata"
	"github.com/neuroacq/sigstreams/stage"
)

// ManifestVersion is the newest manifest schema this build understands.
// Manifests declaring a higher version are rejected at load time.
const ManifestVersion = "1.0.0"

// Manifest describes the channel layout of a running pipeline: every stage,
// the sub-streams it multiplexes and the channels each sub-stream declares.
// A tap process replays the manifest through the stage builder to obtain the
// same registry the producing pipeline holds, which is what lets it decode
// packets observed on the wire.
type Manifest struct {
	Version     string          `yaml:"version,omitempty"`
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Stages      []StageManifest `yaml:"stages"`
}

// StageManifest declares one pipeline stage. Params carries free-form
// stage settings (filter cutoffs, detector thresholds) that the tap surfaces
// but does not interpret; use the Get* helpers for safe access.
type StageManifest struct {
	ID      uint16           `yaml:"id"`
	Name    string           `yaml:"name"`
	Params  map[string]any   `yaml:"params,omitempty"`
	Streams []StreamManifest `yaml:"streams"`
}

// StreamManifest declares one sub-stream of a stage and the channels it
// carries. SampleRate is the default for every channel in the stream;
// individual entries may override it.
type StreamManifest struct {
	SubStream      uint16                  `yaml:"sub_stream"`
	SampleRate     float64                 `yaml:"sample_rate,omitempty"`
	Continuous     []ContinuousManifest    `yaml:"continuous,omitempty"`
	Events         []EventManifest         `yaml:"events,omitempty"`
	Spikes         []SpikeManifest         `yaml:"spikes,omitempty"`
	Configurations []ConfigurationManifest `yaml:"configurations,omitempty"`
}

// ContinuousManifest declares a run of continuous-signal channels. Count
// expands the entry into that many channels, numbered Name1..NameN; a count
// of zero or one declares a single channel named Name as-is.
type ContinuousManifest struct {
	Kind        string  `yaml:"kind"`
	Count       int     `yaml:"count,omitempty"`
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	SampleRate  float64 `yaml:"sample_rate,omitempty"`
	BitVolts    float64 `yaml:"bit_volts,omitempty"`
}

// EventManifest declares one event channel. Channels is the virtual channel
// count (TTL line count), defaulting to one; Length declares the element
// capacity for array and text kinds and is ignored for TTL.
type EventManifest struct {
	Kind        string          `yaml:"kind"`
	Channels    int             `yaml:"channels"`
	Length      int             `yaml:"length,omitempty"`
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	SampleRate  float64         `yaml:"sample_rate,omitempty"`
	Metadata    []FieldManifest `yaml:"metadata,omitempty"`
}

// SpikeManifest declares one spike channel. Sources index into the stream's
// expanded continuous list, in electrode order.
type SpikeManifest struct {
	Electrode   string          `yaml:"electrode"`
	Sources     []int           `yaml:"sources"`
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	SampleRate  float64         `yaml:"sample_rate,omitempty"`
	PrePeak     int             `yaml:"pre_peak,omitempty"`
	PostPeak    int             `yaml:"post_peak,omitempty"`
	Gain        float64         `yaml:"gain,omitempty"`
	Metadata    []FieldManifest `yaml:"metadata,omitempty"`
}

// ConfigurationManifest declares one configuration channel
type ConfigurationManifest struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// FieldManifest declares one metadata field of an event or spike channel
type FieldManifest struct {
	Name        string `yaml:"name"`
	Identifier  string `yaml:"identifier,omitempty"`
	Description string `yaml:"description,omitempty"`
	Kind        string `yaml:"kind"`
	Length      int    `yaml:"length,omitempty"`
}

// LoadManifest reads and validates a channel manifest from a YAML file.
// JSON files also parse, YAML being a superset.
func LoadManifest(path string) (*Manifest, error) {
	data, err := safeReadFile(path, ".yaml", ".yml", ".json")
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a manifest from raw YAML bytes.
// Unknown fields are rejected so typos surface at load time instead of
// silently dropping channels.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("cannot parse manifest: %w", err)
	}

	if m.Version != "" {
		cmp, err := CompareVersions(m.Version, ManifestVersion)
		if err != nil {
			return nil, fmt.Errorf("manifest version: %w", err)
		}
		if cmp > 0 {
			return nil, fmt.Errorf("manifest version %s is newer than supported %s", m.Version, ManifestVersion)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest's structure: stage identity, kind names and
// spike source references. Channel-level invariants (electrode source
// counts, metadata field shapes) are enforced again by the constructors
// during Build.
func (m *Manifest) Validate() error {
	if len(m.Stages) == 0 {
		return fmt.Errorf("manifest declares no stages")
	}

	seenStages := make(map[uint16]string, len(m.Stages))
	for _, sm := range m.Stages {
		if sm.Name == "" {
			return fmt.Errorf("stage %d has no name", sm.ID)
		}
		if prev, dup := seenStages[sm.ID]; dup {
			return fmt.Errorf("stage id %d declared twice (%s and %s)", sm.ID, prev, sm.Name)
		}
		seenStages[sm.ID] = sm.Name

		if err := sm.validate(); err != nil {
			return fmt.Errorf("stage %d (%s): %w", sm.ID, sm.Name, err)
		}
	}
	return nil
}

func (sm *StageManifest) validate() error {
	seenStreams := make(map[uint16]bool, len(sm.Streams))
	for _, sv := range sm.Streams {
		if seenStreams[sv.SubStream] {
			return fmt.Errorf("sub-stream %d declared twice", sv.SubStream)
		}
		seenStreams[sv.SubStream] = true

		if err := sv.validate(); err != nil {
			return fmt.Errorf("sub-stream %d: %w", sv.SubStream, err)
		}
	}
	return nil
}

func (sv *StreamManifest) validate() error {
	continuousCount := 0
	for i, cm := range sv.Continuous {
		if _, err := parseSignalKind(cm.Kind); err != nil {
			return fmt.Errorf("continuous[%d]: %w", i, err)
		}
		if cm.Count < 0 {
			return fmt.Errorf("continuous[%d]: negative count %d", i, cm.Count)
		}
		continuousCount += cm.expandedCount()
	}

	for i, em := range sv.Events {
		if _, err := parsePayloadKind(em.Kind); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if em.Channels < 0 {
			return fmt.Errorf("events[%d]: negative channel count %d", i, em.Channels)
		}
		if err := validateFields(em.Metadata); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	for i, pm := range sv.Spikes {
		if _, err := parseElectrodeKind(pm.Electrode); err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}
		for _, src := range pm.Sources {
			if src < 0 || src >= continuousCount {
				return fmt.Errorf("spikes[%d]: source %d out of range (stream has %d continuous channels)",
					i, src, continuousCount)
			}
		}
		if err := validateFields(pm.Metadata); err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}
	}

	return nil
}

func validateFields(fields []FieldManifest) error {
	for i, fm := range fields {
		f, err := fm.field()
		if err != nil {
			return fmt.Errorf("metadata[%d]: %w", i, err)
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("metadata[%d]: %w", i, err)
		}
	}
	return nil
}

// Build replays the manifest through the stage builder, producing the
// registry the tap decodes against. The manifest must already have passed
// Validate; constructor errors still surface here for invariants only the
// channel package checks.
func (m *Manifest) Build() (*channel.Registry, error) {
	registry := channel.NewRegistry()

	for _, sm := range m.Stages {
		st := stage.New(sm.ID, sm.Name)

		for _, sv := range sm.Streams {
			if err := sv.build(st, registry); err != nil {
				return nil, fmt.Errorf("stage %d (%s) sub-stream %d: %w", sm.ID, sm.Name, sv.SubStream, err)
			}
		}
	}

	return registry, nil
}

func (sv *StreamManifest) build(st *stage.Stage, registry *channel.Registry) error {
	b := stage.NewBuilder(st, sv.SubStream, registry)

	// Continuous channels first so spike entries can reference them by
	// position.
	var continuous []*channel.Continuous
	for i, cm := range sv.Continuous {
		kind, err := parseSignalKind(cm.Kind)
		if err != nil {
			return fmt.Errorf("continuous[%d]: %w", i, err)
		}

		count := cm.expandedCount()
		for n := 0; n < count; n++ {
			opts := sv.infoOptions(cm.channelName(n, count), cm.Description, cm.SampleRate)
			ch, err := b.Continuous(kind, opts...)
			if err != nil {
				return fmt.Errorf("continuous[%d]: %w", i, err)
			}
			if cm.BitVolts > 0 {
				ch.SetBitVolts(cm.BitVolts)
			}
			continuous = append(continuous, ch)
		}
	}

	for i, em := range sv.Events {
		kind, err := parsePayloadKind(em.Kind)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}

		channels := em.Channels
		if channels == 0 {
			channels = 1
		}

		opts := sv.infoOptions(em.Name, em.Description, em.SampleRate)
		ch, err := b.Event(kind, channels, opts...)
		if err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if em.Length > 0 {
			ch.SetLength(em.Length)
		}
		if len(em.Metadata) > 0 {
			fields, err := buildFields(em.Metadata)
			if err != nil {
				return fmt.Errorf("events[%d]: %w", i, err)
			}
			if err := ch.DeclareMetadata(fields...); err != nil {
				return fmt.Errorf("events[%d]: %w", i, err)
			}
		}
	}

	for i, pm := range sv.Spikes {
		electrode, err := parseElectrodeKind(pm.Electrode)
		if err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}

		sources := make([]*channel.Continuous, len(pm.Sources))
		for n, src := range pm.Sources {
			if src < 0 || src >= len(continuous) {
				return fmt.Errorf("spikes[%d]: source %d out of range", i, src)
			}
			sources[n] = continuous[src]
		}

		opts := sv.infoOptions(pm.Name, pm.Description, pm.SampleRate)
		ch, err := b.Spike(electrode, sources, opts...)
		if err != nil {
			return fmt.Errorf("spikes[%d]: %w", i, err)
		}
		if pm.PrePeak > 0 || pm.PostPeak > 0 {
			if err := ch.SetWaveformWindow(pm.PrePeak, pm.PostPeak); err != nil {
				return fmt.Errorf("spikes[%d]: %w", i, err)
			}
		}
		if pm.Gain > 0 {
			ch.SetGain(pm.Gain)
		}
		if len(pm.Metadata) > 0 {
			fields, err := buildFields(pm.Metadata)
			if err != nil {
				return fmt.Errorf("spikes[%d]: %w", i, err)
			}
			if err := ch.DeclareMetadata(fields...); err != nil {
				return fmt.Errorf("spikes[%d]: %w", i, err)
			}
		}
	}

	for i, gm := range sv.Configurations {
		opts := sv.infoOptions(gm.Name, gm.Description, 0)
		if _, err := b.Configuration(opts...); err != nil {
			return fmt.Errorf("configurations[%d]: %w", i, err)
		}
	}

	return nil
}

// infoOptions assembles the descriptor options for one channel entry,
// falling back to the stream's default sample rate when the entry does not
// declare its own.
func (sv *StreamManifest) infoOptions(name, description string, sampleRate float64) []channel.InfoOption {
	var opts []channel.InfoOption
	if name != "" {
		opts = append(opts, channel.WithName(name))
	}
	if description != "" {
		opts = append(opts, channel.WithDescription(description))
	}
	if sampleRate == 0 {
		sampleRate = sv.SampleRate
	}
	if sampleRate > 0 {
		opts = append(opts, channel.WithSampleRate(sampleRate))
	}
	return opts
}

// expandedCount returns how many channels the entry declares
func (cm *ContinuousManifest) expandedCount() int {
	if cm.Count <= 1 {
		return 1
	}
	return cm.Count
}

// channelName numbers expanded runs CH1..CHN and leaves single channels
// named as declared
func (cm *ContinuousManifest) channelName(n, count int) string {
	name := cm.Name
	if name == "" {
		name = "CH"
	}
	if count <= 1 && cm.Name != "" {
		return name
	}
	return fmt.Sprintf("%s%d", name, n+1)
}

func buildFields(fields []FieldManifest) ([]metadata.Field, error) {
	result := make([]metadata.Field, len(fields))
	for i, fm := range fields {
		f, err := fm.field()
		if err != nil {
			return nil, fmt.Errorf("metadata[%d]: %w", i, err)
		}
		result[i] = f
	}
	return result, nil
}

// field converts the manifest declaration into a metadata field. Length
// defaults to one element.
func (fm *FieldManifest) field() (metadata.Field, error) {
	kind, err := parseMetadataKind(fm.Kind)
	if err != nil {
		return metadata.Field{}, err
	}

	length := fm.Length
	if length == 0 {
		length = 1
	}

	return metadata.Field{
		Name:        fm.Name,
		Identifier:  fm.Identifier,
		Description: fm.Description,
		Kind:        kind,
		Length:      length,
	}, nil
}

// parseSignalKind maps a manifest kind name to a signal kind
func parseSignalKind(s string) (channel.SignalKind, error) {
	switch s {
	case "headstage":
		return channel.SignalHeadstage, nil
	case "aux":
		return channel.SignalAux, nil
	case "adc":
		return channel.SignalADC, nil
	}
	return 0, fmt.Errorf("unknown signal kind '%s' (must be headstage, aux or adc)", s)
}

// parsePayloadKind maps a manifest kind name to an event payload kind
func parsePayloadKind(s string) (channel.PayloadKind, error) {
	switch s {
	case "ttl":
		return channel.TTL, nil
	case "text":
		return channel.Text, nil
	case "int8":
		return channel.Int8Array, nil
	case "uint8":
		return channel.UInt8Array, nil
	case "int16":
		return channel.Int16Array, nil
	case "uint16":
		return channel.UInt16Array, nil
	case "int32":
		return channel.Int32Array, nil
	case "uint32":
		return channel.UInt32Array, nil
	case "int64":
		return channel.Int64Array, nil
	case "uint64":
		return channel.UInt64Array, nil
	}
	return 0, fmt.Errorf("unknown payload kind '%s'", s)
}

// parseElectrodeKind maps a manifest electrode name to an electrode kind
func parseElectrodeKind(s string) (channel.ElectrodeKind, error) {
	switch s {
	case "single":
		return channel.SingleElectrode, nil
	case "stereotrode":
		return channel.Stereotrode, nil
	case "tetrode":
		return channel.Tetrode, nil
	}
	return 0, fmt.Errorf("unknown electrode kind '%s' (must be single, stereotrode or tetrode)", s)
}

// parseMetadataKind maps a manifest field kind name to a metadata kind
func parseMetadataKind(s string) (metadata.Kind, error) {
	switch s {
	case "char":
		return metadata.Char, nil
	case "int8":
		return metadata.Int8, nil
	case "uint8":
		return metadata.UInt8, nil
	case "int16":
		return metadata.Int16, nil
	case "uint16":
		return metadata.UInt16, nil
	case "int32":
		return metadata.Int32, nil
	case "uint32":
		return metadata.UInt32, nil
	case "int64":
		return metadata.Int64, nil
	case "uint64":
		return metadata.UInt64, nil
	case "float32":
		return metadata.Float32, nil
	case "float64":
		return metadata.Float64, nil
	}
	return 0, fmt.Errorf("unknown metadata kind '%s'", s)
}
