package channel

import (
	"fmt"
	"sync"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// Default waveform window around the detected peak, in samples.
const (
	DefaultPrePeakSamples  = 8
	DefaultPostPeakSamples = 32
)

// Spike describes one spike output channel of a stage: the electrode
// configuration, the waveform window and the continuous channels the
// waveforms are cut from.
type Spike struct {
	Info

	electrode ElectrodeKind

	gainMu sync.RWMutex
	gain   float64

	preSamples  int
	postSamples int

	sources []SourceRef

	schema []metadata.Field
}

// NewSpike constructs a spike-channel descriptor bound to its owning stage.
// The supplied source channels must match the electrode kind's channel count
// exactly; a mismatch means the producing stage is misconfigured and yields
// a fatal invariant error.
func NewSpike(electrode ElectrodeKind, sources []*Continuous, stage Stage, subStream, index, typeIndex uint16, opts ...InfoOption) (*Spike, error) {
	if !electrode.Valid() {
		return nil, errors.WrapFatal(errors.ErrInvariantViolation, "Spike", "NewSpike",
			fmt.Sprintf("unknown electrode kind %d", electrode))
	}
	if want := electrode.ChannelCount(); len(sources) != want {
		return nil, errors.WrapFatal(errors.ErrInvariantViolation, "Spike", "NewSpike",
			fmt.Sprintf("electrode %s wants %d source channels, got %d", electrode, want, len(sources)))
	}

	refs := make([]SourceRef, len(sources))
	for i, src := range sources {
		if src == nil {
			return nil, errors.WrapFatal(errors.ErrInvariantViolation, "Spike", "NewSpike",
				fmt.Sprintf("source channel %d is nil", i))
		}
		p := src.Provenance()
		refs[i] = SourceRef{StageID: p.StageID, SubStream: p.SubStream, Index: p.Index}
	}

	s := &Spike{
		electrode:   electrode,
		gain:        1.0,
		preSamples:  DefaultPrePeakSamples,
		postSamples: DefaultPostPeakSamples,
		sources:     refs,
	}
	s.Info.init(stage, subStream, index, typeIndex, opts...)
	return s, nil
}

// Electrode returns the electrode kind.
func (s *Spike) Electrode() ElectrodeKind {
	return s.electrode
}

// ChannelCount returns the number of source channels, fixed by the electrode
// kind.
func (s *Spike) ChannelCount() int {
	return s.electrode.ChannelCount()
}

// Gain returns the amplifier gain applied to the waveform samples.
func (s *Spike) Gain() float64 {
	s.gainMu.RLock()
	defer s.gainMu.RUnlock()
	return s.gain
}

// SetGain updates the amplifier gain.
func (s *Spike) SetGain(g float64) {
	s.gainMu.Lock()
	defer s.gainMu.Unlock()
	s.gain = g
}

// PrePeakSamples returns the number of waveform samples before the peak.
func (s *Spike) PrePeakSamples() int {
	return s.preSamples
}

// PostPeakSamples returns the number of waveform samples after the peak.
func (s *Spike) PostPeakSamples() int {
	return s.postSamples
}

// TotalSamples returns the waveform length per source channel.
func (s *Spike) TotalSamples() int {
	return s.preSamples + s.postSamples
}

// SetWaveformWindow declares the waveform window during setup. Both counts
// must be non-negative.
func (s *Spike) SetWaveformWindow(pre, post int) error {
	if pre < 0 || post < 0 {
		return errors.WrapFatal(errors.ErrInvariantViolation, "Spike", "SetWaveformWindow",
			fmt.Sprintf("negative window %d/%d", pre, post))
	}
	s.preSamples = pre
	s.postSamples = post
	return nil
}

// Sources returns a copy of the source-channel references, in electrode
// order.
func (s *Spike) Sources() []SourceRef {
	return append([]SourceRef(nil), s.sources...)
}

// DeclareMetadata declares the ordered metadata schema spike events on this
// channel must carry. Setup-time call; replaces any prior declaration.
func (s *Spike) DeclareMetadata(fields ...metadata.Field) error {
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return errors.Wrap(err, "Spike", "DeclareMetadata", "validate field")
		}
	}
	s.schema = append([]metadata.Field(nil), fields...)
	return nil
}

// MetadataSchema returns a copy of the declared metadata schema.
func (s *Spike) MetadataSchema() []metadata.Field {
	return append([]metadata.Field(nil), s.schema...)
}

// MetadataSize returns the total byte size of the trailing metadata section
// the schema mandates.
func (s *Spike) MetadataSize() int {
	return metadata.SchemaSize(s.schema)
}
