package event

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// Spike is one detected spike on a spike channel: the detection threshold
// and one waveform snippet per source channel, cut around the peak.
//
// The header's virtual-channel slot carries the sorted-unit classifier
// instead: 0 for an unclassified spike, 1 and up for sorted units.
type Spike struct {
	info      *channel.Spike
	timestamp uint64
	unit      uint16
	threshold float32
	samples   []float32 // owned, source channels concatenated
	meta      []metadata.Value
}

// NewSpike creates a spike event. The waveform must hold one row per source
// channel, each of the channel's full window length; rows are copied.
func NewSpike(info *channel.Spike, timestamp uint64, threshold float32, waveform [][]float32, opts ...Option) (*Spike, error) {
	if info == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Spike", "NewSpike", "nil channel descriptor")
	}
	if len(waveform) != info.ChannelCount() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Spike", "NewSpike",
			fmt.Sprintf("waveform has %d rows, electrode %s wants %d",
				len(waveform), info.Electrode(), info.ChannelCount()))
	}
	total := info.TotalSamples()
	for i, row := range waveform {
		if len(row) != total {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "Spike", "NewSpike",
				fmt.Sprintf("waveform row %d has %d samples, window is %d", i, len(row), total))
		}
	}

	o := applyOptions(opts)
	if err := metadata.Compatible(info.MetadataSchema(), o.meta); err != nil {
		return nil, errors.Wrap(err, "Spike", "NewSpike", "check metadata")
	}

	samples := make([]float32, 0, len(waveform)*total)
	for _, row := range waveform {
		samples = append(samples, row...)
	}
	return &Spike{
		info:      info,
		timestamp: timestamp,
		unit:      o.unit,
		threshold: threshold,
		samples:   samples,
		meta:      o.meta,
	}, nil
}

func (e *Spike) isEvent() {}

// Type returns TypeSpike.
func (e *Spike) Type() Type {
	return TypeSpike
}

// Info returns the bound channel descriptor.
func (e *Spike) Info() *channel.Spike {
	return e.info
}

// Timestamp returns the sample tick of the detected peak.
func (e *Spike) Timestamp() uint64 {
	return e.timestamp
}

// Unit returns the sorted-unit classifier; 0 means unclassified.
func (e *Spike) Unit() uint16 {
	return e.unit
}

// Threshold returns the detection threshold the spike crossed.
func (e *Spike) Threshold() float32 {
	return e.threshold
}

// Waveform returns a copy of the waveform, one row per source channel in
// electrode order.
func (e *Spike) Waveform() [][]float32 {
	total := e.info.TotalSamples()
	out := make([][]float32, e.info.ChannelCount())
	for i := range out {
		row := make([]float32, total)
		copy(row, e.samples[i*total:])
		out[i] = row
	}
	return out
}

// Metadata returns the attached metadata values in schema order.
func (e *Spike) Metadata() []metadata.Value {
	return append([]metadata.Value(nil), e.meta...)
}

// PacketSize returns the exact encoded size in bytes.
func (e *Spike) PacketSize() int {
	return stageHeaderSize + 4 + len(e.samples)*4 + e.info.MetadataSize()
}

// Serialize writes the packet into dst and returns the written length.
func (e *Spike) Serialize(dst []byte) (int, error) {
	need := e.PacketSize()
	if len(dst) < need {
		return 0, errors.WrapInvalid(errors.ErrBufferTooSmall, "Spike", "Serialize",
			fmt.Sprintf("need %d bytes, have %d", need, len(dst)))
	}

	n := putStageHeader(dst, TypeSpike, byte(e.info.Electrode()), e.info.Provenance(), e.unit, e.timestamp)
	binary.NativeEndian.PutUint32(dst[n:], math.Float32bits(e.threshold))
	n += 4
	for _, s := range e.samples {
		binary.NativeEndian.PutUint32(dst[n:], math.Float32bits(s))
		n += 4
	}
	// Capacity already checked; append writes in place.
	return len(metadata.AppendValues(dst[:n], e.meta)), nil
}
