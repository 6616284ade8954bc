package event

import (
	"encoding/binary"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/metadata"
)

// Type is the base kind of an event packet, carried in the first header
// byte.
type Type uint8

const (
	// TypeSystem marks pipeline-infrastructure packets.
	TypeSystem Type = iota
	// TypeStage marks packets produced on a stage's event channel.
	TypeStage
	// TypeSpike marks spike waveform packets.
	TypeSpike
)

// String returns the lowercase name of the base kind.
func (t Type) String() string {
	switch t {
	case TypeSystem:
		return "system"
	case TypeStage:
		return "stage"
	case TypeSpike:
		return "spike"
	default:
		return "unknown"
	}
}

// SystemKind is the payload sub-kind of a system packet.
type SystemKind uint8

const (
	// SystemTimestamp synchronizes consumers to the producer's clock.
	SystemTimestamp SystemKind = iota
	// SystemBufferSize announces the producer's processing block size.
	SystemBufferSize
	// SystemParameterChange carries an opaque stage parameter update.
	SystemParameterChange
)

// String returns the lowercase name of the system sub-kind.
func (k SystemKind) String() string {
	switch k {
	case SystemTimestamp:
		return "timestamp"
	case SystemBufferSize:
		return "buffer_size"
	case SystemParameterChange:
		return "parameter_change"
	default:
		return "unknown"
	}
}

// Event is the closed set of decoded packet values. Every value is immutable
// once constructed, owns its payload bytes, and serializes itself into a
// caller-supplied buffer.
//
// The set is sealed: only the concrete types in this package implement it.
type Event interface {
	// Type returns the packet base kind.
	Type() Type
	// Timestamp returns the sample-tick timestamp, or 0 for system
	// sub-kinds that do not carry one.
	Timestamp() uint64
	// PacketSize returns the exact encoded size in bytes.
	PacketSize() int
	// Serialize writes the packet into dst and returns the written length.
	// Fails with ErrBufferTooSmall when dst cannot hold PacketSize bytes.
	Serialize(dst []byte) (int, error)

	isEvent()
}

// Resolver resolves the provenance fields of an incoming packet to the live
// channel descriptors. *channel.Registry satisfies it.
type Resolver interface {
	EventChannel(channel.Key) (*channel.Event, error)
	SpikeChannel(channel.Key) (*channel.Spike, error)
}

// Header sizes. System packets stop after the sub-stream field; stage and
// spike packets continue with type index, virtual channel selector and
// timestamp.
const (
	systemHeaderSize = 6
	stageHeaderSize  = 18
)

// PacketType peeks at the base kind of a raw packet without decoding it.
// Returns false for an empty buffer or an unknown kind byte.
func PacketType(raw []byte) (Type, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	t := Type(raw[0])
	if t > TypeSpike {
		return 0, false
	}
	return t, true
}

// Option configures optional attributes at event construction.
type Option func(*options)

type options struct {
	unit uint16
	meta []metadata.Value
}

// WithMetadata attaches metadata values to the event. The values must match
// the bound descriptor's declared schema field by field.
func WithMetadata(values ...metadata.Value) Option {
	return func(o *options) { o.meta = append(o.meta, values...) }
}

// WithUnit sets the sorted-unit classifier of a spike event; 0 means
// unclassified. Other event kinds carry no unit.
func WithUnit(unit uint16) Option {
	return func(o *options) { o.unit = unit }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// putStageHeader writes the full 18-byte header shared by stage-produced and
// spike packets. The caller has already checked capacity.
func putStageHeader(dst []byte, base Type, sub uint8, p channel.Provenance, selector uint16, timestamp uint64) int {
	dst[0] = byte(base)
	dst[1] = sub
	binary.NativeEndian.PutUint16(dst[2:], p.StageID)
	binary.NativeEndian.PutUint16(dst[4:], p.SubStream)
	binary.NativeEndian.PutUint16(dst[6:], p.TypeIndex)
	binary.NativeEndian.PutUint16(dst[8:], selector)
	binary.NativeEndian.PutUint64(dst[10:], timestamp)
	return stageHeaderSize
}
