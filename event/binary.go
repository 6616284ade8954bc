package event

import (
	"encoding/binary"
	"fmt"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// Element enumerates the exact element types numeric array payloads carry.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64
}

// Binary is a typed numeric array on an event channel of one of the array
// payload kinds.
type Binary struct {
	info      *channel.Event
	timestamp uint64
	selector  uint16
	raw       []byte // owned, native-endian elements
	meta      []metadata.Value
}

// NewBinary creates an array event from raw encoded elements. The raw length
// must equal the channel's declared payload size; the bytes are copied.
func NewBinary(info *channel.Event, timestamp uint64, selector uint16, raw []byte, opts ...Option) (*Binary, error) {
	if info == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Binary", "NewBinary", "nil channel descriptor")
	}
	if !info.Kind().IsArray() {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Binary", "NewBinary",
			fmt.Sprintf("channel carries %s payloads", info.Kind()))
	}
	if selector < 1 || int(selector) > info.Channels() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Binary", "NewBinary",
			fmt.Sprintf("virtual channel %d outside 1..%d", selector, info.Channels()))
	}
	if len(raw) != info.DataSize() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Binary", "NewBinary",
			fmt.Sprintf("payload is %d bytes, channel declares %d", len(raw), info.DataSize()))
	}

	o := applyOptions(opts)
	if err := metadata.Compatible(info.MetadataSchema(), o.meta); err != nil {
		return nil, errors.Wrap(err, "Binary", "NewBinary", "check metadata")
	}

	owned := make([]byte, len(raw))
	copy(owned, raw)
	return &Binary{info: info, timestamp: timestamp, selector: selector, raw: owned, meta: o.meta}, nil
}

// NewBinaryOf creates an array event from typed elements. The element type
// must match the channel's declared payload kind and the element count its
// declared length.
func NewBinaryOf[T Element](info *channel.Event, timestamp uint64, selector uint16, values []T, opts ...Option) (*Binary, error) {
	if info == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Binary", "NewBinaryOf", "nil channel descriptor")
	}
	if kind := payloadKindFor[T](); kind != info.Kind() {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Binary", "NewBinaryOf",
			fmt.Sprintf("channel declares %s, values are %s", info.Kind(), kind))
	}
	if len(values) != info.Length() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Binary", "NewBinaryOf",
			fmt.Sprintf("channel declares %d elements, got %d", info.Length(), len(values)))
	}
	return NewBinary(info, timestamp, selector, encodeElements(values), opts...)
}

// BinaryValues decodes an array event's payload into typed elements. The
// requested element type must match the channel's declared payload kind.
func BinaryValues[T Element](e *Binary) ([]T, error) {
	if kind := payloadKindFor[T](); kind != e.info.Kind() {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Binary", "BinaryValues",
			fmt.Sprintf("channel declares %s, requested %s", e.info.Kind(), kind))
	}
	return decodeElements[T](e.raw), nil
}

func (e *Binary) isEvent() {}

// Type returns TypeStage.
func (e *Binary) Type() Type {
	return TypeStage
}

// Info returns the bound channel descriptor.
func (e *Binary) Info() *channel.Event {
	return e.info
}

// Timestamp returns the sample tick of the event.
func (e *Binary) Timestamp() uint64 {
	return e.timestamp
}

// Selector returns the 1-based virtual channel the event targets.
func (e *Binary) Selector() uint16 {
	return e.selector
}

// Raw returns a copy of the encoded payload.
func (e *Binary) Raw() []byte {
	out := make([]byte, len(e.raw))
	copy(out, e.raw)
	return out
}

// Metadata returns the attached metadata values in schema order.
func (e *Binary) Metadata() []metadata.Value {
	return append([]metadata.Value(nil), e.meta...)
}

// PacketSize returns the exact encoded size in bytes.
func (e *Binary) PacketSize() int {
	return stageHeaderSize + e.info.DataSize() + e.info.MetadataSize()
}

// Serialize writes the packet into dst and returns the written length.
func (e *Binary) Serialize(dst []byte) (int, error) {
	need := e.PacketSize()
	if len(dst) < need {
		return 0, errors.WrapInvalid(errors.ErrBufferTooSmall, "Binary", "Serialize",
			fmt.Sprintf("need %d bytes, have %d", need, len(dst)))
	}

	n := putStageHeader(dst, TypeStage, byte(e.info.Kind()), e.info.Provenance(), e.selector, e.timestamp)
	n += copy(dst[n:], e.raw)
	// Capacity already checked; append writes in place.
	return len(metadata.AppendValues(dst[:n], e.meta)), nil
}

// payloadKindFor maps an element type to its payload kind byte.
func payloadKindFor[T Element]() channel.PayloadKind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return channel.Int8Array
	case uint8:
		return channel.UInt8Array
	case int16:
		return channel.Int16Array
	case uint16:
		return channel.UInt16Array
	case int32:
		return channel.Int32Array
	case uint32:
		return channel.UInt32Array
	case int64:
		return channel.Int64Array
	default:
		return channel.UInt64Array
	}
}

func encodeElements[T Element](values []T) []byte {
	switch vs := any(values).(type) {
	case []int8:
		out := make([]byte, len(vs))
		for i, e := range vs {
			out[i] = byte(e)
		}
		return out
	case []uint8:
		return append([]byte(nil), vs...)
	case []int16:
		out := make([]byte, 0, len(vs)*2)
		for _, e := range vs {
			out = binary.NativeEndian.AppendUint16(out, uint16(e))
		}
		return out
	case []uint16:
		out := make([]byte, 0, len(vs)*2)
		for _, e := range vs {
			out = binary.NativeEndian.AppendUint16(out, e)
		}
		return out
	case []int32:
		out := make([]byte, 0, len(vs)*4)
		for _, e := range vs {
			out = binary.NativeEndian.AppendUint32(out, uint32(e))
		}
		return out
	case []uint32:
		out := make([]byte, 0, len(vs)*4)
		for _, e := range vs {
			out = binary.NativeEndian.AppendUint32(out, e)
		}
		return out
	case []int64:
		out := make([]byte, 0, len(vs)*8)
		for _, e := range vs {
			out = binary.NativeEndian.AppendUint64(out, uint64(e))
		}
		return out
	default:
		out := make([]byte, 0, len(values)*8)
		for _, e := range any(values).([]uint64) {
			out = binary.NativeEndian.AppendUint64(out, e)
		}
		return out
	}
}

func decodeElements[T Element](raw []byte) []T {
	var out []T
	switch any(out).(type) {
	case []int8:
		vs := make([]int8, len(raw))
		for i, b := range raw {
			vs[i] = int8(b)
		}
		return any(vs).([]T)
	case []uint8:
		vs := make([]uint8, len(raw))
		copy(vs, raw)
		return any(vs).([]T)
	case []int16:
		vs := make([]int16, len(raw)/2)
		for i := range vs {
			vs[i] = int16(binary.NativeEndian.Uint16(raw[i*2:]))
		}
		return any(vs).([]T)
	case []uint16:
		vs := make([]uint16, len(raw)/2)
		for i := range vs {
			vs[i] = binary.NativeEndian.Uint16(raw[i*2:])
		}
		return any(vs).([]T)
	case []int32:
		vs := make([]int32, len(raw)/4)
		for i := range vs {
			vs[i] = int32(binary.NativeEndian.Uint32(raw[i*4:]))
		}
		return any(vs).([]T)
	case []uint32:
		vs := make([]uint32, len(raw)/4)
		for i := range vs {
			vs[i] = binary.NativeEndian.Uint32(raw[i*4:])
		}
		return any(vs).([]T)
	case []int64:
		vs := make([]int64, len(raw)/8)
		for i := range vs {
			vs[i] = int64(binary.NativeEndian.Uint64(raw[i*8:]))
		}
		return any(vs).([]T)
	default:
		vs := make([]uint64, len(raw)/8)
		for i := range vs {
			vs[i] = binary.NativeEndian.Uint64(raw[i*8:])
		}
		return any(vs).([]T)
	}
}
