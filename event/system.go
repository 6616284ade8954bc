package event

import (
	"encoding/binary"
	"fmt"

	"github.com/neuroacq/sigstreams/errors"
)

// System is a pipeline-infrastructure event. It carries no channel binding
// and resolves against no descriptor; the stage id and sub-stream identify
// the producer directly.
type System struct {
	kind      SystemKind
	stageID   uint16
	subStream uint16

	timestamp  uint64 // SystemTimestamp only
	bufferSize uint32 // SystemBufferSize only
	payload    []byte // SystemParameterChange only, owned
}

// NewTimestampEvent creates a clock-synchronization event.
func NewTimestampEvent(stageID, subStream uint16, timestamp uint64) *System {
	return &System{kind: SystemTimestamp, stageID: stageID, subStream: subStream, timestamp: timestamp}
}

// NewBufferSizeEvent creates a block-size announcement. The size is the
// producer's processing block length in samples.
func NewBufferSizeEvent(stageID, subStream uint16, samples uint32) *System {
	return &System{kind: SystemBufferSize, stageID: stageID, subStream: subStream, bufferSize: samples}
}

// NewParameterChangeEvent creates a parameter-update event with an opaque
// payload. The payload bytes are copied.
func NewParameterChangeEvent(stageID, subStream uint16, payload []byte) *System {
	owned := make([]byte, len(payload))
	copy(owned, payload)
	return &System{kind: SystemParameterChange, stageID: stageID, subStream: subStream, payload: owned}
}

func (e *System) isEvent() {}

// Type returns TypeSystem.
func (e *System) Type() Type {
	return TypeSystem
}

// Kind returns the system sub-kind.
func (e *System) Kind() SystemKind {
	return e.kind
}

// StageID returns the producing stage's id.
func (e *System) StageID() uint16 {
	return e.stageID
}

// SubStream returns the producing sub-stream index.
func (e *System) SubStream() uint16 {
	return e.subStream
}

// Timestamp returns the carried tick for SystemTimestamp events and 0 for
// the timestamp-less sub-kinds.
func (e *System) Timestamp() uint64 {
	return e.timestamp
}

// BufferSize returns the announced block size in samples; 0 unless the
// sub-kind is SystemBufferSize.
func (e *System) BufferSize() uint32 {
	return e.bufferSize
}

// Payload returns a copy of the opaque parameter payload; nil unless the
// sub-kind is SystemParameterChange.
func (e *System) Payload() []byte {
	if e.payload == nil {
		return nil
	}
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out
}

// PacketSize returns the exact encoded size in bytes.
func (e *System) PacketSize() int {
	switch e.kind {
	case SystemTimestamp:
		return systemHeaderSize + 8
	case SystemBufferSize:
		return systemHeaderSize + 4
	default:
		return systemHeaderSize + len(e.payload)
	}
}

// Serialize writes the packet into dst and returns the written length.
func (e *System) Serialize(dst []byte) (int, error) {
	need := e.PacketSize()
	if len(dst) < need {
		return 0, errors.WrapInvalid(errors.ErrBufferTooSmall, "System", "Serialize",
			fmt.Sprintf("need %d bytes, have %d", need, len(dst)))
	}

	dst[0] = byte(TypeSystem)
	dst[1] = byte(e.kind)
	binary.NativeEndian.PutUint16(dst[2:], e.stageID)
	binary.NativeEndian.PutUint16(dst[4:], e.subStream)

	switch e.kind {
	case SystemTimestamp:
		binary.NativeEndian.PutUint64(dst[systemHeaderSize:], e.timestamp)
	case SystemBufferSize:
		binary.NativeEndian.PutUint32(dst[systemHeaderSize:], e.bufferSize)
	case SystemParameterChange:
		copy(dst[systemHeaderSize:], e.payload)
	}
	return need, nil
}
