package channel

import (
	"fmt"
	"sync/atomic"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// Event describes one event output channel of a stage: which payload kind it
// carries, how many virtual channels it declares and how large its payloads
// are.
//
// Length, payload size and the metadata schema are fixed while the pipeline
// is running; they change only during serialized (re)configuration, so they
// carry no locks. The recording flag may be toggled at any time.
type Event struct {
	Info

	kind     PayloadKind
	channels int
	length   int
	dataSize int

	recording atomic.Bool

	schema []metadata.Field
}

// NewEvent constructs an event-channel descriptor bound to its owning stage.
//
// For the TTL kind the payload size is fixed by the channel count: one bit
// per line, rounded up to whole bytes, and the length is forced equal to
// that size. Other kinds start with a length of one element; use SetLength
// during setup to declare larger payloads.
func NewEvent(kind PayloadKind, channels int, stage Stage, subStream, index, typeIndex uint16, opts ...InfoOption) (*Event, error) {
	if !kind.Valid() {
		return nil, errors.WrapFatal(errors.ErrInvariantViolation, "Event", "NewEvent",
			fmt.Sprintf("unknown payload kind %d", kind))
	}
	if channels < 1 {
		return nil, errors.WrapFatal(errors.ErrInvariantViolation, "Event", "NewEvent",
			fmt.Sprintf("channel count %d, need at least 1", channels))
	}

	e := &Event{
		kind:     kind,
		channels: channels,
	}
	e.Info.init(stage, subStream, index, typeIndex, opts...)

	if kind == TTL {
		e.dataSize = (channels + 7) / 8
		e.length = e.dataSize
	} else {
		e.applyLength(1)
	}
	return e, nil
}

func (e *Event) applyLength(n int) {
	e.length = n
	e.dataSize = n * e.kind.ElementSize()
	if e.kind == Text {
		// Mandatory null terminator
		e.dataSize++
	}
}

// Kind returns the payload kind.
func (e *Event) Kind() PayloadKind {
	return e.kind
}

// Channels returns the number of virtual channels the descriptor declares.
func (e *Event) Channels() int {
	return e.channels
}

// Length returns the declared element count. For TTL channels it equals the
// payload byte size.
func (e *Event) Length() int {
	return e.length
}

// DataSize returns the derived payload byte size.
func (e *Event) DataSize() int {
	return e.dataSize
}

// SetLength declares the element count during setup. For TTL channels the
// length is fixed by the channel count and the call does nothing. Lengths
// below zero are clamped to zero.
func (e *Event) SetLength(n int) {
	if e.kind == TTL {
		return
	}
	if n < 0 {
		n = 0
	}
	e.applyLength(n)
}

// Recording reports whether events on this channel are flagged for
// recording.
func (e *Event) Recording() bool {
	return e.recording.Load()
}

// SetRecording toggles the recording flag.
func (e *Event) SetRecording(v bool) {
	e.recording.Store(v)
}

// DeclareMetadata declares the ordered metadata schema events on this
// channel must carry. Setup-time call; replaces any prior declaration.
func (e *Event) DeclareMetadata(fields ...metadata.Field) error {
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return errors.Wrap(err, "Event", "DeclareMetadata", "validate field")
		}
	}
	e.schema = append([]metadata.Field(nil), fields...)
	return nil
}

// MetadataSchema returns a copy of the declared metadata schema.
func (e *Event) MetadataSchema() []metadata.Field {
	return append([]metadata.Field(nil), e.schema...)
}

// MetadataSize returns the total byte size of the trailing metadata section
// the schema mandates.
func (e *Event) MetadataSize() int {
	return metadata.SchemaSize(e.schema)
}
