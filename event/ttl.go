package event

import (
	"fmt"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// TTL is a boolean-line toggle on an event channel of the TTL payload kind.
// The word holds the current state of every declared line, one bit per line;
// the 1-based line selector names the line that changed.
type TTL struct {
	info      *channel.Event
	timestamp uint64
	line      uint16
	word      []byte // owned
	meta      []metadata.Value
}

// NewTTL creates a line-toggle event. The line selector is 1-based among the
// channel's declared lines and the word must be exactly the channel's
// payload size.
func NewTTL(info *channel.Event, timestamp uint64, line uint16, word []byte, opts ...Option) (*TTL, error) {
	if info == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "TTL", "NewTTL", "nil channel descriptor")
	}
	if info.Kind() != channel.TTL {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "TTL", "NewTTL",
			fmt.Sprintf("channel carries %s payloads", info.Kind()))
	}
	if line < 1 || int(line) > info.Channels() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "TTL", "NewTTL",
			fmt.Sprintf("line %d outside 1..%d", line, info.Channels()))
	}
	if len(word) != info.DataSize() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "TTL", "NewTTL",
			fmt.Sprintf("state word is %d bytes, channel wants %d", len(word), info.DataSize()))
	}

	o := applyOptions(opts)
	if err := metadata.Compatible(info.MetadataSchema(), o.meta); err != nil {
		return nil, errors.Wrap(err, "TTL", "NewTTL", "check metadata")
	}

	owned := make([]byte, len(word))
	copy(owned, word)
	return &TTL{info: info, timestamp: timestamp, line: line, word: owned, meta: o.meta}, nil
}

func (e *TTL) isEvent() {}

// Type returns TypeStage.
func (e *TTL) Type() Type {
	return TypeStage
}

// Info returns the bound channel descriptor.
func (e *TTL) Info() *channel.Event {
	return e.info
}

// Timestamp returns the sample tick the toggle occurred at.
func (e *TTL) Timestamp() uint64 {
	return e.timestamp
}

// Line returns the 1-based selector of the line that changed.
func (e *TTL) Line() uint16 {
	return e.line
}

// Word returns a copy of the full line-state bitmask.
func (e *TTL) Word() []byte {
	out := make([]byte, len(e.word))
	copy(out, e.word)
	return out
}

// State returns the selected line's level after the toggle.
func (e *TTL) State() bool {
	bit := uint(e.line - 1)
	return e.word[bit/8]>>(bit%8)&1 == 1
}

// Metadata returns the attached metadata values in schema order.
func (e *TTL) Metadata() []metadata.Value {
	return append([]metadata.Value(nil), e.meta...)
}

// PacketSize returns the exact encoded size in bytes.
func (e *TTL) PacketSize() int {
	return stageHeaderSize + e.info.DataSize() + e.info.MetadataSize()
}

// Serialize writes the packet into dst and returns the written length.
func (e *TTL) Serialize(dst []byte) (int, error) {
	need := e.PacketSize()
	if len(dst) < need {
		return 0, errors.WrapInvalid(errors.ErrBufferTooSmall, "TTL", "Serialize",
			fmt.Sprintf("need %d bytes, have %d", need, len(dst)))
	}

	n := putStageHeader(dst, TypeStage, byte(channel.TTL), e.info.Provenance(), e.line, e.timestamp)
	n += copy(dst[n:], e.word)
	// Capacity already checked; append writes in place.
	return len(metadata.AppendValues(dst[:n], e.meta)), nil
}
