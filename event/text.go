package event

import (
	"fmt"
	"strings"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// Text is a free-text annotation on an event channel of the text payload
// kind. The encoded region is the channel's declared length plus a null
// terminator, zero padded.
type Text struct {
	info      *channel.Event
	timestamp uint64
	selector  uint16
	text      string
	meta      []metadata.Value
}

// NewText creates a text event. The text must fit the channel's declared
// length and contain no null byte.
func NewText(info *channel.Event, timestamp uint64, selector uint16, text string, opts ...Option) (*Text, error) {
	if info == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Text", "NewText", "nil channel descriptor")
	}
	if info.Kind() != channel.Text {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Text", "NewText",
			fmt.Sprintf("channel carries %s payloads", info.Kind()))
	}
	if selector < 1 || int(selector) > info.Channels() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Text", "NewText",
			fmt.Sprintf("virtual channel %d outside 1..%d", selector, info.Channels()))
	}
	if len(text) > info.Length() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Text", "NewText",
			fmt.Sprintf("text is %d bytes, channel declares %d", len(text), info.Length()))
	}
	if strings.IndexByte(text, 0) >= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Text", "NewText", "text contains a null byte")
	}

	o := applyOptions(opts)
	if err := metadata.Compatible(info.MetadataSchema(), o.meta); err != nil {
		return nil, errors.Wrap(err, "Text", "NewText", "check metadata")
	}

	return &Text{info: info, timestamp: timestamp, selector: selector, text: text, meta: o.meta}, nil
}

func (e *Text) isEvent() {}

// Type returns TypeStage.
func (e *Text) Type() Type {
	return TypeStage
}

// Info returns the bound channel descriptor.
func (e *Text) Info() *channel.Event {
	return e.info
}

// Timestamp returns the sample tick of the annotation.
func (e *Text) Timestamp() uint64 {
	return e.timestamp
}

// Selector returns the 1-based virtual channel the annotation targets.
func (e *Text) Selector() uint16 {
	return e.selector
}

// Text returns the annotation text.
func (e *Text) Text() string {
	return e.text
}

// Metadata returns the attached metadata values in schema order.
func (e *Text) Metadata() []metadata.Value {
	return append([]metadata.Value(nil), e.meta...)
}

// PacketSize returns the exact encoded size in bytes.
func (e *Text) PacketSize() int {
	return stageHeaderSize + e.info.DataSize() + e.info.MetadataSize()
}

// Serialize writes the packet into dst and returns the written length.
func (e *Text) Serialize(dst []byte) (int, error) {
	need := e.PacketSize()
	if len(dst) < need {
		return 0, errors.WrapInvalid(errors.ErrBufferTooSmall, "Text", "Serialize",
			fmt.Sprintf("need %d bytes, have %d", need, len(dst)))
	}

	n := putStageHeader(dst, TypeStage, byte(channel.Text), e.info.Provenance(), e.selector, e.timestamp)
	region := dst[n : n+e.info.DataSize()]
	clear(region)
	copy(region, e.text)
	n += len(region)
	// Capacity already checked; append writes in place.
	return len(metadata.AppendValues(dst[:n], e.meta)), nil
}
