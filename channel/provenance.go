package channel

import "fmt"

// Stage is the collaborator that owns output channels: one unit in the
// processing pipeline, identified by an opaque id stable for its lifetime.
type Stage interface {
	ID() uint16
	Name() string
}

// Provenance identifies where a channel originated. All four values are set
// once at construction and never mutated.
type Provenance struct {
	StageID   uint16 // owning stage
	SubStream uint16 // independent stream multiplexed under the stage
	Index     uint16 // position in the stage's declared output list
	TypeIndex uint16 // position among channels of the same shape
}

// Key returns the lookup key that binds an incoming packet to this
// descriptor.
func (p Provenance) Key() Key {
	return Key{StageID: p.StageID, SubStream: p.SubStream, TypeIndex: p.TypeIndex}
}

// Key is the registry lookup key: packets carry these three fields in their
// header, and the registry resolves them to the unique live descriptor.
type Key struct {
	StageID   uint16
	SubStream uint16
	TypeIndex uint16
}

// String renders the key in stage.substream.typeindex form for logs and
// error messages.
func (k Key) String() string {
	return fmt.Sprintf("%d.%d.%d", k.StageID, k.SubStream, k.TypeIndex)
}

// SourceRef points at one continuous channel feeding a spike channel.
type SourceRef struct {
	StageID   uint16
	SubStream uint16
	Index     uint16
}
