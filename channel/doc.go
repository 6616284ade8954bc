// Package channel defines the typed descriptors for every data channel a
// signal-processing pipeline can produce, and the registry consumers use to
// resolve incoming packets back to the descriptor they were produced under.
//
// # Overview
//
// An acquisition pipeline is a chain of stages. Each stage announces the
// channels it emits: continuous sampled signals, discrete event channels,
// spike channels cut from groups of continuous sources, and configuration
// channels that carry structured state. A descriptor is the contract for one
// such channel: where it came from, what shape its payloads take, and what
// trailing metadata each payload carries.
//
// The four shapes share one descriptor core (Info) by embedding rather than
// by inheritance, so every shape exposes the same identity and naming
// surface while adding only its own fields:
//
//   - Continuous: a sampled signal with a scale factor (bitVolts) and
//     enabled/monitored/recording flags
//   - Event: discrete payloads, either TTL word bitmasks, null-terminated
//     text, or fixed-width binary arrays
//   - Spike: waveform snippets cut across 1, 2, or 4 continuous source
//     channels
//   - Configuration: identity plus a recording flag, payloads opaque
//
// # Provenance and Keys
//
// Every descriptor is created with a Provenance: the owning stage id, the
// sub-stream it belongs to, its position in the stage's declared outputs
// (Index), and its position among channels of the same shape (TypeIndex).
// Provenance is set once at construction and never changes.
//
// Packets on the wire carry (StageID, SubStream, TypeIndex). Provenance.Key
// extracts exactly those three fields, and the Registry maps each Key to the
// unique live descriptor for that shape:
//
//	ch, err := NewEvent(TTL, 8, stage, 0, 0, 0)
//	if err != nil {
//		return err
//	}
//	if err := registry.AddEvent(ch); err != nil {
//		return err
//	}
//
//	// Later, resolving a packet header:
//	desc, err := registry.EventChannel(Key{StageID: 4, SubStream: 0, TypeIndex: 0})
//
// # Identity Snapshot
//
// Info captures the owning stage's display name once, at construction. The
// snapshot is deliberate: renaming a stage later does not retroactively
// change descriptors it already produced, so recordings keep the name that
// was current when the channel was announced. The numeric stage id remains
// the stable join key.
//
// As a descriptor passes through downstream stages, each stage appends its
// name to the descriptor's Chain, preserving the processing history in
// order.
//
// # Payload Sizing
//
// Event channels compute their per-payload size from kind and length. TTL
// channels pack one state bit per virtual channel into a fixed word of
// (channels+7)/8 bytes; their length equals that word size and SetLength is
// a no-op. Text channels reserve length+1 bytes for the mandatory null
// terminator. Binary array channels take length times the element width.
//
// Spike channels size their waveform from the electrode geometry: each of
// the electrode's source channels contributes PrePeakSamples+PostPeakSamples
// float32 samples.
//
// # Metadata Schemas
//
// Event and spike channels may declare a metadata schema, an ordered list of
// metadata.Field descriptors. Every payload on the channel then carries a
// trailing metadata section whose values must match the schema field by
// field. DeclareMetadata validates fields up front; MetadataSize reports the
// fixed byte size of the trailing section.
//
// # Thread Safety
//
// Descriptors are shared between the stage that announced them and every
// consumer that resolves packets against them. Mutable identity fields are
// guarded by an RWMutex, boolean flags use atomics, and provenance plus the
// stage-name snapshot are immutable after construction and read lock-free.
// All Registry operations are safe for concurrent use.
package channel
