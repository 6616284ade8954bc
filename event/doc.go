// Package event implements the binary packet codec for discrete pipeline
// events: system notifications, stage-produced events and spike waveforms.
//
// # Overview
//
// Event values form a closed set behind the Event interface. Each value is
// constructed once, owns deep copies of its payload, and is never mutated or
// shared across goroutines afterwards. Serialize writes the value into a
// caller-supplied buffer; Deserialize reconstructs the typed value from raw
// bytes, resolving stage and spike packets against a Resolver (normally a
// *channel.Registry).
//
// The codec never blocks and performs no I/O. Both directions are pure
// bounded-time transforms, sized exactly by the bound descriptor.
//
// # Wire Format
//
// All integers are fixed-width native-endian. Fields a kind does not need
// are omitted entirely, not zero filled:
//
//	base kind         1 byte   0 system, 1 stage-produced, 2 spike
//	payload sub-kind  1 byte   SystemKind / PayloadKind / ElectrodeKind
//	stage id          2 bytes
//	sub-stream        2 bytes
//	type index        2 bytes  stage and spike packets only
//	selector          2 bytes  stage and spike packets only; spike: unit
//	timestamp         8 bytes  omitted for timestamp-less system sub-kinds
//	payload           variable
//	metadata section  variable trailing, sized by the descriptor schema
//
// Stage and spike headers are therefore always 18 bytes. System headers
// are 6 bytes followed by the sub-kind's body: an 8-byte tick for
// SystemTimestamp, a 4-byte sample count for SystemBufferSize, opaque bytes
// for SystemParameterChange.
//
// Payload shapes: TTL is the channel's fixed bitmask word; text is the
// declared length plus a null terminator, zero padded; numeric arrays are
// contiguous native-endian elements; spike is a 4-byte float threshold
// followed by pre+post float32 samples per source channel.
//
// # Decoding Contract
//
// Deserialize validates before constructing. Unresolvable provenance yields
// ErrChannelNotFound, a sub-kind byte disagreeing with the resolved
// descriptor yields ErrTypeMismatch, a malformed trailing section yields
// ErrMetadataIncompatible, and truncated or oversized packets yield
// invalid-data errors. All of these are Invalid-class: the packet is
// dropped and processing continues.
//
//	evt, err := event.Deserialize(raw, registry)
//	if err != nil {
//		metrics.PacketsDropped.WithLabelValues(dropReason(err)).Inc()
//		return
//	}
//	switch e := evt.(type) {
//	case *event.TTL:
//		log.Info("line toggled", "line", e.Line(), "state", e.State())
//	case *event.Spike:
//		log.Info("spike", "unit", e.Unit())
//	}
//
// # Metadata
//
// Channels may declare a metadata schema. Events on such channels must
// attach matching values with WithMetadata at construction; the values ride
// in the trailing section, concatenated in schema order with no framing,
// and reappear on the decoded value.
package event
