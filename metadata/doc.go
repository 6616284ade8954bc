// Package metadata implements the typed key/value metadata attached to
// channel descriptors and events.
//
// A descriptor declares an ordered schema of Fields; each event on that
// channel carries one Value per declared field, in order. The trailing
// section of a serialized packet is the concatenation of those value payloads
// with no framing: because the schema fixes every field's kind and length,
// both sides know the exact byte layout.
//
// Compatible() is the gate the codec applies in both directions. Producers
// validate attached values at event construction; consumers validate the
// parsed section after deserialization. A failed check drops the packet with
// errors.ErrMetadataIncompatible.
//
// Values own their payload bytes. Encoding is native-endian, matching the
// packet envelope.
package metadata
