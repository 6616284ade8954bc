// Package metadata implements the typed key/value metadata attached to
// channel descriptors and events.
package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/neuroacq/sigstreams/errors"
)

// Kind identifies the element type of a metadata field.
type Kind uint8

const (
	// Char is a fixed-capacity character field, null padded.
	Char Kind = iota + 1
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
)

// Size returns the byte size of one element of this kind.
func (k Kind) Size() int {
	switch k {
	case Char, Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	default:
		return 0
	}
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Char:
		return "char"
	case Int8:
		return "int8"
	case UInt8:
		return "uint8"
	case Int16:
		return "int16"
	case UInt16:
		return "uint16"
	case Int32:
		return "int32"
	case UInt32:
		return "uint32"
	case Int64:
		return "int64"
	case UInt64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

func (k Kind) valid() bool {
	return k >= Char && k <= Float64
}

// Field declares one metadata entry: what it is called, what type it holds
// and how many elements. Descriptors declare ordered field schemas; events
// carry matching values.
type Field struct {
	Name        string
	Identifier  string // machine-readable id, dotted ("source.electrode.impedance")
	Description string
	Kind        Kind
	Length      int // element count; for Char the capacity in characters
}

// ByteSize returns the encoded size of a value of this field.
func (f Field) ByteSize() int {
	return f.Kind.Size() * f.Length
}

// Validate checks that the field declaration is usable.
func (f Field) Validate() error {
	if f.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Field", "Validate", "empty field name")
	}
	if !f.Kind.valid() {
		return errors.WrapInvalid(errors.ErrInvalidData, "Field", "Validate",
			fmt.Sprintf("field %q has unknown kind %d", f.Name, f.Kind))
	}
	if f.Length <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Field", "Validate",
			fmt.Sprintf("field %q has non-positive length %d", f.Name, f.Length))
	}
	return nil
}

// sameShape reports whether two fields agree on kind and length. Names and
// descriptions are presentation only and do not affect compatibility.
func (f Field) sameShape(o Field) bool {
	return f.Kind == o.Kind && f.Length == o.Length
}

// Value is one encoded metadata entry: a field plus an owned raw payload of
// exactly Field.ByteSize() bytes.
type Value struct {
	field Field
	data  []byte
}

// NewValue builds a value from raw bytes, copying them.
func NewValue(field Field, raw []byte) (Value, error) {
	if err := field.Validate(); err != nil {
		return Value{}, err
	}
	if len(raw) != field.ByteSize() {
		return Value{}, errors.WrapInvalid(errors.ErrInvalidData, "NewValue", "raw",
			fmt.Sprintf("field %q wants %d bytes, got %d", field.Name, field.ByteSize(), len(raw)))
	}
	data := make([]byte, len(raw))
	copy(data, raw)
	return Value{field: field, data: data}, nil
}

// Field returns the declaring field.
func (v Value) Field() Field {
	return v.field
}

// Bytes returns a copy of the encoded payload.
func (v Value) Bytes() []byte {
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out
}

// Equal reports whether two values agree on shape and payload bytes.
func (v Value) Equal(o Value) bool {
	return v.field.sameShape(o.field) && bytes.Equal(v.data, o.data)
}

// Text decodes a Char value, trimming the null padding.
func (v Value) Text() (string, error) {
	if v.field.Kind != Char {
		return "", errors.WrapInvalid(errors.ErrTypeMismatch, "Value", "Text",
			fmt.Sprintf("field %q is %s, not char", v.field.Name, v.field.Kind))
	}
	if i := bytes.IndexByte(v.data, 0); i >= 0 {
		return string(v.data[:i]), nil
	}
	return string(v.data), nil
}

// Element constrains the numeric element types a metadata field can hold.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// ValueOf encodes a typed slice as a value of the given field. The element
// type must match the field's declared kind and the slice length its declared
// element count.
func ValueOf[T Element](field Field, values []T) (Value, error) {
	if err := field.Validate(); err != nil {
		return Value{}, err
	}
	if len(values) != field.Length {
		return Value{}, errors.WrapInvalid(errors.ErrInvalidData, "ValueOf", "values",
			fmt.Sprintf("field %q wants %d elements, got %d", field.Name, field.Length, len(values)))
	}

	data := make([]byte, 0, field.ByteSize())
	var kind Kind
	switch vs := any(values).(type) {
	case []int8:
		kind = Int8
		for _, e := range vs {
			data = append(data, byte(e))
		}
	case []uint8:
		kind = UInt8
		data = append(data, vs...)
	case []int16:
		kind = Int16
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint16(data, uint16(e))
		}
	case []uint16:
		kind = UInt16
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint16(data, e)
		}
	case []int32:
		kind = Int32
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint32(data, uint32(e))
		}
	case []uint32:
		kind = UInt32
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint32(data, e)
		}
	case []int64:
		kind = Int64
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint64(data, uint64(e))
		}
	case []uint64:
		kind = UInt64
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint64(data, e)
		}
	case []float32:
		kind = Float32
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint32(data, math.Float32bits(e))
		}
	case []float64:
		kind = Float64
		for _, e := range vs {
			data = binary.NativeEndian.AppendUint64(data, math.Float64bits(e))
		}
	}

	if kind != field.Kind {
		return Value{}, errors.WrapInvalid(errors.ErrTypeMismatch, "ValueOf", "values",
			fmt.Sprintf("field %q declared %s, values are %s", field.Name, field.Kind, kind))
	}
	return Value{field: field, data: data}, nil
}

// StringValue encodes a string as a Char value, null padded to the field's
// declared capacity.
func StringValue(field Field, s string) (Value, error) {
	if err := field.Validate(); err != nil {
		return Value{}, err
	}
	if field.Kind != Char {
		return Value{}, errors.WrapInvalid(errors.ErrTypeMismatch, "StringValue", "field",
			fmt.Sprintf("field %q is %s, not char", field.Name, field.Kind))
	}
	if len(s) > field.Length {
		return Value{}, errors.WrapInvalid(errors.ErrInvalidData, "StringValue", "s",
			fmt.Sprintf("field %q capacity %d, string length %d", field.Name, field.Length, len(s)))
	}
	data := make([]byte, field.ByteSize())
	copy(data, s)
	return Value{field: field, data: data}, nil
}

// Decode decodes a value's payload into a typed slice. The requested element
// type must match the value's declared kind.
func Decode[T Element](v Value) ([]T, error) {
	out := make([]T, v.field.Length)
	var kind Kind
	switch vs := any(out).(type) {
	case []int8:
		kind = Int8
		for i := range vs {
			vs[i] = int8(v.data[i])
		}
	case []uint8:
		kind = UInt8
		copy(vs, v.data)
	case []int16:
		kind = Int16
		for i := range vs {
			vs[i] = int16(binary.NativeEndian.Uint16(v.data[i*2:]))
		}
	case []uint16:
		kind = UInt16
		for i := range vs {
			vs[i] = binary.NativeEndian.Uint16(v.data[i*2:])
		}
	case []int32:
		kind = Int32
		for i := range vs {
			vs[i] = int32(binary.NativeEndian.Uint32(v.data[i*4:]))
		}
	case []uint32:
		kind = UInt32
		for i := range vs {
			vs[i] = binary.NativeEndian.Uint32(v.data[i*4:])
		}
	case []int64:
		kind = Int64
		for i := range vs {
			vs[i] = int64(binary.NativeEndian.Uint64(v.data[i*8:]))
		}
	case []uint64:
		kind = UInt64
		for i := range vs {
			vs[i] = binary.NativeEndian.Uint64(v.data[i*8:])
		}
	case []float32:
		kind = Float32
		for i := range vs {
			vs[i] = math.Float32frombits(binary.NativeEndian.Uint32(v.data[i*4:]))
		}
	case []float64:
		kind = Float64
		for i := range vs {
			vs[i] = math.Float64frombits(binary.NativeEndian.Uint64(v.data[i*8:]))
		}
	}

	if kind != v.field.Kind {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Decode", "value",
			fmt.Sprintf("field %q declared %s, requested %s", v.field.Name, v.field.Kind, kind))
	}
	return out, nil
}

// Compatible checks a collection of values against a declared schema: every
// declared field must be matched, in order, by a value of the same kind and
// length. The error names the first field that fails.
func Compatible(schema []Field, values []Value) error {
	if len(values) != len(schema) {
		return fmt.Errorf("declared %d fields, got %d values: %w",
			len(schema), len(values), errors.ErrMetadataIncompatible)
	}
	for i, f := range schema {
		if !f.sameShape(values[i].field) {
			return fmt.Errorf("field %d (%q): declared %s[%d], got %s[%d]: %w",
				i, f.Name, f.Kind, f.Length,
				values[i].field.Kind, values[i].field.Length,
				errors.ErrMetadataIncompatible)
		}
	}
	return nil
}

// SchemaSize returns the total encoded size of the trailing section a schema
// mandates.
func SchemaSize(schema []Field) int {
	total := 0
	for _, f := range schema {
		total += f.ByteSize()
	}
	return total
}

// AppendValues appends the encoded trailing section: value payloads
// concatenated in order, no framing. Sizes are fixed by the schema, so the
// decoder needs no delimiters.
func AppendValues(dst []byte, values []Value) []byte {
	for _, v := range values {
		dst = append(dst, v.data...)
	}
	return dst
}

// ParseValues decodes a trailing section against a schema. The raw bytes
// must match the schema size exactly; payloads are copied out.
func ParseValues(schema []Field, raw []byte) ([]Value, error) {
	want := SchemaSize(schema)
	if len(raw) != want {
		return nil, fmt.Errorf("trailing section is %d bytes, schema wants %d: %w",
			len(raw), want, errors.ErrMetadataIncompatible)
	}
	values := make([]Value, 0, len(schema))
	off := 0
	for _, f := range schema {
		n := f.ByteSize()
		data := make([]byte, n)
		copy(data, raw[off:off+n])
		values = append(values, Value{field: f, data: data})
		off += n
	}
	return values, nil
}
