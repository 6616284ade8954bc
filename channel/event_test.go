package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

func TestNewEventValidation(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}

	_, err := NewEvent(PayloadKind(99), 1, stage, 0, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
	assert.True(t, errors.IsFatal(err))

	_, err = NewEvent(TTL, 0, stage, 0, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
}

func TestEventTTLSizing(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}

	tests := []struct {
		name     string
		channels int
		wantSize int
	}{
		{"one line", 1, 1},
		{"full byte", 8, 1},
		{"spills into second byte", 9, 2},
		{"ten lines", 10, 2},
		{"four bytes", 32, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := NewEvent(TTL, tt.channels, stage, 0, 0, 0)
			require.NoError(t, err)

			assert.Equal(t, tt.wantSize, ch.DataSize())
			assert.Equal(t, tt.wantSize, ch.Length())
		})
	}
}

func TestEventTTLLengthFixed(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(TTL, 10, stage, 0, 0, 0)
	require.NoError(t, err)

	ch.SetLength(5)

	assert.Equal(t, 2, ch.Length())
	assert.Equal(t, 2, ch.DataSize())
}

func TestEventArraySizing(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(Int16Array, 3, stage, 0, 0, 0)
	require.NoError(t, err)

	// One element until a length is declared.
	assert.Equal(t, 1, ch.Length())
	assert.Equal(t, 2, ch.DataSize())

	ch.SetLength(10)
	assert.Equal(t, 10, ch.Length())
	assert.Equal(t, 20, ch.DataSize())
	assert.Equal(t, 3, ch.Channels())
}

func TestEventArrayElementWidths(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}

	tests := []struct {
		kind     PayloadKind
		length   int
		wantSize int
	}{
		{Int8Array, 10, 10},
		{UInt8Array, 4, 4},
		{UInt16Array, 4, 8},
		{Int32Array, 4, 16},
		{UInt32Array, 2, 8},
		{Int64Array, 3, 24},
		{UInt64Array, 1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			ch, err := NewEvent(tt.kind, 1, stage, 0, 0, 0)
			require.NoError(t, err)

			ch.SetLength(tt.length)
			assert.Equal(t, tt.wantSize, ch.DataSize())
		})
	}
}

func TestEventTextTerminator(t *testing.T) {
	stage := &testStage{id: 1, name: "annotator"}
	ch, err := NewEvent(Text, 1, stage, 0, 0, 0)
	require.NoError(t, err)

	ch.SetLength(12)

	assert.Equal(t, 12, ch.Length())
	assert.Equal(t, 13, ch.DataSize())
}

func TestEventSetLengthClampsNegative(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(Int32Array, 1, stage, 0, 0, 0)
	require.NoError(t, err)

	ch.SetLength(-4)

	assert.Equal(t, 0, ch.Length())
	assert.Equal(t, 0, ch.DataSize())
}

func TestEventRecordingFlag(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(TTL, 8, stage, 0, 0, 0)
	require.NoError(t, err)

	assert.False(t, ch.Recording())
	ch.SetRecording(true)
	assert.True(t, ch.Recording())
}

func TestEventDeclareMetadata(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(TTL, 8, stage, 0, 0, 0)
	require.NoError(t, err)

	err = ch.DeclareMetadata(
		metadata.Field{Name: "source word", Identifier: "ttl.word", Kind: metadata.UInt64, Length: 1},
		metadata.Field{Name: "line", Identifier: "ttl.line", Kind: metadata.UInt16, Length: 1},
	)
	require.NoError(t, err)

	schema := ch.MetadataSchema()
	require.Len(t, schema, 2)
	assert.Equal(t, "ttl.word", schema[0].Identifier)
	assert.Equal(t, 10, ch.MetadataSize())
}

func TestEventDeclareMetadataRejectsInvalidField(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(TTL, 8, stage, 0, 0, 0)
	require.NoError(t, err)

	err = ch.DeclareMetadata(metadata.Field{Name: "broken", Kind: metadata.Kind(200), Length: 1})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestEventMetadataSchemaCopy(t *testing.T) {
	stage := &testStage{id: 1, name: "detector"}
	ch, err := NewEvent(TTL, 8, stage, 0, 0, 0)
	require.NoError(t, err)

	require.NoError(t, ch.DeclareMetadata(
		metadata.Field{Name: "line", Identifier: "ttl.line", Kind: metadata.UInt16, Length: 1},
	))

	schema := ch.MetadataSchema()
	schema[0].Identifier = "mutated"

	assert.Equal(t, "ttl.line", ch.MetadataSchema()[0].Identifier)
}

func TestPayloadKindProperties(t *testing.T) {
	assert.True(t, Int16Array.IsArray())
	assert.True(t, UInt64Array.IsArray())
	assert.False(t, TTL.IsArray())
	assert.False(t, Text.IsArray())

	assert.True(t, TTL.Valid())
	assert.True(t, UInt64Array.Valid())
	assert.False(t, PayloadKind(0).Valid())
	assert.False(t, PayloadKind(11).Valid())

	assert.Equal(t, 2, Int16Array.ElementSize())
	assert.Equal(t, 8, UInt64Array.ElementSize())
	assert.Equal(t, 0, PayloadKind(0).ElementSize())
}
