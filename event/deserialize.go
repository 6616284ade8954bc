package event

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/errors"
	"github.com/neuroacq/sigstreams/metadata"
)

// Deserialize decodes one packet into its typed event value. System packets
// decode standalone; stage and spike packets resolve their descriptor
// through res. The returned value owns copies of its payload bytes, so the
// input buffer may be reused immediately.
//
// No partially constructed value is ever returned: any header, payload or
// metadata problem yields a nil event and a classified error.
func Deserialize(raw []byte, res Resolver) (Event, error) {
	if len(raw) < 2 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("packet truncated at %d bytes", len(raw)))
	}

	switch Type(raw[0]) {
	case TypeSystem:
		return deserializeSystem(raw)
	case TypeStage:
		return deserializeStage(raw, res)
	case TypeSpike:
		return deserializeSpike(raw, res)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("unknown base kind %d", raw[0]))
	}
}

func deserializeSystem(raw []byte) (Event, error) {
	if len(raw) < systemHeaderSize {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("system packet truncated at %d bytes", len(raw)))
	}
	kind := SystemKind(raw[1])
	stageID := binary.NativeEndian.Uint16(raw[2:])
	subStream := binary.NativeEndian.Uint16(raw[4:])
	body := raw[systemHeaderSize:]

	switch kind {
	case SystemTimestamp:
		if len(body) != 8 {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
				fmt.Sprintf("timestamp packet body is %d bytes, want 8", len(body)))
		}
		return NewTimestampEvent(stageID, subStream, binary.NativeEndian.Uint64(body)), nil
	case SystemBufferSize:
		if len(body) != 4 {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
				fmt.Sprintf("buffer-size packet body is %d bytes, want 4", len(body)))
		}
		return NewBufferSizeEvent(stageID, subStream, binary.NativeEndian.Uint32(body)), nil
	case SystemParameterChange:
		return NewParameterChangeEvent(stageID, subStream, body), nil
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("unknown system sub-kind %d", raw[1]))
	}
}

func deserializeStage(raw []byte, res Resolver) (Event, error) {
	if len(raw) < stageHeaderSize {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("stage packet truncated at %d bytes", len(raw)))
	}

	key := channel.Key{
		StageID:   binary.NativeEndian.Uint16(raw[2:]),
		SubStream: binary.NativeEndian.Uint16(raw[4:]),
		TypeIndex: binary.NativeEndian.Uint16(raw[6:]),
	}
	selector := binary.NativeEndian.Uint16(raw[8:])
	timestamp := binary.NativeEndian.Uint64(raw[10:])

	info, err := res.EventChannel(key)
	if err != nil {
		return nil, errors.Wrap(err, "Codec", "Deserialize", "resolve event channel")
	}
	if kind := channel.PayloadKind(raw[1]); kind != info.Kind() {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Codec", "Deserialize",
			fmt.Sprintf("packet says %s, channel %s declares %s", kind, key, info.Kind()))
	}

	payloadSize := info.DataSize()
	want := stageHeaderSize + payloadSize + info.MetadataSize()
	if len(raw) != want {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("stage packet is %d bytes, channel %s wants %d", len(raw), key, want))
	}
	payload := raw[stageHeaderSize : stageHeaderSize+payloadSize]

	meta, err := metadata.ParseValues(info.MetadataSchema(), raw[stageHeaderSize+payloadSize:])
	if err != nil {
		return nil, errors.Wrap(err, "Codec", "Deserialize", "parse metadata section")
	}

	switch info.Kind() {
	case channel.TTL:
		return NewTTL(info, timestamp, selector, payload, WithMetadata(meta...))
	case channel.Text:
		term := bytes.IndexByte(payload, 0)
		if term < 0 {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
				fmt.Sprintf("text payload on channel %s missing null terminator", key))
		}
		return NewText(info, timestamp, selector, string(payload[:term]), WithMetadata(meta...))
	default:
		return NewBinary(info, timestamp, selector, payload, WithMetadata(meta...))
	}
}

func deserializeSpike(raw []byte, res Resolver) (Event, error) {
	if len(raw) < stageHeaderSize {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("spike packet truncated at %d bytes", len(raw)))
	}

	key := channel.Key{
		StageID:   binary.NativeEndian.Uint16(raw[2:]),
		SubStream: binary.NativeEndian.Uint16(raw[4:]),
		TypeIndex: binary.NativeEndian.Uint16(raw[6:]),
	}
	unit := binary.NativeEndian.Uint16(raw[8:])
	timestamp := binary.NativeEndian.Uint64(raw[10:])

	info, err := res.SpikeChannel(key)
	if err != nil {
		return nil, errors.Wrap(err, "Codec", "Deserialize", "resolve spike channel")
	}
	if electrode := channel.ElectrodeKind(raw[1]); electrode != info.Electrode() {
		return nil, errors.WrapInvalid(errors.ErrTypeMismatch, "Codec", "Deserialize",
			fmt.Sprintf("packet says %s, channel %s declares %s", electrode, key, info.Electrode()))
	}

	channels := info.ChannelCount()
	total := info.TotalSamples()
	payloadSize := 4 + channels*total*4
	want := stageHeaderSize + payloadSize + info.MetadataSize()
	if len(raw) != want {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Codec", "Deserialize",
			fmt.Sprintf("spike packet is %d bytes, channel %s wants %d", len(raw), key, want))
	}

	threshold := math.Float32frombits(binary.NativeEndian.Uint32(raw[stageHeaderSize:]))
	waveform := make([][]float32, channels)
	off := stageHeaderSize + 4
	for i := range waveform {
		row := make([]float32, total)
		for j := range row {
			row[j] = math.Float32frombits(binary.NativeEndian.Uint32(raw[off:]))
			off += 4
		}
		waveform[i] = row
	}

	meta, err := metadata.ParseValues(info.MetadataSchema(), raw[off:])
	if err != nil {
		return nil, errors.Wrap(err, "Codec", "Deserialize", "parse metadata section")
	}

	return NewSpike(info, timestamp, threshold, waveform, WithUnit(unit), WithMetadata(meta...))
}
