package channel

// SignalKind classifies a continuous-signal channel.
type SignalKind uint8

const (
	// SignalHeadstage carries neural data from an amplifier headstage.
	SignalHeadstage SignalKind = iota
	// SignalAux carries auxiliary sensor data (accelerometers and similar).
	SignalAux
	// SignalADC carries general-purpose analog inputs.
	SignalADC
)

// String returns the lowercase name of the signal kind.
func (k SignalKind) String() string {
	switch k {
	case SignalHeadstage:
		return "headstage"
	case SignalAux:
		return "aux"
	case SignalADC:
		return "adc"
	default:
		return "unknown"
	}
}

// PayloadKind classifies an event channel's payload. The value doubles as
// the packet sub-kind byte for stage-produced events.
type PayloadKind uint8

const (
	// TTL is a boolean-line-array payload: one bit per declared channel,
	// current state of every line.
	TTL PayloadKind = iota + 1
	// Text is a free-text payload with a mandatory null terminator.
	Text
	Int8Array
	UInt8Array
	Int16Array
	UInt16Array
	Int32Array
	UInt32Array
	Int64Array
	UInt64Array
)

// ElementSize returns the byte size of one payload element.
func (k PayloadKind) ElementSize() int {
	switch k {
	case TTL, Text, Int8Array, UInt8Array:
		return 1
	case Int16Array, UInt16Array:
		return 2
	case Int32Array, UInt32Array:
		return 4
	case Int64Array, UInt64Array:
		return 8
	default:
		return 0
	}
}

// IsArray reports whether the kind is one of the fixed-width numeric array
// kinds.
func (k PayloadKind) IsArray() bool {
	return k >= Int8Array && k <= UInt64Array
}

// Valid reports whether the kind is a member of the closed set.
func (k PayloadKind) Valid() bool {
	return k >= TTL && k <= UInt64Array
}

// String returns the lowercase name of the payload kind.
func (k PayloadKind) String() string {
	switch k {
	case TTL:
		return "ttl"
	case Text:
		return "text"
	case Int8Array:
		return "int8"
	case UInt8Array:
		return "uint8"
	case Int16Array:
		return "int16"
	case UInt16Array:
		return "uint16"
	case Int32Array:
		return "int32"
	case UInt32Array:
		return "uint32"
	case Int64Array:
		return "int64"
	case UInt64Array:
		return "uint64"
	default:
		return "unknown"
	}
}

// ElectrodeKind classifies a spike channel's electrode and fixes its source
// channel count. The value doubles as the packet sub-kind byte for spike
// events.
type ElectrodeKind uint8

const (
	SingleElectrode ElectrodeKind = iota + 1
	Stereotrode
	Tetrode
)

// ChannelCount returns the number of source channels the electrode kind
// mandates, or 0 for an unknown kind.
func (e ElectrodeKind) ChannelCount() int {
	switch e {
	case SingleElectrode:
		return 1
	case Stereotrode:
		return 2
	case Tetrode:
		return 4
	default:
		return 0
	}
}

// Valid reports whether the kind is a member of the closed set.
func (e ElectrodeKind) Valid() bool {
	return e >= SingleElectrode && e <= Tetrode
}

// String returns the lowercase name of the electrode kind.
func (e ElectrodeKind) String() string {
	switch e {
	case SingleElectrode:
		return "single"
	case Stereotrode:
		return "stereotrode"
	case Tetrode:
		return "tetrode"
	default:
		return "unknown"
	}
}
