package ipcwire

import (
	"math"
	"sort"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// MemberCount is the compile-time bound on members per frame (spec §4.7:
// "N ≥ 3"). Chosen generously enough to carry a small request/reply
// struct's worth of named fields in one frame without spilling into a
// second.
const MemberCount = 8

const (
	keySlotSize    = 256
	valueSlotSize  = 256
	memberStride   = keySlotSize + valueSlotSize
	StringBufSize  = MemberCount * memberStride
	maxStringBytes = 255
)

// Kind discriminates a wire Value the way the frame's SNaN tag does.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindFD
	KindActorAddress
)

const (
	tagBoolTrue    uint64 = 1
	tagBoolFalse   uint64 = 2
	tagString      uint64 = 3
	tagFD          uint64 = 4
	tagActorAddr   uint64 = 5
	tagNil         uint64 = 6
)

const (
	exponentMask uint64 = 0x7FF0000000000000
	mantissaMask uint64 = 0x000FFFFFFFFFFFFF
	qnanBit      uint64 = 0x0008000000000000
)

// isSNaN applies spec §4.7's exact bit mask: exponent all-ones, non-zero
// mantissa, and the quiet-NaN bit clear.
func isSNaN(bits uint64) bool {
	return bits&exponentMask == exponentMask && bits&mantissaMask != 0 && bits&qnanBit == 0
}

// encodeTag packs tag and an auxiliary slot index (used by file_descriptor
// and actor_address to reference the frame's ancillary FD array) into a
// signaling-NaN bit pattern. aux must be small enough to leave the
// quiet-NaN bit (mantissa bit 51) clear — true for any realistic FD slot
// count.
func encodeTag(t uint64, aux uint32) uint64 {
	return exponentMask | t | (uint64(aux) << 8)
}

func decodeTag(bits uint64) (t uint64, aux uint32) {
	mantissa := bits & mantissaMask
	return mantissa & 0xFF, uint32(mantissa >> 8)
}

// Value is a single wire-level member: the flat, one-level subset of
// mailbox.Value the frame format can actually carry (spec §4.2's "the
// wire format in §6 imposes stricter limits" — no nested maps or
// sequences, only the six tagged kinds below per member).
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	// FD is a raw OS file descriptor (KindFD) or a seqpacket endpoint fd
	// (KindActorAddress) to be passed as SCM_RIGHTS ancillary data. It is
	// only meaningful when encoding; on decode, use Frame.FDs[aux] (the
	// codec does not dup or close descriptors itself).
	FD int
}

// Frame is the design's ipc_actor_message (spec §4.7).
type Frame struct {
	Members [MemberCount]uint64
	StrBuf  [StringBufSize]byte
	// FDs holds, in ancillary order, one fd per KindFD/KindActorAddress
	// member — populated by the caller before sending (Marshal only
	// records slot indices into Members) and by the transport after
	// receiving SCM_RIGHTS.
	FDs []int
}

func (f *Frame) keySlot(i int) []byte   { return f.StrBuf[i*memberStride : i*memberStride+keySlotSize] }
func (f *Frame) valueSlot(i int) []byte {
	return f.StrBuf[i*memberStride+keySlotSize : (i+1)*memberStride]
}

func writeSizedString(slot []byte, s string) error {
	if len(s) > maxStringBytes {
		return coreerr.ErrValueTooLarge
	}
	slot[0] = byte(len(s))
	copy(slot[1:], s)
	return nil
}

func readSizedString(slot []byte) string {
	n := int(slot[0])
	if n > maxStringBytes {
		n = maxStringBytes
	}
	return string(slot[1 : 1+n])
}

// encodeMember writes v's tag/double word into Members[i] and, for
// KindString, the value into the member's value string slot; for
// KindFD/KindActorAddress it appends to f.FDs and records the resulting
// index as the tag's aux field.
func (f *Frame) encodeMember(i int, v Value) error {
	switch v.Kind {
	case KindNil:
		f.Members[i] = encodeTag(tagNil, 0)
	case KindBool:
		if v.Bool {
			f.Members[i] = encodeTag(tagBoolTrue, 0)
		} else {
			f.Members[i] = encodeTag(tagBoolFalse, 0)
		}
	case KindNumber:
		if math.IsNaN(v.Number) {
			// A real NaN payload can never be distinguished from a tag
			// word, so it is rejected rather than silently reinterpreted.
			return coreerr.ErrInvalidArgument
		}
		f.Members[i] = math.Float64bits(v.Number)
	case KindString:
		if err := writeSizedString(f.valueSlot(i), v.Str); err != nil {
			return err
		}
		f.Members[i] = encodeTag(tagString, 0)
	case KindFD:
		aux := uint32(len(f.FDs))
		f.FDs = append(f.FDs, v.FD)
		f.Members[i] = encodeTag(tagFD, aux)
	case KindActorAddress:
		aux := uint32(len(f.FDs))
		f.FDs = append(f.FDs, v.FD)
		f.Members[i] = encodeTag(tagActorAddr, aux)
	default:
		return coreerr.ErrInvalidArgument
	}
	return nil
}

func (f *Frame) decodeMember(i int) (Value, error) {
	bits := f.Members[i]
	if !isSNaN(bits) {
		return Value{Kind: KindNumber, Number: math.Float64frombits(bits)}, nil
	}
	tag, aux := decodeTag(bits)
	switch tag {
	case tagNil:
		return Value{Kind: KindNil}, nil
	case tagBoolTrue:
		return Value{Kind: KindBool, Bool: true}, nil
	case tagBoolFalse:
		return Value{Kind: KindBool, Bool: false}, nil
	case tagString:
		return Value{Kind: KindString, Str: readSizedString(f.valueSlot(i))}, nil
	case tagFD:
		fd, err := f.fdAt(aux)
		return Value{Kind: KindFD, FD: fd}, err
	case tagActorAddr:
		fd, err := f.fdAt(aux)
		return Value{Kind: KindActorAddress, FD: fd}, err
	default:
		return Value{}, coreerr.ErrInvalidArgument
	}
}

func (f *Frame) fdAt(aux uint32) (int, error) {
	if int(aux) >= len(f.FDs) {
		return -1, coreerr.ErrInvalidArgument
	}
	return f.FDs[aux], nil
}

// MarshalFlat encodes a single non-composite value using the flat form:
// Members[0] is the nil marker and Members[1] carries v (spec §4.7).
func MarshalFlat(v Value) (*Frame, error) {
	f := &Frame{}
	if err := f.encodeMember(0, Value{Kind: KindNil}); err != nil {
		return nil, err
	}
	if err := f.encodeMember(1, v); err != nil {
		return nil, err
	}
	return f, nil
}

// IsFlat reports whether f encodes a flat (single-value) message.
func (f *Frame) IsFlat() bool {
	tag, _ := decodeTag(f.Members[0])
	return isSNaN(f.Members[0]) && tag == tagNil
}

// UnmarshalFlat decodes a flat frame's sole value.
func (f *Frame) UnmarshalFlat() (Value, error) { return f.decodeMember(1) }

// MarshalMap encodes entries as a string-keyed map frame (spec §4.7).
// len(entries) must not exceed MemberCount. A KindNil value destined for
// member 0 would be indistinguishable from the flat-form marker, so one
// entry is deliberately reordered into slot 0 whenever a non-nil entry is
// available; an all-nil map of more than zero entries cannot be
// represented and fails with unsupported.
func MarshalMap(entries map[string]Value) (*Frame, error) {
	if len(entries) > MemberCount {
		return nil, coreerr.ErrValueTooLarge
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 && entries[keys[0]].Kind == KindNil {
		swapped := false
		for i := 1; i < len(keys); i++ {
			if entries[keys[i]].Kind != KindNil {
				keys[0], keys[i] = keys[i], keys[0]
				swapped = true
				break
			}
		}
		if !swapped {
			return nil, coreerr.ErrUnsupported
		}
	}

	f := &Frame{}
	for i, k := range keys {
		if k == "" {
			return nil, coreerr.ErrInvalidArgument
		}
		if err := writeSizedString(f.keySlot(i), k); err != nil {
			return nil, err
		}
		if err := f.encodeMember(i, entries[k]); err != nil {
			return nil, err
		}
	}
	// Trailing unused members are explicitly nil-tagged with an empty key
	// slot, the terminator UnmarshalMap looks for — distinct from a real
	// entry's nil value, which always carries a non-empty key.
	for i := len(keys); i < MemberCount; i++ {
		if err := f.encodeMember(i, Value{Kind: KindNil}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// UnmarshalMap decodes a non-flat frame back into its string-keyed
// entries, stopping at the first nil-tagged member whose key slot is
// empty — the terminator MarshalMap writes into every trailing unused
// member. A real entry's nil value is never mistaken for the terminator
// because MarshalMap rejects empty-string keys.
func (f *Frame) UnmarshalMap() (map[string]Value, error) {
	out := make(map[string]Value, MemberCount)
	for i := 0; i < MemberCount; i++ {
		if tag, _ := decodeTag(f.Members[i]); isSNaN(f.Members[i]) && tag == tagNil && f.keySlot(i)[0] == 0 {
			break
		}
		key := readSizedString(f.keySlot(i))
		val, err := f.decodeMember(i)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}
