package cred

import (
	"bytes"
	"encoding/binary"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// requestWireSize is the encoded size of StartVMRequest: it is a fixed
// control struct exchanged once per privileged operation rather than a
// high-frequency actor mailbox message, so it gets its own compact
// encoding instead of being shoehorned into ipcwire.Frame's tagged,
// N-member-bounded map format (see DESIGN.md).
const requestWireSize = 1 + 4 + 3*1 + 2 + 4*3 + 4*3 + 4 + 4 + 4 + 4 + 8 + 4 + 8

// encodeRequest serializes req using the host's native byte order, the
// same convention ipcwire's frame codec uses for the same reason: both
// ends of this connection always run on the same machine.
func encodeRequest(req StartVMRequest) []byte {
	buf := make([]byte, 0, requestWireSize)
	b := bytes.NewBuffer(buf)

	put8 := func(v uint8) { b.WriteByte(v) }
	putBool := func(v bool) {
		if v {
			b.WriteByte(1)
		} else {
			b.WriteByte(0)
		}
	}
	put32 := func(v int32) { _ = binary.Write(b, binary.NativeEndian, v) }
	putU32 := func(v uint32) { _ = binary.Write(b, binary.NativeEndian, v) }
	put64 := func(v int64) { _ = binary.Write(b, binary.NativeEndian, v) }

	put8(uint8(req.Action))
	put32(req.CloneFlags)
	put8(uint8(req.StdinAction))
	put8(uint8(req.StdoutAction))
	put8(uint8(req.StderrAction))
	putBool(req.StderrHasColor)
	putBool(req.HasLuaHook)
	for _, v := range req.ResUID {
		put32(v)
	}
	for _, v := range req.ResGID {
		put32(v)
	}
	put32(req.SetGroupsCount)
	put32(req.CapValue)
	put32(req.CapFlagValue)
	putU32(req.SecBits)
	put64(req.ChdirPayloadSize)
	putU32(req.UmaskMask)
	put64(req.PayloadSize)

	return b.Bytes()
}

// decodeRequest is encodeRequest's inverse.
func decodeRequest(data []byte) (StartVMRequest, error) {
	if len(data) != requestWireSize {
		return StartVMRequest{}, coreerr.NewArg(coreerr.InvalidArgument, "size")
	}
	r := bytes.NewReader(data)
	var req StartVMRequest

	get8 := func() uint8 {
		v, _ := r.ReadByte()
		return v
	}
	getBool := func() bool { return get8() != 0 }
	get32 := func() int32 {
		var v int32
		_ = binary.Read(r, binary.NativeEndian, &v)
		return v
	}
	getU32 := func() uint32 {
		var v uint32
		_ = binary.Read(r, binary.NativeEndian, &v)
		return v
	}
	get64 := func() int64 {
		var v int64
		_ = binary.Read(r, binary.NativeEndian, &v)
		return v
	}

	req.Action = Action(get8())
	req.CloneFlags = get32()
	req.StdinAction = StreamAction(get8())
	req.StdoutAction = StreamAction(get8())
	req.StderrAction = StreamAction(get8())
	req.StderrHasColor = getBool()
	req.HasLuaHook = getBool()
	for i := range req.ResUID {
		req.ResUID[i] = get32()
	}
	for i := range req.ResGID {
		req.ResGID[i] = get32()
	}
	req.SetGroupsCount = get32()
	req.CapValue = get32()
	req.CapFlagValue = get32()
	req.SecBits = getU32()
	req.ChdirPayloadSize = get64()
	req.UmaskMask = getU32()
	req.PayloadSize = get64()

	if r.Len() != 0 {
		return StartVMRequest{}, coreerr.NewArg(coreerr.InvalidArgument, "trailing_bytes")
	}
	return req, nil
}
