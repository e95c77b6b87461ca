//go:build linux

package cred

import (
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// maxAncillaryFDs bounds the SCM_RIGHTS control message: at most the
// reply pipe's write end plus one payload memfd ride any single request.
const maxAncillaryFDs = 2

// sendRequest writes req's fixed encoding as the message body and
// attaches replyPipeWriteFD (always) and payloadFD (when >= 0) as
// SCM_RIGHTS ancillary data, the same technique ipcwire's seqpacket
// transport uses for file-descriptor-carrying frames.
func sendRequest(connFD int, req StartVMRequest, replyPipeWriteFD, payloadFD int) error {
	fds := []int{replyPipeWriteFD}
	if payloadFD >= 0 {
		fds = append(fds, payloadFD)
	}
	oob := unix.UnixRights(fds...)
	if err := unix.Sendmsg(connFD, encodeRequest(req), oob, nil, 0); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	return nil
}

// recvRequest is sendRequest's inverse on the actor-service side. It
// always expects at least the reply pipe's write end; payloadFD is -1
// when the request carried no memfd.
func recvRequest(connFD int) (req StartVMRequest, replyPipeWriteFD, payloadFD int, err error) {
	payloadFD = -1

	body := make([]byte, requestWireSize)
	oob := make([]byte, unix.CmsgSpace(maxAncillaryFDs*4))

	n, oobn, _, _, rerr := unix.Recvmsg(connFD, body, oob, 0)
	if rerr != nil {
		return StartVMRequest{}, -1, -1, coreerr.Wrap(coreerr.Unsupported, rerr)
	}
	if n != requestWireSize {
		return StartVMRequest{}, -1, -1, coreerr.NewArg(coreerr.InvalidArgument, "size")
	}

	req, err = decodeRequest(body[:n])
	if err != nil {
		return StartVMRequest{}, -1, -1, err
	}

	if oobn > 0 {
		cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn])
		if perr != nil {
			return StartVMRequest{}, -1, -1, coreerr.Wrap(coreerr.Unsupported, perr)
		}
		var fds []int
		for _, c := range cmsgs {
			parsed, perr := unix.ParseUnixRights(&c)
			if perr != nil {
				continue
			}
			fds = append(fds, parsed...)
		}
		if len(fds) == 0 {
			return StartVMRequest{}, -1, -1, coreerr.NewArg(coreerr.InvalidArgument, "reply_pipe")
		}
		replyPipeWriteFD = fds[0]
		if len(fds) > 1 {
			payloadFD = fds[1]
		}
	} else {
		return StartVMRequest{}, -1, -1, coreerr.NewArg(coreerr.InvalidArgument, "reply_pipe")
	}

	return req, replyPipeWriteFD, payloadFD, nil
}

// createPayloadFD stores payload in an anonymous memfd (spec §4.8's "an
// anonymous memfd containing the serialized value") and returns it
// rewound to offset 0 for reading (no memfd seals are applied), or -1 if
// payload is empty.
func createPayloadFD(payload []byte) (int, error) {
	if len(payload) == 0 {
		return -1, nil
	}
	fd, err := unix.MemfdCreate("cred-payload", 0)
	if err != nil {
		return -1, coreerr.Wrap(coreerr.Unsupported, err)
	}
	if _, err := unix.Write(fd, payload); err != nil {
		_ = unix.Close(fd)
		return -1, coreerr.Wrap(coreerr.Unsupported, err)
	}
	if _, err := unix.Seek(fd, 0, unix.SEEK_SET); err != nil {
		_ = unix.Close(fd)
		return -1, coreerr.Wrap(coreerr.Unsupported, err)
	}
	return fd, nil
}

// readPayloadFD reads back a memfd created by createPayloadFD, given the
// expected size carried in the request itself.
func readPayloadFD(fd int, size int64) ([]byte, error) {
	if fd < 0 || size <= 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	if _, err := unix.Read(fd, buf); err != nil {
		return nil, coreerr.Wrap(coreerr.Unsupported, err)
	}
	return buf, nil
}
