//go:build linux

package ipcwire

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// maxAncillaryFDs bounds how many SCM_RIGHTS fds a single ReadFrame call
// will accept — generous relative to MemberCount, since at most one fd
// rides per tagged member.
const maxAncillaryFDs = MemberCount * 2

// Conn is a UNIX seqpacket actor channel endpoint (spec §4.7), grounded on
// the same golang.org/x/sys/unix primitives reactor's epoll/eventfd
// bindings already use for raw syscall access this core needs and the
// standard library's net package does not expose (net has no SOCK_SEQPACKET
// dial/listen support, and no SCM_RIGHTS access without dropping to
// syscall.RawConn, which is the same underlying layer).
type Conn struct {
	fd int
}

// NewConn wraps an already-connected AF_UNIX/SOCK_SEQPACKET file
// descriptor (as produced by socketpair during VM-pair setup, or accept on
// a listening actor-service socket).
func NewConn(fd int) *Conn { return &Conn{fd: fd} }

// SocketPair creates a connected pair of seqpacket endpoints, used to wire
// a freshly spawned subprocess actor's channel before fork (spec §4.5).
func SocketPair() (a, b *Conn, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, coreerr.Wrap(coreerr.Unsupported, err)
	}
	return &Conn{fd: fds[0]}, &Conn{fd: fds[1]}, nil
}

// FD returns the raw descriptor, e.g. for dup2'ing into a child's fd table.
func (c *Conn) FD() int { return c.fd }

// Close closes the underlying descriptor.
func (c *Conn) Close() error { return unix.Close(c.fd) }

// WriteFrame sends f as one seqpacket datagram: the member words and
// string buffer as the primary payload, any FDs as SCM_RIGHTS ancillary
// data (spec §4.7).
func (c *Conn) WriteFrame(f *Frame) error {
	buf := make([]byte, 0, len(f.Members)*8+len(f.StrBuf))
	var word [8]byte
	for _, m := range f.Members {
		binary.NativeEndian.PutUint64(word[:], m)
		buf = append(buf, word[:]...)
	}
	buf = append(buf, f.StrBuf[:]...)

	var oob []byte
	if len(f.FDs) > 0 {
		oob = unix.UnixRights(f.FDs...)
	}
	return unix.Sendmsg(c.fd, buf, oob, nil, 0)
}

// ReadFrame receives one seqpacket datagram and decodes it back into a
// Frame, including any SCM_RIGHTS fds into Frame.FDs.
func (c *Conn) ReadFrame() (*Frame, error) {
	f := &Frame{}
	wantBytes := len(f.Members)*8 + len(f.StrBuf)
	buf := make([]byte, wantBytes)
	oob := make([]byte, unix.CmsgSpace(maxAncillaryFDs*4))

	n, oobn, _, _, err := unix.Recvmsg(c.fd, buf, oob, 0)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Unsupported, err)
	}
	if n != wantBytes {
		return nil, coreerr.ErrInvalidArgument
	}

	for i := range f.Members {
		f.Members[i] = binary.NativeEndian.Uint64(buf[i*8 : i*8+8])
	}
	copy(f.StrBuf[:], buf[len(f.Members)*8:])

	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Unsupported, err)
		}
		for _, cmsg := range cmsgs {
			fds, err := unix.ParseUnixRights(&cmsg)
			if err != nil {
				continue
			}
			f.FDs = append(f.FDs, fds...)
		}
	}

	return f, nil
}
