//go:build !linux

package ipcwire

import "github.com/joeycumines/go-actorvm/coreerr"

// Conn stubs out the seqpacket transport on non-Linux builds, matching
// reactor's own Linux-only I/O scope (spec §9's unresolved FreeBSD
// question) — the Frame codec above is platform-independent and fully
// usable regardless.
type Conn struct{}

func NewConn(int) *Conn { return &Conn{} }

func SocketPair() (a, b *Conn, err error) { return nil, nil, coreerr.ErrUnsupported }

func (c *Conn) FD() int { return -1 }

func (c *Conn) Close() error { return coreerr.ErrUnsupported }

func (c *Conn) WriteFrame(*Frame) error { return coreerr.ErrUnsupported }

func (c *Conn) ReadFrame() (*Frame, error) { return nil, coreerr.ErrUnsupported }
