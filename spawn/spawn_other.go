//go:build !linux

package spawn

import (
	"github.com/joeycumines/go-actorvm/coreerr"
	"github.com/joeycumines/go-actorvm/reactor"
)

// Spawn is unsupported outside Linux: pidfd-based reaping (spec §4.5's
// parent side) has no FreeBSD procdesc equivalent wired up here, matching
// the Linux-only scope reactor's poller and ipcwire's seqpacket transport
// already carry.
func Spawn(*reactor.Loop, Config) (*Handle, error) { return nil, coreerr.ErrUnsupported }

// ReexecInit is a no-op outside Linux: there is no re-exec pre-exec
// helper to dispatch to, since Spawn itself is unsupported here.
func ReexecInit() {}

func procReap(int) (code, sig int, hasSig bool, err error) { return 0, 0, false, coreerr.ErrUnsupported }

func procKill(int, int) error { return coreerr.ErrUnsupported }

func procCloseFD(int) error { return coreerr.ErrUnsupported }
