package cred

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// Propagate sends req to the actor service over connFD and blocks for
// its one-byte reply (spec §4.8). The caller is responsible for applying
// the same change locally *before* calling Propagate — the host applies
// the change locally first, then tells the sidecar, per the original's
// ordering. If the service's reply is EOF or an error, the two processes'
// credentials can no longer be reconciled and this function terminates
// the current process outright rather than returning an error a caller
// might be tempted to recover from.
func Propagate(connFD int, req StartVMRequest, payload []byte) error {
	r, w, err := os.Pipe()
	if err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	defer r.Close()

	payloadFD, err := createPayloadFD(payload)
	if err != nil {
		_ = w.Close()
		return err
	}
	if payloadFD >= 0 {
		req.PayloadSize = int64(len(payload))
	}

	sendErr := sendRequest(connFD, req, int(w.Fd()), payloadFD)
	_ = w.Close()
	if payloadFD >= 0 {
		_ = unix.Close(payloadFD)
	}
	if sendErr != nil {
		return sendErr
	}

	var b [1]byte
	n, readErr := r.Read(b[:])
	if readErr != nil || n != 1 {
		selfKill()
		// unreachable in practice: selfKill terminates the process. The
		// return exists so this still typechecks as a normal function for
		// callers exercising Propagate's logic without a real SIGKILL,
		// e.g. in tests that stub selfKill.
		return coreerr.New(coreerr.Unsupported)
	}
	return nil
}

// selfKill is overridable so tests can observe the "must terminate"
// decision without actually killing the test binary.
var selfKill = func() { _ = unix.Kill(os.Getpid(), unix.SIGKILL) }
