package cred

import (
	"os"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// ServeOnce receives one StartVMRequest over connFD, applies it, and
// writes the single-byte success reply (or closes the pipe on failure,
// which the host observes as EOF per spec §4.8). It is meant to be
// called in a loop by the actor-service process, one iteration per
// privileged operation the master VM delegates.
//
// ActionCreateProcess is accepted on the wire but not carried out here:
// the original's struct reuses this same request shape to ask the
// (typically more-privileged) actor-service process to fork a new actor
// VM host of its own, which is a process-topology concern distinct from
// the credential-mutation subset this package exists to keep atomic
// across two processes. Actual subprocess creation is the `spawn`
// package's responsibility; ServeOnce reports ActionCreateProcess as
// unsupported rather than silently no-op'ing.
func ServeOnce(connFD int) error {
	req, replyPipeWriteFD, payloadFD, err := recvRequest(connFD)
	if err != nil {
		return err
	}
	w := os.NewFile(uintptr(replyPipeWriteFD), "reply")
	defer w.Close()
	if payloadFD >= 0 {
		defer closePayloadFD(payloadFD)
	}

	applyErr := apply(req, payloadFD)
	if applyErr != nil {
		// Closing without writing signals failure; the host reads EOF
		// and self-terminates (spec §4.8).
		return applyErr
	}
	_, werr := w.Write([]byte{1})
	return werr
}

func apply(req StartVMRequest, payloadFD int) error {
	switch req.Action {
	case ActionSetResUID:
		return applySetResUID(req.ResUID)
	case ActionSetResGID:
		return applySetResGID(req.ResGID)
	case ActionSetGroups:
		payload, err := readPayloadFD(payloadFD, req.PayloadSize)
		if err != nil {
			return err
		}
		return applySetGroups(payload)
	case ActionCapSetProc:
		payload, err := readPayloadFD(payloadFD, req.PayloadSize)
		if err != nil {
			return err
		}
		return applyCapSetProc(payload)
	case ActionCapDropBound:
		return applyCapDropBound(req.CapValue)
	case ActionCapSetAmbient:
		return applyCapSetAmbient(req.CapValue, req.CapFlagValue)
	case ActionCapResetAmbient:
		return applyCapResetAmbient()
	case ActionCapSetSecbits:
		return applyCapSetSecbits(req.SecBits)
	case ActionChdir:
		payload, err := readPayloadFD(payloadFD, req.ChdirPayloadSize)
		if err != nil {
			return err
		}
		return os.Chdir(string(payload))
	case ActionUmask:
		applyUmask(req.UmaskMask)
		return nil
	case ActionCreateProcess:
		return coreerr.ErrUnsupported
	default:
		return coreerr.NewArg(coreerr.InvalidArgument, "action")
	}
}
