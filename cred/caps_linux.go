//go:build linux

package cred

import (
	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// applyCapSetProc mirrors Linux cap_set_proc: it replaces the calling
// process's effective/permitted/inheritable sets from the serialized
// cap_user_data_t payload the host captured locally before sending this
// request, so both sides end up with byte-identical capability state.
func applyCapSetProc(payload []byte) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	if err := caps.Load(); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	if err := loadRawCapData(caps, payload); err != nil {
		return err
	}
	if err := caps.Apply(capability.CAPS); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	return nil
}

// applyCapDropBound drops capValue from the bounding set via
// prctl(PR_CAPBSET_DROP), matching cap_drop_bound's single-capability
// contract (spec §4.8).
func applyCapDropBound(capValue int32) error {
	if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(capValue), 0, 0, 0); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	return nil
}

// applyCapSetAmbient raises or lowers one ambient capability bit
// (PR_CAP_AMBIENT, flagValue selecting RAISE vs LOWER).
func applyCapSetAmbient(capValue, flagValue int32) error {
	op := uintptr(unix.PR_CAP_AMBIENT_RAISE)
	if flagValue == 0 {
		op = unix.PR_CAP_AMBIENT_LOWER
	}
	if err := unix.Prctl(unix.PR_CAP_AMBIENT, op, uintptr(capValue), 0, 0); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	return nil
}

// applyCapResetAmbient clears the entire ambient set in one call
// (PR_CAP_AMBIENT_CLEAR_ALL).
func applyCapResetAmbient() error {
	if err := unix.Prctl(unix.PR_CAP_AMBIENT, unix.PR_CAP_AMBIENT_CLEAR_ALL, 0, 0, 0); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	return nil
}

// applyCapSetSecbits sets the process's securebits word
// (PR_SET_SECUREBITS); gocapability has no secbits accessor, since
// securebits sit outside the capability-set model it wraps.
func applyCapSetSecbits(bits uint32) error {
	if err := unix.Prctl(unix.PR_SET_SECUREBITS, uintptr(bits), 0, 0, 0); err != nil {
		return coreerr.Wrap(coreerr.Unsupported, err)
	}
	return nil
}

// loadRawCapData applies a raw effective/permitted/inheritable triple
// encoded as three little-endian uint32 bitmasks per 32-capability word,
// the same shape the kernel's cap_user_data_t array uses. Only the
// lowest 32 capability bits are handled: spec's own cap_value_t/
// cap_flag_value_t fields are single values, not the full 64-bit-wide
// two-word form newer kernels support, so this mirrors that scope.
func loadRawCapData(caps capability.Capabilities, payload []byte) error {
	if len(payload) < 12 {
		return coreerr.NewArg(coreerr.InvalidArgument, "cap_payload")
	}
	effective := readLE32(payload[0:4])
	permitted := readLE32(payload[4:8])
	inheritable := readLE32(payload[8:12])

	caps.Clear(capability.CAPS)
	for i := capability.Cap(0); i < 32; i++ {
		bit := uint32(1) << uint(i)
		if effective&bit != 0 {
			caps.Set(capability.EFFECTIVE, i)
		}
		if permitted&bit != 0 {
			caps.Set(capability.PERMITTED, i)
		}
		if inheritable&bit != 0 {
			caps.Set(capability.INHERITABLE, i)
		}
	}
	return nil
}

func readLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
