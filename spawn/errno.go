package spawn

import (
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

// wrapErrno maps a raw errno read back from the pre-exec report pipe (spec
// §4.5: "the child writes a 4-byte errno reply") onto the taxonomy's
// system category, picking the core-taxonomy code the original mutex and
// credential operations already use for the two POSIX conditions that
// recur across spawn failures; anything else stays generically system.
func wrapErrno(errno unix.Errno) error {
	switch errno {
	case unix.EPERM:
		return coreerr.Wrap(coreerr.OperationNotPermit, errno)
	case unix.EDEADLK:
		return coreerr.Wrap(coreerr.ResourceDeadlock, errno)
	case unix.EINVAL:
		return coreerr.Wrap(coreerr.InvalidArgument, errno)
	case unix.E2BIG, unix.ENAMETOOLONG:
		return coreerr.Wrap(coreerr.ValueTooLarge, errno)
	default:
		return coreerr.Wrap(coreerr.InvalidArgument, errno)
	}
}
