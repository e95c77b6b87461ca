package spawn

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-actorvm/coreerr"
)

func TestWrapErrnoMapsKnownCodes(t *testing.T) {
	require.ErrorIs(t, wrapErrno(unix.EPERM), coreerr.ErrOperationNotPermitted)
	require.ErrorIs(t, wrapErrno(unix.EDEADLK), coreerr.ErrResourceDeadlock)
	require.ErrorIs(t, wrapErrno(unix.EINVAL), coreerr.ErrInvalidArgument)
	require.ErrorIs(t, wrapErrno(unix.E2BIG), coreerr.ErrValueTooLarge)
	require.ErrorIs(t, wrapErrno(unix.ENAMETOOLONG), coreerr.ErrValueTooLarge)
}

func TestWrapErrnoFallsBackToInvalidArgument(t *testing.T) {
	require.ErrorIs(t, wrapErrno(unix.ENOENT), coreerr.ErrInvalidArgument)
}
